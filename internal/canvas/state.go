package canvas

import (
	"sort"

	"github.com/samber/lo"
)

// State is the authoritative canvas content for one room: the item
// collection (durable) and the live cursor set (ephemeral). It does no
// locking of its own; the owning room goroutine is the only caller, so
// mutations never interleave.
type State struct {
	items   []Item
	cursors map[string]Cursor
}

func NewState() *State {
	return &State{cursors: map[string]Cursor{}}
}

// Load installs the persisted item list, or the default seed when the
// room has never been saved. Runs before any connection is admitted.
func (s *State) Load(items []Item, found bool) {
	if !found {
		items = DefaultItems()
	}
	s.items = append([]Item(nil), items...)
}

// Items returns a copy of the collection, safe to hand to other
// goroutines (serialization, persistence). Never nil, so an empty
// canvas serializes as [] rather than null.
func (s *State) Items() []Item {
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// Add appends an item. Callers choose ids and are responsible for
// uniqueness; no duplicate check happens here.
func (s *State) Add(it Item) {
	s.items = append(s.items, it)
}

// Move updates an item's position in place. Reports false when no item
// has the id; the collection is untouched in that case.
func (s *State) Move(id string, x, y float64) bool {
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].X = x
			s.items[i].Y = y
			return true
		}
	}
	return false
}

// Resize updates an item's dimensions; no-op when the id is unknown.
func (s *State) Resize(id string, width, height float64) bool {
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].Width = width
			s.items[i].Height = height
			return true
		}
	}
	return false
}

// Delete removes the item with the given id. Idempotent: a second
// delete of the same id reports false and changes nothing.
func (s *State) Delete(id string) bool {
	n := len(s.items)
	s.items = lo.Reject(s.items, func(it Item, _ int) bool {
		return it.ID == id
	})
	return len(s.items) != n
}

// Clear empties the whole collection.
func (s *State) Clear() {
	s.items = nil
}

// SetCursor records the latest pointer position for a connection,
// creating the cursor on its first report.
func (s *State) SetCursor(id string, x, y float64) {
	s.cursors[id] = Cursor{ID: id, X: x, Y: y, Color: CursorColor(id)}
}

// DropCursor discards a connection's cursor on disconnect.
func (s *State) DropCursor(id string) {
	delete(s.cursors, id)
}

// Cursors returns the live cursor set in stable id order.
func (s *State) Cursors() []Cursor {
	out := lo.Values(s.cursors)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
