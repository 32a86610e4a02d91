package store

import (
	"context"

	"github.com/codespacehelp/partybook/internal/canvas"
)

// Store persists each room's item collection as one record keyed by
// room name. Cursors and connections are never stored.
type Store interface {
	// LoadItems returns the persisted items for a room. found is false
	// when the room has never been saved.
	LoadItems(ctx context.Context, room string) (items []canvas.Item, found bool, err error)

	// SaveItems overwrites the room's item collection.
	SaveItems(ctx context.Context, room string, items []canvas.Item) error

	Close() error
}
