package ws

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"log/slog"

	"github.com/stretchr/testify/require"

	"github.com/codespacehelp/partybook/internal/canvas"
	"github.com/codespacehelp/partybook/internal/store"
)

type fakeClient struct {
	id string

	mu     sync.Mutex
	frames [][]byte
}

func (c *fakeClient) ID() string { return c.id }

func (c *fakeClient) Send(p []byte) {
	c.mu.Lock()
	c.frames = append(c.frames, p)
	c.mu.Unlock()
}

func (c *fakeClient) all() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.frames))
	for _, f := range c.frames {
		var m map[string]any
		_ = json.Unmarshal(f, &m)
		out = append(out, m)
	}
	return out
}

func (c *fakeClient) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func (c *fakeClient) reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}

type fakeStore struct {
	mu    sync.Mutex
	items map[string][]canvas.Item
	saves int
}

func newFakeStore() *fakeStore {
	return &fakeStore{items: map[string][]canvas.Item{}}
}

func (f *fakeStore) LoadItems(_ context.Context, room string) ([]canvas.Item, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items, ok := f.items[room]
	return append([]canvas.Item(nil), items...), ok, nil
}

func (f *fakeStore) SaveItems(_ context.Context, room string, items []canvas.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[room] = append([]canvas.Item(nil), items...)
	f.saves++
	return nil
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

type fakeBus struct {
	mu   sync.Mutex
	msgs []BusMessage
}

func (b *fakeBus) Publish(_ context.Context, m BusMessage) error {
	b.mu.Lock()
	b.msgs = append(b.msgs, m)
	b.mu.Unlock()
	return nil
}

func (b *fakeBus) last() BusMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.msgs[len(b.msgs)-1]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestRoom builds a room with loaded state and a running save loop
// but no event goroutine; tests drive the handlers directly so every
// step is deterministic.
func newTestRoom(t *testing.T, st store.Store, bus publisher) *Room {
	r := newRoom("test", discardLogger(), st, bus, "origin-a", nil)
	items, found, _ := st.LoadItems(context.Background(), "test")
	r.state.Load(items, found)
	go r.saveLoop()
	t.Cleanup(r.stop)
	return r
}

func Test_Join_Receives_Snapshots_In_Order(t *testing.T) {
	req := require.New(t)
	r := newTestRoom(t, newFakeStore(), nil)

	a := &fakeClient{id: "conn-a"}
	r.handleJoin(a)

	frames := a.all()
	req.Len(frames, 3)
	req.Equal("initial_items", frames[0]["type"])
	req.Equal("conn-a", frames[0]["id"])
	req.Len(frames[0]["items"], 3)
	req.Equal("initial_cursors", frames[1]["type"])
	req.Equal("initial_assets", frames[2]["type"])
}

func Test_Connect_Notice_Goes_To_Peers_Only(t *testing.T) {
	req := require.New(t)
	r := newTestRoom(t, newFakeStore(), nil)

	a := &fakeClient{id: "conn-a"}
	b := &fakeClient{id: "conn-b"}
	r.handleJoin(a)
	a.reset()
	r.handleJoin(b)

	frames := a.all()
	req.Len(frames, 1)
	req.Equal("connect", frames[0]["type"])
	req.Equal("conn-b", frames[0]["id"])

	// The joiner itself only has its three snapshots, no self-connect.
	req.Equal(3, b.count())
}

func Test_Cursor_Never_Echoes_To_Sender(t *testing.T) {
	req := require.New(t)
	r := newTestRoom(t, newFakeStore(), nil)

	a := &fakeClient{id: "conn-a"}
	b := &fakeClient{id: "conn-b"}
	c := &fakeClient{id: "conn-c"}
	for _, cl := range []*fakeClient{a, b, c} {
		r.handleJoin(cl)
		cl.reset()
	}
	a.reset()
	b.reset()

	r.handleMessage("conn-a", []byte(`{"type":"cursor","id":"spoofed","x":7,"y":8}`))

	req.Equal(0, a.count())
	for _, peer := range []*fakeClient{b, c} {
		frames := peer.all()
		req.Len(frames, 1)
		req.Equal("cursor", frames[0]["type"])
		// Registry id wins over whatever the client claimed.
		req.Equal("conn-a", frames[0]["id"])
		req.Equal(7.0, frames[0]["x"])
	}

	cursors := r.state.Cursors()
	req.Len(cursors, 1)
	req.Equal("conn-a", cursors[0].ID)
}

func Test_Item_Move_Echoes_To_Everyone(t *testing.T) {
	req := require.New(t)
	r := newTestRoom(t, newFakeStore(), nil)

	a := &fakeClient{id: "conn-a"}
	b := &fakeClient{id: "conn-b"}
	r.handleJoin(a)
	r.handleJoin(b)
	a.reset()
	b.reset()

	r.handleMessage("conn-a", []byte(`{"type":"item_move","id":"abc123","x":99,"y":50}`))

	for _, cl := range []*fakeClient{a, b} {
		frames := cl.all()
		req.Len(frames, 1)
		req.Equal("item_move", frames[0]["type"])
		req.Equal("abc123", frames[0]["id"])
		req.Equal(99.0, frames[0]["x"])
		req.Equal(50.0, frames[0]["y"])
	}
}

func Test_Move_Same_Item_Last_Write_Wins(t *testing.T) {
	req := require.New(t)
	r := newTestRoom(t, newFakeStore(), nil)

	a := &fakeClient{id: "conn-a"}
	b := &fakeClient{id: "conn-b"}
	r.handleJoin(a)
	r.handleJoin(b)

	r.handleMessage("conn-a", []byte(`{"type":"item_move","id":"abc123","x":10,"y":20}`))
	r.handleMessage("conn-b", []byte(`{"type":"item_move","id":"abc123","x":99,"y":50}`))

	var got canvas.Item
	for _, it := range r.state.Items() {
		if it.ID == "abc123" {
			got = it
		}
	}
	req.Equal(99.0, got.X)
	req.Equal(50.0, got.Y)
}

func Test_Move_Unknown_Item_Rejected_To_Sender_Only(t *testing.T) {
	req := require.New(t)
	r := newTestRoom(t, newFakeStore(), nil)

	a := &fakeClient{id: "conn-a"}
	b := &fakeClient{id: "conn-b"}
	r.handleJoin(a)
	r.handleJoin(b)
	a.reset()
	b.reset()

	r.handleMessage("conn-a", []byte(`{"type":"item_move","id":"ghost","x":1,"y":2}`))

	req.Equal(0, b.count())
	frames := a.all()
	req.Len(frames, 1)
	req.Equal("error", frames[0]["type"])
	req.Equal("item_move", frames[0]["op"])
	req.Equal("ghost", frames[0]["id"])
	req.Len(r.state.Items(), 3)
}

func Test_Malformed_Frame_Is_Dropped(t *testing.T) {
	req := require.New(t)
	r := newTestRoom(t, newFakeStore(), nil)

	a := &fakeClient{id: "conn-a"}
	r.handleJoin(a)
	a.reset()

	r.handleMessage("conn-a", []byte(`{{{`))
	r.handleMessage("conn-a", []byte(`{"no":"type"}`))

	req.Equal(0, a.count())
	req.Len(r.state.Items(), 3)
}

func Test_Unknown_Tag_Forwarded_Verbatim(t *testing.T) {
	req := require.New(t)
	r := newTestRoom(t, newFakeStore(), nil)

	a := &fakeClient{id: "conn-a"}
	b := &fakeClient{id: "conn-b"}
	r.handleJoin(a)
	r.handleJoin(b)
	a.reset()
	b.reset()

	raw := `{"type":"emoji_burst","emoji":"tada","count":3}`
	r.handleMessage("conn-a", []byte(raw))

	for _, cl := range []*fakeClient{a, b} {
		frames := cl.frames
		req.Len(frames, 1)
		req.JSONEq(raw, string(frames[0]))
	}
}

func Test_Leave_Drops_Cursor_And_Notifies_Peers(t *testing.T) {
	req := require.New(t)
	r := newTestRoom(t, newFakeStore(), nil)

	a := &fakeClient{id: "conn-a"}
	b := &fakeClient{id: "conn-b"}
	r.handleJoin(a)
	r.handleJoin(b)
	r.handleMessage("conn-b", []byte(`{"type":"cursor","x":1,"y":2}`))
	a.reset()

	r.handleLeave(b)

	frames := a.all()
	req.Len(frames, 1)
	req.Equal("disconnect", frames[0]["type"])
	req.Equal("conn-b", frames[0]["id"])
	req.Empty(r.state.Cursors())
}

func Test_Mutations_Persist_In_Background(t *testing.T) {
	req := require.New(t)
	st := newFakeStore()
	r := newTestRoom(t, st, nil)

	a := &fakeClient{id: "conn-a"}
	r.handleJoin(a)
	r.handleMessage("conn-a", []byte(`{"type":"add_item","item":{"id":"x1","type":"image","url":"u","x":10,"y":20}}`))

	req.Eventually(func() bool { return st.saveCount() >= 1 }, time.Second, 10*time.Millisecond)

	items, found, err := st.LoadItems(context.Background(), "test")
	req.NoError(err)
	req.True(found)
	req.Len(items, 4)
}

func Test_Broadcast_Mirrors_To_Bus_With_Exclusions(t *testing.T) {
	req := require.New(t)
	bus := &fakeBus{}
	r := newTestRoom(t, newFakeStore(), bus)

	a := &fakeClient{id: "conn-a"}
	r.handleJoin(a)
	r.handleMessage("conn-a", []byte(`{"type":"cursor","x":1,"y":2}`))

	m := bus.last()
	req.Equal("test", m.Room)
	req.Equal("origin-a", m.Origin)
	req.Equal([]string{"conn-a"}, m.Exclude)

	r.handleMessage("conn-a", []byte(`{"type":"item_move","id":"abc123","x":5,"y":6}`))
	req.Empty(bus.last().Exclude)
}

// The concrete end-to-end sequence: defaults, add, late join, move,
// delete, repeat delete.
func Test_Room_Convergence_Scenario(t *testing.T) {
	req := require.New(t)
	st := newFakeStore()
	r := newTestRoom(t, st, nil)

	a := &fakeClient{id: "conn-a"}
	r.handleJoin(a)
	r.handleMessage("conn-a", []byte(`{"type":"add_item","item":{"id":"x1","type":"image","url":"u","x":10,"y":20}}`))

	b := &fakeClient{id: "conn-b"}
	r.handleJoin(b)
	initial := b.all()[0]
	req.Equal("initial_items", initial["type"])
	req.Len(initial["items"], 4)

	a.reset()
	b.reset()
	r.handleMessage("conn-b", []byte(`{"type":"item_move","id":"x1","x":99,"y":50}`))
	req.Equal(1, a.count())
	req.Equal(1, b.count())

	var moved canvas.Item
	for _, it := range r.state.Items() {
		if it.ID == "x1" {
			moved = it
		}
	}
	req.Equal(99.0, moved.X)
	req.Equal(50.0, moved.Y)

	r.handleMessage("conn-a", []byte(`{"type":"delete_item","id":"x1"}`))
	req.Len(r.state.Items(), 3)
	r.handleMessage("conn-a", []byte(`{"type":"delete_item","id":"x1"}`))
	req.Len(r.state.Items(), 3)
}

// One test through the real room goroutine and public API, to cover the
// join/leave/inbound channel plumbing itself.
func Test_Room_Run_Loop(t *testing.T) {
	req := require.New(t)
	st := newFakeStore()
	r := newRoom("live", discardLogger(), st, nil, "origin-a", nil)
	r.start()
	defer r.stop()

	a := &fakeClient{id: "conn-a"}
	b := &fakeClient{id: "conn-b"}
	r.Join(a)
	r.Join(b)

	req.Eventually(func() bool { return b.count() >= 3 }, time.Second, 10*time.Millisecond)
	a.reset()
	b.reset()

	r.Inbound("conn-a", []byte(`{"type":"item_move","id":"abc123","x":42,"y":43}`))
	req.Eventually(func() bool { return a.count() == 1 && b.count() == 1 }, time.Second, 10*time.Millisecond)

	r.Leave(b)
	req.Eventually(func() bool {
		frames := a.all()
		return len(frames) == 2 && frames[1]["type"] == "disconnect"
	}, time.Second, 10*time.Millisecond)
}

// gatedStore stalls the first write until released, letting tests pin
// an older snapshot in flight while newer mutations pile up behind it.
type gatedStore struct {
	inner   *fakeStore
	entered chan struct{} // closed when the first write starts
	gate    chan struct{} // first write blocks until this closes
	first   atomic.Bool
}

func newGatedStore(inner *fakeStore) *gatedStore {
	return &gatedStore{
		inner:   inner,
		entered: make(chan struct{}),
		gate:    make(chan struct{}),
	}
}

func (g *gatedStore) LoadItems(ctx context.Context, room string) ([]canvas.Item, bool, error) {
	return g.inner.LoadItems(ctx, room)
}

func (g *gatedStore) SaveItems(ctx context.Context, room string, items []canvas.Item) error {
	if g.first.CompareAndSwap(false, true) {
		close(g.entered)
		<-g.gate
	}
	return g.inner.SaveItems(ctx, room, items)
}

func (g *gatedStore) Close() error { return nil }

// A write that stalls while holding an older snapshot must not land on
// top of a faster write carrying a newer one: the durable store has to
// converge to the last mutation, same as every connected client.
func Test_Stalled_Write_Cannot_Clobber_Newer_Snapshot(t *testing.T) {
	req := require.New(t)
	st := newFakeStore()
	gated := newGatedStore(st)
	r := newTestRoom(t, gated, nil)

	a := &fakeClient{id: "conn-a"}
	r.handleJoin(a)

	r.handleMessage("conn-a", []byte(`{"type":"item_move","id":"abc123","x":10,"y":20}`))
	<-gated.entered // older snapshot now stalled mid-write

	r.handleMessage("conn-a", []byte(`{"type":"item_move","id":"abc123","x":99,"y":50}`))
	close(gated.gate)

	req.Eventually(func() bool { return st.saveCount() >= 2 }, time.Second, 10*time.Millisecond)

	items, found, err := st.LoadItems(context.Background(), "test")
	req.NoError(err)
	req.True(found)
	var got canvas.Item
	for _, it := range items {
		if it.ID == "abc123" {
			got = it
		}
	}
	req.Equal(99.0, got.X)
	req.Equal(50.0, got.Y)
}

// Same shape with a delete behind the stalled write: the deleted item
// must not resurrect in the durable record.
func Test_Stalled_Write_Cannot_Resurrect_Deleted_Item(t *testing.T) {
	req := require.New(t)
	st := newFakeStore()
	gated := newGatedStore(st)
	r := newTestRoom(t, gated, nil)

	a := &fakeClient{id: "conn-a"}
	r.handleJoin(a)

	r.handleMessage("conn-a", []byte(`{"type":"item_move","id":"abc123","x":10,"y":20}`))
	<-gated.entered

	r.handleMessage("conn-a", []byte(`{"type":"delete_item","id":"abc123"}`))
	close(gated.gate)

	req.Eventually(func() bool { return st.saveCount() >= 2 }, time.Second, 10*time.Millisecond)

	items, _, err := st.LoadItems(context.Background(), "test")
	req.NoError(err)
	req.Len(items, 2)
	for _, it := range items {
		req.NotEqual("abc123", it.ID)
	}
}

func Test_Join_And_Leave_After_Stop_Do_Not_Block(t *testing.T) {
	st := newFakeStore()
	r := newRoom("gone", discardLogger(), st, nil, "origin-a", nil)
	r.start()

	a := &fakeClient{id: "conn-a"}
	r.Join(a)
	r.stop()

	done := make(chan struct{})
	go func() {
		r.Leave(a)
		r.Join(&fakeClient{id: "conn-b"})
		r.Inbound("conn-b", []byte(`{"type":"clear_canvas"}`))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("room calls blocked after stop")
	}
}
