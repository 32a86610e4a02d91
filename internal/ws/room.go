package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"log/slog"

	"github.com/samber/lo"

	"github.com/codespacehelp/partybook/internal/canvas"
	"github.com/codespacehelp/partybook/internal/store"
	"github.com/codespacehelp/partybook/pkg/metrics"
)

// Client is one attached connection the room can push frames to. Send
// must not block; delivery is best-effort.
type Client interface {
	ID() string
	Send(payload []byte)
}

// publisher is the cross-instance fanout hook. Nil-able: a
// single-instance deployment runs without one.
type publisher interface {
	Publish(ctx context.Context, m BusMessage) error
}

// AssetLister fetches the uploaded-file listing from the external
// object store.
type AssetLister interface {
	List(ctx context.Context) ([]canvas.Asset, error)
}

type inboundFrame struct {
	senderID string
	payload  []byte
}

// Room is the authoritative process for one named canvas. A single
// goroutine owns the state and the client registry and consumes joins,
// leaves and inbound events one at a time, so mutations never
// interleave and every client converges on the same item collection.
type Room struct {
	name   string
	log    *slog.Logger
	store  store.Store
	bus    publisher
	origin string // this instance's bus identity
	lister AssetLister

	state  *canvas.State
	assets []canvas.Asset

	clients map[string]Client

	join    chan Client
	leave   chan Client
	inbound chan inboundFrame
	fromBus chan BusMessage
	saveQ   chan []canvas.Item

	quit     chan struct{}
	stopOnce sync.Once

	refs int // live connection count, guarded by the hub's mutex
}

func newRoom(name string, log *slog.Logger, st store.Store, bus publisher, origin string, lister AssetLister) *Room {
	return &Room{
		name:    name,
		log:     log,
		store:   st,
		bus:     bus,
		origin:  origin,
		lister:  lister,
		state:   canvas.NewState(),
		assets:  []canvas.Asset{},
		clients: map[string]Client{},
		join:    make(chan Client),
		leave:   make(chan Client),
		inbound: make(chan inboundFrame, 64),
		fromBus: make(chan BusMessage, 64),
		saveQ:   make(chan []canvas.Item, 1),
		quit:    make(chan struct{}),
	}
}

// start loads persisted items and the asset listing, then launches the
// room goroutine. Runs once, before the first connection is admitted.
func (r *Room) start() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	items, found, err := r.store.LoadItems(ctx, r.name)
	if err != nil {
		r.log.Error("room.load", "room", r.name, "err", err)
		found = false
	}
	r.state.Load(items, found)

	if r.lister != nil {
		assets, err := r.lister.List(ctx)
		if err != nil {
			// best-effort: the room opens with an empty asset list
			r.log.Warn("room.assets", "room", r.name, "err", err)
		} else if assets != nil {
			r.assets = assets
		}
	}

	go r.saveLoop()
	go r.run()
}

func (r *Room) run() {
	metrics.ActiveRooms.Inc()
	defer metrics.ActiveRooms.Dec()

	for {
		select {
		case c := <-r.join:
			r.handleJoin(c)
		case c := <-r.leave:
			r.handleLeave(c)
		case m := <-r.inbound:
			r.handleMessage(m.senderID, m.payload)
		case bm := <-r.fromBus:
			r.deliver(bm.Payload, bm.Exclude...)
		case <-r.quit:
			return
		}
	}
}

func (r *Room) stop() {
	r.stopOnce.Do(func() { close(r.quit) })
}

// Join admits a connection; blocks until the room goroutine picks it up
// so the initial snapshots always precede any later broadcast. A room
// that has already stopped swallows the call instead of hanging the
// connection handler.
func (r *Room) Join(c Client) {
	select {
	case r.join <- c:
	case <-r.quit:
	}
}

func (r *Room) Leave(c Client) {
	select {
	case r.leave <- c:
	case <-r.quit:
	}
}

// Inbound hands a raw frame from a connection to the room goroutine.
func (r *Room) Inbound(senderID string, payload []byte) {
	select {
	case r.inbound <- inboundFrame{senderID: senderID, payload: payload}:
	case <-r.quit:
	}
}

// FromBus queues a frame relayed from another instance. Non-blocking;
// bus delivery is best-effort like everything else.
func (r *Room) FromBus(bm BusMessage) {
	select {
	case r.fromBus <- bm:
	default:
		metrics.FramesDropped.Inc()
	}
}

func (r *Room) handleJoin(c Client) {
	r.clients[c.ID()] = c
	metrics.OpenConnections.Inc()
	r.log.Info("room.connect", "room", r.name, "conn", c.ID())

	// Initial snapshots, to the new connection alone: items, cursors,
	// assets, in that order.
	b, _ := json.Marshal(canvas.InitialItems{Type: "initial_items", ID: c.ID(), Items: r.state.Items()})
	c.Send(b)
	b, _ = json.Marshal(canvas.InitialCursors{Type: "initial_cursors", Cursors: r.state.Cursors()})
	c.Send(b)
	b, _ = json.Marshal(canvas.InitialAssets{Type: "initial_assets", Assets: r.assets})
	c.Send(b)

	b, _ = json.Marshal(canvas.PeerNotice{Type: "connect", ID: c.ID()})
	r.broadcast(b, c.ID())
}

func (r *Room) handleLeave(c Client) {
	if _, ok := r.clients[c.ID()]; !ok {
		return
	}
	delete(r.clients, c.ID())
	metrics.OpenConnections.Dec()
	r.state.DropCursor(c.ID())
	r.log.Info("room.disconnect", "room", r.name, "conn", c.ID())

	b, _ := json.Marshal(canvas.PeerNotice{Type: "disconnect", ID: c.ID()})
	r.broadcast(b, c.ID())
}

// handleMessage is the event router: classify, mutate, broadcast.
// Nothing in here may crash the room; malformed input is dropped.
func (r *Room) handleMessage(senderID string, raw []byte) {
	ev, err := canvas.Decode(raw)
	if err != nil {
		metrics.EventsRejected.Inc()
		r.log.Debug("room.event.malformed", "room", r.name, "conn", senderID, "err", err)
		return
	}

	switch ev := ev.(type) {
	case canvas.CursorEvent:
		metrics.EventsTotal.WithLabelValues("cursor").Inc()
		// The registry id is authoritative, whatever the client sent.
		ev.ID = senderID
		r.state.SetCursor(senderID, ev.X, ev.Y)
		b, _ := json.Marshal(ev)
		r.broadcast(b, senderID)

	case canvas.MoveEvent:
		metrics.EventsTotal.WithLabelValues("item_move").Inc()
		if !r.state.Move(ev.ID, ev.X, ev.Y) {
			// No stub fabrication for unknown ids: reject and tell the
			// sender, nobody else.
			metrics.EventsRejected.Inc()
			r.log.Info("room.move.unknown_item", "room", r.name, "item", ev.ID)
			r.sendTo(senderID, canvas.ErrorNotice{Type: "error", Op: "item_move", ID: ev.ID})
			return
		}
		r.persist()
		r.rebroadcast(ev)

	case canvas.AddEvent:
		metrics.EventsTotal.WithLabelValues("add_item").Inc()
		r.state.Add(ev.Item)
		r.persist()
		r.rebroadcast(ev)

	case canvas.DeleteEvent:
		metrics.EventsTotal.WithLabelValues("delete_item").Inc()
		r.state.Delete(ev.ID) // idempotent; still broadcast
		r.persist()
		r.rebroadcast(ev)

	case canvas.ResizeEvent:
		metrics.EventsTotal.WithLabelValues("resize_item").Inc()
		r.state.Resize(ev.ID, ev.Width, ev.Height)
		r.persist()
		r.rebroadcast(ev)

	case canvas.ClearEvent:
		metrics.EventsTotal.WithLabelValues("clear_canvas").Inc()
		r.state.Clear()
		r.persist()
		r.rebroadcast(ev)

	case canvas.UploadEvent:
		// Informational: the asset store is external, nothing to mutate.
		metrics.EventsTotal.WithLabelValues("upload").Inc()
		r.rebroadcast(ev)

	case canvas.UnknownEvent:
		// Forward-compatibility: relay tags we do not know verbatim.
		metrics.EventsTotal.WithLabelValues("unknown").Inc()
		r.broadcast(ev.Raw)
	}
}

// rebroadcast re-encodes a decoded event and sends it to every
// connection, sender included: clients converge on the server echo.
func (r *Room) rebroadcast(ev canvas.Event) {
	b, _ := json.Marshal(ev)
	r.broadcast(b)
}

// broadcast delivers one frame to all local clients except those in
// exclude, and mirrors it to peer instances over the bus.
func (r *Room) broadcast(payload []byte, exclude ...string) {
	r.deliver(payload, exclude...)
	if r.bus != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := r.bus.Publish(ctx, BusMessage{
			Room:    r.name,
			Origin:  r.origin,
			Exclude: exclude,
			Payload: payload,
		}); err != nil {
			r.log.Warn("room.bus.publish", "room", r.name, "err", err)
		}
	}
}

func (r *Room) deliver(payload []byte, exclude ...string) {
	metrics.Broadcasts.Inc()
	for id, c := range r.clients {
		if lo.Contains(exclude, id) {
			continue
		}
		c.Send(payload)
	}
}

func (r *Room) sendTo(id string, msg any) {
	c := r.clients[id]
	if c == nil {
		return
	}
	b, _ := json.Marshal(msg)
	c.Send(b)
}

// persist queues the current item collection for the room's save loop.
// The broadcast never waits on the write. The queue holds only the
// latest snapshot: a newer one replaces anything still waiting, so the
// single writer can never land an older collection over a newer one.
func (r *Room) persist() {
	items := r.state.Items()
	for {
		select {
		case r.saveQ <- items:
			return
		default:
		}
		// Queue full: drop the stale snapshot and try again.
		select {
		case <-r.saveQ:
		default:
		}
	}
}

// saveLoop is the room's single durable writer, draining saveQ one
// snapshot at a time so writes complete in the order they were taken.
// Failures are logged and counted, never surfaced to clients.
func (r *Room) saveLoop() {
	for {
		select {
		case items := <-r.saveQ:
			r.doSave(items)
		case <-r.quit:
			// Flush whatever is still queued before the room goes away.
			select {
			case items := <-r.saveQ:
				r.doSave(items)
			default:
			}
			return
		}
	}
}

func (r *Room) doSave(items []canvas.Item) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.store.SaveItems(ctx, r.name, items); err != nil {
		metrics.PersistFailures.Inc()
		r.log.Error("room.persist", "room", r.name, "err", err)
	}
}
