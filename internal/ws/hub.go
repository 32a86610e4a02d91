package ws

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"log/slog"

	"github.com/codespacehelp/partybook/internal/store"
)

// Hub owns the room map: one Room per room name, created on first
// access and torn down when its last connection leaves. State inside a
// room belongs to that room's goroutine; the hub only tracks lifetime.
type Hub struct {
	log    *slog.Logger
	store  store.Store
	bus    *RedisBus // nil when running single-instance
	lister AssetLister
	origin string

	mu    sync.Mutex
	rooms map[string]*Room
}

// NewHub sets up the hub. bus and lister may be nil.
func NewHub(logger *slog.Logger, st store.Store, bus *RedisBus, lister AssetLister) *Hub {
	return &Hub{
		log:    logger,
		store:  st,
		bus:    bus,
		lister: lister,
		origin: uuid.NewString(),
		rooms:  map[string]*Room{},
	}
}

// Run forwards bus traffic from peer instances into local rooms, then
// stops every room on shutdown.
func (h *Hub) Run(ctx context.Context) {
	if h.bus != nil {
		go h.bus.Subscribe(ctx, func(bm BusMessage) {
			if bm.Origin == h.origin {
				return // our own publish coming back around
			}
			h.mu.Lock()
			rm := h.rooms[bm.Room]
			h.mu.Unlock()
			if rm != nil {
				rm.FromBus(bm)
			}
		})
	}
	<-ctx.Done()

	h.mu.Lock()
	for _, rm := range h.rooms {
		rm.stop()
	}
	h.rooms = map[string]*Room{}
	h.mu.Unlock()
}

// acquire returns the live room for a name, creating and starting it if
// needed, and takes one reference for the calling connection.
func (h *Hub) acquire(name string) *Room {
	h.mu.Lock()
	rm := h.rooms[name]
	created := rm == nil
	if created {
		rm = newRoom(name, h.log, h.store, busOrNil(h.bus), h.origin, h.lister)
		h.rooms[name] = rm
	}
	rm.refs++
	h.mu.Unlock()

	if created {
		rm.start()
	}
	return rm
}

// release drops one reference; the room is discarded when the last
// connection leaves. Items stay durable, cursors do not.
func (h *Hub) release(name string, rm *Room) {
	h.mu.Lock()
	rm.refs--
	if rm.refs == 0 && h.rooms[name] == rm {
		delete(h.rooms, name)
		rm.stop()
	}
	h.mu.Unlock()
}

// ServeWS handles a new /ws connection for a named room
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := r.URL.Query().Get("room")
	if name == "" {
		http.Error(w, "room required", http.StatusBadRequest)
		return
	}

	conn, err := Accept(w, r)
	if err != nil {
		h.log.Error("ws.accept", "err", err)
		return
	}

	rm := h.acquire(name)
	c := NewConn(conn)
	rm.Join(c)

	// Outbound writer
	go c.WriteLoop(ctx)

	// Inbound reader: every frame goes through the room's router
	for {
		payload, ok := c.Read(ctx)
		if !ok {
			break
		}
		rm.Inbound(c.ID(), payload)
	}

	rm.Leave(c)
	h.release(name, rm)
	_ = c.Close()
}

// busOrNil keeps a typed-nil *RedisBus from sneaking into the room's
// publisher interface.
func busOrNil(b *RedisBus) publisher {
	if b == nil {
		return nil
	}
	return b
}
