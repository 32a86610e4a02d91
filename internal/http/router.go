package httpx

import (
	"net/http"

	"github.com/codespacehelp/partybook/internal/app"
	"github.com/codespacehelp/partybook/internal/assets"
	"github.com/codespacehelp/partybook/internal/store"
	"github.com/codespacehelp/partybook/internal/ws"
	"github.com/codespacehelp/partybook/pkg/metrics"
)

// NewRouter wires up all HTTP routes, middleware, and handlers.
// The websocket endpoint is deliberately outside the rate limiter: one
// long-lived connection, not one request per event.
func NewRouter(cfg app.Config, hub *ws.Hub, db store.Store, ac *assets.Client) http.Handler {
	mw := NewMiddleware(cfg)
	uploads := &UploadsAPI{Assets: ac}
	rooms := &RoomsAPI{Store: db}

	mux := http.NewServeMux()

	// Health / readiness / metrics
	mux.Handle("/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(200) }))
	mux.Handle("/readyz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(200) }))
	mux.Handle("/metrics", metrics.Handler())

	// Upload handshake + room snapshots
	api := http.NewServeMux()
	api.Handle("POST /api/uploads", http.HandlerFunc(uploads.Prepare))
	api.Handle("POST /api/uploads/{key}/complete", http.HandlerFunc(uploads.Complete))
	api.Handle("GET /api/rooms/{name}/items", http.HandlerFunc(rooms.Items))
	mux.Handle("/api/", mw.Wrap(api))

	// WebSocket endpoint
	mux.Handle("/ws", http.HandlerFunc(hub.ServeWS))

	return mux
}
