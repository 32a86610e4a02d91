package httpx

import (
	"net/http"

	"github.com/codespacehelp/partybook/internal/canvas"
	"github.com/codespacehelp/partybook/internal/store"
)

// RoomsAPI exposes read-only room snapshots for debugging and ops.
// Live mutation goes through the websocket only.
type RoomsAPI struct{ Store store.Store }

// Items returns the persisted item collection for a room. A room that
// was never saved reports the default seed, matching what a connecting
// client would receive.
func (a *RoomsAPI) Items(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		http.Error(w, "room required", http.StatusBadRequest)
		return
	}

	items, found, err := a.Store.LoadItems(r.Context(), name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !found {
		items = canvas.DefaultItems()
	}
	writeJSON(w, items)
}
