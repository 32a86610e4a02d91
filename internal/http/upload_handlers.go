package httpx

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/codespacehelp/partybook/internal/assets"
)

// UploadsAPI is thin glue over the external object store: it hands
// browsers a direct-PUT slot and validates the completion callback.
// Room state never changes here; clients announce finished uploads
// themselves with an "upload" event over the websocket.
type UploadsAPI struct{ Assets *assets.Client }

type prepareReq struct {
	Name string `json:"name"`
}

type completeResp struct {
	Key string `json:"key"`
}

// Prepare reserves an upload slot and returns key, PUT url, and token.
func (a *UploadsAPI) Prepare(w http.ResponseWriter, r *http.Request) {
	var req prepareReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	slot, err := a.Assets.PrepareUpload(r.Context(), req.Name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, slot)
}

// Complete validates the upload token issued by Prepare. The token's
// subject must match the key in the path.
func (a *UploadsAPI) Complete(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if key == "" {
		http.Error(w, "key required", http.StatusBadRequest)
		return
	}

	b := r.Header.Get("Authorization")
	if !strings.HasPrefix(b, "Bearer ") {
		http.Error(w, "no token", http.StatusUnauthorized)
		return
	}
	got, err := a.Assets.VerifyUploadToken(strings.TrimPrefix(b, "Bearer "))
	if err != nil || got != key {
		http.Error(w, "bad token", http.StatusUnauthorized)
		return
	}

	writeJSON(w, completeResp{Key: key})
}

// send JSON with proper headers
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
