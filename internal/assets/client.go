// Package assets is the boundary to the external object-storage
// service: file listings for room snapshots and the prepare/complete
// upload handshake. The canvas core only ever consumes the resulting
// {id, name, url} asset list.
package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"log/slog"

	"github.com/codespacehelp/partybook/internal/canvas"
)

type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
	tokens  *TokenSigner
}

// UploadSlot is what a client needs to PUT a file directly to the
// object store and then confirm it with us.
type UploadSlot struct {
	Key   string `json:"key"`
	URL   string `json:"url"`
	Token string `json:"token"`
}

// NewClient builds the boundary client. baseURL may be empty, in which
// case List returns an empty listing and uploads are refused.
func NewClient(baseURL, uploadSecret string, log *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
		tokens:  NewTokenSigner(uploadSecret),
	}
}

// List fetches the uploaded-file listing. Callers treat any error as an
// empty list; a broken asset service never blocks a room from opening.
func (c *Client) List(ctx context.Context) ([]canvas.Asset, error) {
	if c.baseURL == "" {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/files", nil)
	if err != nil {
		return nil, err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("asset listing: status %d", res.StatusCode)
	}

	var body struct {
		Files []canvas.Asset `json:"files"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body.Files, nil
}

// PrepareUpload reserves an asset key with the object store and signs a
// short-lived token the uploader must present on completion.
func (c *Client) PrepareUpload(ctx context.Context, name string) (UploadSlot, error) {
	if c.baseURL == "" {
		return UploadSlot{}, fmt.Errorf("asset service not configured")
	}

	key := uuid.NewString()
	payload, _ := json.Marshal(map[string]string{"key": key, "name": name})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/prepare", strings.NewReader(string(payload)))
	if err != nil {
		return UploadSlot{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return UploadSlot{}, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return UploadSlot{}, fmt.Errorf("prepare upload: status %d", res.StatusCode)
	}

	var body struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return UploadSlot{}, err
	}

	tok, err := c.tokens.Sign(key, 15*time.Minute)
	if err != nil {
		return UploadSlot{}, err
	}
	return UploadSlot{Key: key, URL: body.URL, Token: tok}, nil
}

// VerifyUploadToken checks a completion callback's token and returns
// the asset key it was issued for.
func (c *Client) VerifyUploadToken(tok string) (string, error) {
	return c.tokens.Verify(tok)
}
