package canvas

import (
	"fmt"
	"hash/fnv"
)

// Item is a positioned visual object on the shared canvas.
// Width/Height of 0 mean "unset"; clients fall back to 100x100.
type Item struct {
	ID     string  `json:"id"`
	Type   string  `json:"type"`
	URL    string  `json:"url"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}

// Cursor is the last reported pointer position of one connection.
// Never persisted; dropped when the connection goes away.
type Cursor struct {
	ID    string  `json:"id"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Color string  `json:"color"`
}

// DefaultItems seeds a room that has never been persisted.
func DefaultItems() []Item {
	return []Item{
		{
			ID:   "abc123",
			Type: "image",
			URL:  "https://6fsz3xa0qw.ufs.sh/f/obk1n6xKKhmuob4mcD2KKhmubZUGIXl9zFH6We5SR8kdysCg",
			X:    150,
			Y:    150,
		},
		{
			ID:   "cdb23",
			Type: "image",
			URL:  "https://6fsz3xa0qw.ufs.sh/f/obk1n6xKKhmufaS2r942bs5vPCWA7xTnqNljHgkYmdZcByK8",
			X:    200,
			Y:    200,
		},
		{
			ID:   "def987",
			Type: "image",
			URL:  "https://6fsz3xa0qw.ufs.sh/f/obk1n6xKKhmuW3QdLCrH6RA8bTiLjEPzeq2rfoNhdvOkXyIc",
			X:    500,
			Y:    500,
		},
	}
}

// CursorColor derives a stable display color from a connection id.
// Pure function of the id, so every client computes the same color.
func CursorColor(id string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	hue := h.Sum32() % 360
	return fmt.Sprintf("hsl(%d, 70%%, 45%%)", hue)
}
