package canvas

// Outbound message shapes. Everything the room originates itself (as
// opposed to pass-through rebroadcast of client events) lives here.

// InitialItems is pushed to a connection right after it joins.
type InitialItems struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Items []Item `json:"items"`
}

// InitialCursors follows InitialItems with the live cursor set.
type InitialCursors struct {
	Type    string   `json:"type"`
	Cursors []Cursor `json:"cursors"`
}

// Asset is an uploaded file owned by the external object store. The
// room only relays the listing; it never mutates assets.
type Asset struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// InitialAssets completes the join snapshot with the uploaded-file list.
type InitialAssets struct {
	Type   string  `json:"type"`
	Assets []Asset `json:"assets"`
}

// PeerNotice announces a connection joining ("connect") or leaving
// ("disconnect") to the other members of the room.
type PeerNotice struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// ErrorNotice reports a rejected mutation back to its sender only.
type ErrorNotice struct {
	Type string `json:"type"`
	Op   string `json:"op"`
	ID   string `json:"id"`
}
