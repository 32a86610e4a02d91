package canvas

import (
	"encoding/json"
	"fmt"
)

// Event is one decoded inbound message. The set of implementations is
// closed: every tag a client can send maps to exactly one concrete type,
// with UnknownEvent as the explicit forward-compatibility fallback.
type Event interface {
	eventTag() string
}

type CursorEvent struct {
	Type string  `json:"type"`
	ID   string  `json:"id"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

type MoveEvent struct {
	Type string  `json:"type"`
	ID   string  `json:"id"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

type AddEvent struct {
	Type string `json:"type"`
	Item Item   `json:"item"`
}

type DeleteEvent struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type ResizeEvent struct {
	Type   string  `json:"type"`
	ID     string  `json:"id"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type ClearEvent struct {
	Type string `json:"type"`
}

type UploadEvent struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	URL  string `json:"url"`
	Name string `json:"name"`
}

// UnknownEvent carries an unrecognized tag verbatim so the room can
// forward it untouched.
type UnknownEvent struct {
	Tag string
	Raw json.RawMessage
}

func (CursorEvent) eventTag() string  { return "cursor" }
func (MoveEvent) eventTag() string    { return "item_move" }
func (AddEvent) eventTag() string     { return "add_item" }
func (DeleteEvent) eventTag() string  { return "delete_item" }
func (ResizeEvent) eventTag() string  { return "resize_item" }
func (ClearEvent) eventTag() string   { return "clear_canvas" }
func (UploadEvent) eventTag() string  { return "upload" }
func (UnknownEvent) eventTag() string { return "unknown" }

// Decode parses one inbound frame into its event variant. A missing or
// empty type tag is an error; an unrecognized tag is not.
func Decode(raw []byte) (Event, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("decode event: missing type tag")
	}

	switch env.Type {
	case "cursor":
		var ev CursorEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("decode cursor: %w", err)
		}
		return ev, nil
	case "item_move":
		var ev MoveEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("decode item_move: %w", err)
		}
		return ev, nil
	case "add_item":
		var ev AddEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("decode add_item: %w", err)
		}
		if ev.Item.ID == "" {
			return nil, fmt.Errorf("decode add_item: item.id required")
		}
		return ev, nil
	case "delete_item":
		var ev DeleteEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("decode delete_item: %w", err)
		}
		return ev, nil
	case "resize_item":
		var ev ResizeEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("decode resize_item: %w", err)
		}
		return ev, nil
	case "clear_canvas":
		return ClearEvent{Type: env.Type}, nil
	case "upload":
		var ev UploadEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("decode upload: %w", err)
		}
		return ev, nil
	default:
		return UnknownEvent{Tag: env.Type, Raw: append(json.RawMessage(nil), raw...)}, nil
	}
}
