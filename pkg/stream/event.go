package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Type is the event discriminant carried in the "type" field.
type Type string

const (
	TypeStatus   Type = "status"
	TypeResult   Type = "result"
	TypeComplete Type = "complete"
	TypeError    Type = "error"
)

func (t Type) Known() bool {
	switch t {
	case TypeStatus, TypeResult, TypeComplete, TypeError:
		return true
	}
	return false
}

// Event is one decoded stream event. Raw holds the full JSON object so each flow can decode the
// field set it cares about.
type Event struct {
	Type Type
	Raw  json.RawMessage
}

// ErrMissingType is returned by ParseEvent for JSON objects without a "type" field.
var ErrMissingType = errors.New("stream: event has no type")

// ParseEvent decodes one frame payload. Unknown types are returned as-is; callers decide whether
// to skip them.
func ParseEvent(data []byte) (Event, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	t := strings.ToLower(strings.TrimSpace(head.Type))
	if t == "" {
		return Event{}, ErrMissingType
	}
	raw := make(json.RawMessage, len(data))
	copy(raw, data)
	return Event{Type: Type(t), Raw: raw}, nil
}

// NewEvent builds an event of type t from payload, which must encode as a JSON object. Any "type"
// field in payload is replaced.
func NewEvent(t Type, payload any) (Event, error) {
	fields := map[string]json.RawMessage{}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("encode %s event: %w", t, err)
		}
		if err := json.Unmarshal(b, &fields); err != nil {
			return Event{}, fmt.Errorf("encode %s event: payload is not an object: %w", t, err)
		}
	}
	typ, _ := json.Marshal(string(t))
	fields["type"] = typ
	raw, err := json.Marshal(fields)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s event: %w", t, err)
	}
	return Event{Type: t, Raw: raw}, nil
}

// Decode unmarshals the raw event into v.
func (e Event) Decode(v any) error {
	if len(e.Raw) == 0 {
		return fmt.Errorf("decode %s event: empty payload", e.Type)
	}
	if err := json.Unmarshal(e.Raw, v); err != nil {
		return fmt.Errorf("decode %s event: %w", e.Type, err)
	}
	return nil
}

// Complete is the payload of a "complete" event.
type Complete struct {
	TotalProcessed int `json:"totalProcessed"`
}

// Status is the payload of a "status" event. Processed and Total are optional.
type Status struct {
	Message   string `json:"message"`
	Processed *int   `json:"processed,omitempty"`
	Total     *int   `json:"total,omitempty"`
}

// Failure is the payload of an "error" event.
type Failure struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Text returns the best available error message.
func (f Failure) Text() string {
	if m := strings.TrimSpace(f.Message); m != "" {
		return m
	}
	if m := strings.TrimSpace(f.Error); m != "" {
		return m
	}
	return "stream reported an error"
}
