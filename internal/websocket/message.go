package websocket

import (
	"encoding/json"
	"fmt"

	"github.com/nfrund/huddle/internal/domain"
)

// Frame is the JSON envelope exchanged over a connection in both directions.
// Inbound frames may carry an Ack id; the reply to such a frame echoes it.
type Frame struct {
	Event string          `json:"event"`
	Ack   *int64          `json:"ack,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// success is the ack payload for operations that have nothing else to say.
var success = struct {
	Success bool `json:"success"`
}{Success: true}

// NewFrame encodes data as the payload of an event frame.
func NewFrame(event string, ack *int64, data any) (Frame, error) {
	f := Frame{Event: event, Ack: ack}
	if data == nil {
		return f, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Frame{}, fmt.Errorf("encode %s frame: %w", event, err)
	}
	f.Data = raw
	return f, nil
}

// ErrorFrame reports a failed inbound event.
func ErrorFrame(ack *int64, err error) Frame {
	f, encErr := NewFrame(domain.EventError, ack, domain.ErrorEvent{Success: false, Error: err.Error()})
	if encErr != nil {
		return Frame{Event: domain.EventError, Ack: ack}
	}
	return f
}

// ParseFrame decodes an inbound frame.
func ParseFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: malformed frame", domain.ErrInvalidPayload)
	}
	if f.Event == "" {
		return Frame{}, fmt.Errorf("%w: frame has no event", domain.ErrInvalidPayload)
	}
	return f, nil
}
