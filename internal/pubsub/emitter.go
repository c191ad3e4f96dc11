package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nfrund/huddle/internal/domain"
)

// metaKeyEvent carries the outbound event name for tracing and logs.
const metaKeyEvent = "event"

// Envelope is a domain.Delivery after a trip over the bus. Data stays encoded
// so the transport can splice it into a frame without decoding it again.
type Envelope struct {
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data"`
	To      []string        `json:"to,omitempty"`
	All     bool            `json:"all,omitempty"`
	Exclude string          `json:"exclude,omitempty"`
}

// Deliveries is the topic every outbound event travels on.
var Deliveries = NewEvent[Envelope]("ws.deliver", "Outbound event addressed to one or more sessions")

// BusEmitter implements domain.Emitter by publishing each delivery on the bus.
type BusEmitter struct {
	pub Publisher
}

// NewBusEmitter returns an emitter publishing on pub.
func NewBusEmitter(pub Publisher) *BusEmitter {
	return &BusEmitter{pub: pub}
}

// Emit encodes d and publishes it on the Deliveries topic.
func (e *BusEmitter) Emit(ctx context.Context, d domain.Delivery) error {
	data, err := json.Marshal(d.Data)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", d.Event, err)
	}
	env := Envelope{
		Event:   d.Event,
		Data:    data,
		To:      d.To,
		All:     d.All,
		Exclude: d.Exclude,
	}
	if err := Publish(ctx, e.pub, Deliveries, env, map[string]string{metaKeyEvent: d.Event}); err != nil {
		return fmt.Errorf("publish %s: %w", d.Event, err)
	}
	return nil
}
