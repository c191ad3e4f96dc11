package pubsub

import (
	"context"
	"encoding/json"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// TopicInfo documents a typed bus topic.
type TopicInfo struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	TypeName      string   `json:"type_name"`
	PayloadFields []string `json:"payload_fields"`
}

var (
	topicsMu sync.RWMutex
	topics   = map[string]TopicInfo{}
)

// Event[T] wraps a topic name and provides type-safe publishing.
type Event[T any] struct {
	topicName string
}

// NewEvent creates a typed event and records it in the topic list. The
// payload fields are read from the json tags of T.
func NewEvent[T any](name string, description string) Event[T] {
	var zero T
	t := reflect.TypeOf(zero)
	if t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	fields := make([]string, 0)
	typeName := ""
	if t != nil {
		typeName = t.Name()
		if t.Kind() == reflect.Struct {
			for i := 0; i < t.NumField(); i++ {
				tag := t.Field(i).Tag.Get("json")
				if tag == "" || tag == "-" {
					continue
				}
				name, _, _ := strings.Cut(tag, ",")
				fields = append(fields, name)
			}
		}
	}

	topicsMu.Lock()
	topics[name] = TopicInfo{
		Name:          name,
		Description:   description,
		TypeName:      typeName,
		PayloadFields: fields,
	}
	topicsMu.Unlock()

	return Event[T]{topicName: name}
}

// Name returns the topic name.
func (e Event[T]) Name() string {
	return e.topicName
}

// Topics lists every typed topic, sorted by name.
func Topics() []TopicInfo {
	topicsMu.RLock()
	defer topicsMu.RUnlock()

	out := make([]TopicInfo, 0, len(topics))
	for _, info := range topics {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Publish sends a typed event. The compiler ensures 'payload' matches 'T'.
func Publish[T any](ctx context.Context, p Publisher, event Event[T], payload T, metadata map[string]string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return p.Publish(ctx, Message{
		Topic:    event.Name(),
		Payload:  data,
		Metadata: metadata,
	})
}

// Subscribe registers a handler that receives decoded payloads of event.
// Payloads that fail to decode are reported as handler errors.
func Subscribe[T any](ctx context.Context, s Subscriber, event Event[T], handler func(ctx context.Context, payload T) error) error {
	return s.Subscribe(ctx, event.Name(), func(ctx context.Context, msg Message) error {
		var payload T
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return err
		}
		return handler(ctx, payload)
	})
}
