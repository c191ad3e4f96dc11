package testutils

import (
	"context"
	"slices"
	"sync"

	"github.com/nfrund/huddle/internal/domain"
)

// RecordingEmitter implements domain.Emitter by keeping every delivery in
// memory so tests can assert on what would have been sent.
type RecordingEmitter struct {
	mu         sync.Mutex
	deliveries []domain.Delivery
}

// Emit records d.
func (r *RecordingEmitter) Emit(ctx context.Context, d domain.Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, d)
	return nil
}

// Deliveries returns a copy of everything emitted so far.
func (r *RecordingEmitter) Deliveries() []domain.Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.deliveries)
}

// ByEvent returns the recorded deliveries named event, in emission order.
func (r *RecordingEmitter) ByEvent(event string) []domain.Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.Delivery
	for _, d := range r.deliveries {
		if d.Event == event {
			out = append(out, d)
		}
	}
	return out
}

// Last returns the most recent delivery named event.
func (r *RecordingEmitter) Last(event string) (domain.Delivery, bool) {
	all := r.ByEvent(event)
	if len(all) == 0 {
		return domain.Delivery{}, false
	}
	return all[len(all)-1], true
}

// Reset forgets every recorded delivery.
func (r *RecordingEmitter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = nil
}

// ReceivedBy reports whether d would reach sessionID.
func ReceivedBy(d domain.Delivery, sessionID string) bool {
	if sessionID == d.Exclude {
		return false
	}
	return d.All || slices.Contains(d.To, sessionID)
}
