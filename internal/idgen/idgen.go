// Package idgen hands out message identifiers and the time source used to
// stamp messages.
package idgen

import (
	"sync/atomic"
	"time"
)

// Generator produces strictly increasing message ids. Ids are never derived
// from the wall clock per call, so concurrent sends cannot collide.
type Generator struct {
	last atomic.Int64
}

// New returns a Generator whose first id follows seed.
func New(seed int64) *Generator {
	g := &Generator{}
	g.last.Store(seed)
	return g
}

// NewFromClock seeds the counter with the current Unix time in milliseconds so
// ids stay roughly time-sortable across restarts.
func NewFromClock(c Clock) *Generator {
	return New(c.Now().UnixMilli())
}

// Next returns the next id.
func (g *Generator) Next() int64 {
	return g.last.Add(1)
}

// Last returns the most recently issued id, or the seed.
func (g *Generator) Last() int64 {
	return g.last.Load()
}

// Clock is the time source for message timestamps.
type Clock interface {
	Now() time.Time
}

// SystemClock reports the current UTC time.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock always reports the same instant. Tests use it.
type FixedClock time.Time

func (c FixedClock) Now() time.Time {
	return time.Time(c)
}
