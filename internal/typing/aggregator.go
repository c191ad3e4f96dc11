// Package typing aggregates per-session typing flags into per-room sets.
package typing

import (
	"sort"
	"sync"
)

type entry struct {
	username string
	room     string
}

// Aggregator holds one typing entry per session. Setting false and removing
// are the same operation and both are idempotent.
type Aggregator struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{entries: make(map[string]entry)}
}

// Set upserts or deletes the entry for sessionID. It reports whether the
// visible state changed. When the session was previously typing in a
// different room, prevRoom names it so the caller can refresh that room too.
func (a *Aggregator) Set(sessionID, username, room string, isTyping bool) (changed bool, prevRoom string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	prev, had := a.entries[sessionID]
	if !isTyping {
		if !had {
			return false, ""
		}
		delete(a.entries, sessionID)
		if prev.room != room {
			return true, prev.room
		}
		return true, ""
	}

	next := entry{username: username, room: room}
	if had && prev == next {
		return false, ""
	}
	a.entries[sessionID] = next
	if had && prev.room != room {
		return true, prev.room
	}
	return true, ""
}

// Remove drops the entry for sessionID and returns the room it was typing in.
func (a *Aggregator) Remove(sessionID string) (room string, removed bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.entries[sessionID]
	if !ok {
		return "", false
	}
	delete(a.entries, sessionID)
	return e.room, true
}

// Usernames returns the distinct usernames typing in room, sorted.
func (a *Aggregator) Usernames(room string) []string {
	return a.UsernamesExcept(room, "")
}

// UsernamesExcept is Usernames without the entry of one session.
func (a *Aggregator) UsernamesExcept(room, sessionID string) []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	seen := make(map[string]struct{})
	names := make([]string, 0)
	for sid, e := range a.entries {
		if e.room != room || sid == sessionID {
			continue
		}
		if _, dup := seen[e.username]; dup {
			continue
		}
		seen[e.username] = struct{}{}
		names = append(names, e.username)
	}
	sort.Strings(names)
	return names
}

// RoomOf returns the room sessionID is typing in.
func (a *Aggregator) RoomOf(sessionID string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	e, ok := a.entries[sessionID]
	return e.room, ok
}
