package roomlog

import (
	"errors"
	"slices"

	"github.com/nfrund/huddle/internal/domain"
	"github.com/nfrund/huddle/internal/idgen"
)

// Store holds one Log per configured room. The room set is fixed at
// construction, so the map is never written afterwards and needs no lock.
type Store struct {
	rooms []string
	logs  map[string]*Log
}

// NewStore creates a log for every distinct name in rooms. All logs share ids
// and opts.
func NewStore(rooms []string, ids *idgen.Generator, opts ...Option) *Store {
	s := &Store{logs: make(map[string]*Log, len(rooms))}
	for _, name := range rooms {
		if name == "" {
			continue
		}
		if _, dup := s.logs[name]; dup {
			continue
		}
		s.rooms = append(s.rooms, name)
		s.logs[name] = NewLog(name, ids, opts...)
	}
	return s
}

// Rooms returns the configured room names in configuration order.
func (s *Store) Rooms() []string {
	return slices.Clone(s.rooms)
}

// Has reports whether room is configured.
func (s *Store) Has(room string) bool {
	_, ok := s.logs[room]
	return ok
}

// Room returns the log for room or an *domain.UnknownRoomError.
func (s *Store) Room(room string) (*Log, error) {
	l, ok := s.logs[room]
	if !ok {
		return nil, &domain.UnknownRoomError{Room: room}
	}
	return l, nil
}

// Find looks message id up across every room.
func (s *Store) Find(id int64) (domain.Message, error) {
	for _, name := range s.rooms {
		if m, ok := s.logs[name].Find(id); ok {
			return m, nil
		}
	}
	return domain.Message{}, &domain.NotFoundError{MessageID: id}
}

// AddReaction applies a reaction to message id in whichever room holds it and
// returns that room with the new count.
//
// The scan is bounded by room count times log capacity.
func (s *Store) AddReaction(id int64, symbol string) (room string, count int, err error) {
	for _, name := range s.rooms {
		count, err = s.logs[name].AddReaction(id, symbol)
		if err == nil {
			return name, count, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return "", 0, err
		}
	}
	return "", 0, &domain.NotFoundError{MessageID: id}
}

// MarkRead records a read receipt on message id in whichever room holds it.
func (s *Store) MarkRead(id int64, username string) (room string, changed bool, err error) {
	for _, name := range s.rooms {
		changed, err = s.logs[name].MarkRead(id, username)
		if err == nil {
			return name, changed, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return "", false, err
		}
	}
	return "", false, &domain.NotFoundError{MessageID: id}
}

// FindFile returns the file payload of message id if it is still retained.
func (s *Store) FindFile(id int64) (*domain.FilePayload, error) {
	m, err := s.Find(id)
	if err != nil {
		return nil, err
	}
	if m.File == nil {
		return nil, &domain.NotFoundError{MessageID: id}
	}
	return m.File, nil
}
