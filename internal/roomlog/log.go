// Package roomlog keeps the bounded recent-message history of each room.
//
// A Log is a fixed-capacity ring buffer with an id index, so appends,
// evictions and id lookups are O(1). Every read returns deep copies, which
// gives callers a consistent snapshot without holding the lock.
package roomlog

import (
	"log/slog"
	"sync"

	"github.com/nfrund/huddle/internal/domain"
	"github.com/nfrund/huddle/internal/idgen"
)

// DefaultCapacity is the number of messages a room keeps.
const DefaultCapacity = 100

// EvictHook is called with each message dropped from the head of a log. It
// runs after the log lock is released.
type EvictHook func(msg domain.Message)

// Option configures a Log.
type Option func(*Log)

// WithCapacity sets the number of retained messages. Values below one are
// ignored.
func WithCapacity(n int) Option {
	return func(l *Log) {
		if n > 0 {
			l.capacity = n
		}
	}
}

// WithEvictHook registers fn to release resources tied to evicted messages.
func WithEvictHook(fn EvictHook) Option {
	return func(l *Log) {
		l.onEvict = fn
	}
}

// Log is the message history of a single room.
type Log struct {
	room     string
	ids      *idgen.Generator
	capacity int
	onEvict  EvictHook
	logger   *slog.Logger

	mu    sync.RWMutex
	buf   []*domain.Message
	head  int
	size  int
	index map[int64]*domain.Message
}

// NewLog creates an empty log for room. ids assigns identifiers to messages
// appended without one and is normally shared by every room.
func NewLog(room string, ids *idgen.Generator, opts ...Option) *Log {
	l := &Log{
		room:     room,
		ids:      ids,
		capacity: DefaultCapacity,
		logger:   slog.Default().With("component", "roomlog", "room", room),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.buf = make([]*domain.Message, l.capacity)
	l.index = make(map[int64]*domain.Message, l.capacity)
	return l
}

// Room returns the name of the room this log belongs to.
func (l *Log) Room() string { return l.room }

// Capacity returns the maximum number of retained messages.
func (l *Log) Capacity() int { return l.capacity }

// Append stores a copy of msg at the tail, assigning an id when msg.ID is zero,
// and evicts the oldest message when the log is full.
func (l *Log) Append(msg *domain.Message) int64 {
	return l.AppendFunc(msg, nil)
}

// AppendFunc is Append with a stamp hook. stamp sees the stored copy once its
// id is assigned and before it becomes visible to readers. Ids are drawn under
// the log lock, so they increase in log order.
func (l *Log) AppendFunc(msg *domain.Message, stamp func(*domain.Message)) int64 {
	stored := msg.Clone()
	stored.Room = l.room

	var evicted *domain.Message

	l.mu.Lock()
	if stored.ID == 0 {
		stored.ID = l.ids.Next()
	}
	if stamp != nil {
		stamp(&stored)
	}
	tail := (l.head + l.size) % l.capacity
	if l.size == l.capacity {
		evicted = l.buf[l.head]
		delete(l.index, evicted.ID)
		l.head = (l.head + 1) % l.capacity
		l.size--
	}
	l.buf[tail] = &stored
	l.index[stored.ID] = &stored
	l.size++
	l.mu.Unlock()

	if evicted != nil {
		l.logger.Debug("Evicted message", "message_id", evicted.ID)
		if l.onEvict != nil {
			l.onEvict(*evicted)
		}
	}
	return stored.ID
}

// Find returns a copy of the message with id.
func (l *Log) Find(id int64) (domain.Message, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	m, ok := l.index[id]
	if !ok {
		return domain.Message{}, false
	}
	return m.Clone(), true
}

// AddReaction increments the count of symbol on message id and returns the
// new count.
func (l *Log) AddReaction(id int64, symbol string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.index[id]
	if !ok {
		return 0, &domain.NotFoundError{MessageID: id}
	}
	if m.Reactions == nil {
		m.Reactions = make(map[string]int)
	}
	m.Reactions[symbol]++
	return m.Reactions[symbol], nil
}

// SetReaction overwrites the count of symbol on message id. Mirrors of a
// remote log use it to apply counts reported by the server.
func (l *Log) SetReaction(id int64, symbol string, count int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.index[id]
	if !ok {
		return &domain.NotFoundError{MessageID: id}
	}
	if m.Reactions == nil {
		m.Reactions = make(map[string]int)
	}
	m.Reactions[symbol] = count
	return nil
}

// MarkRead records that username has read message id. Only the first call
// for a given reader reports true.
func (l *Log) MarkRead(id int64, username string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.index[id]
	if !ok {
		return false, &domain.NotFoundError{MessageID: id}
	}
	if m.HasReader(username) {
		return false, nil
	}
	m.ReadBy = append(m.ReadBy, username)
	return true, nil
}

// Slice returns up to limit messages ending offset messages before the newest,
// oldest first.
func (l *Log) Slice(limit, offset int) ([]domain.Message, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	start, end, hasMore := Window(l.size, limit, offset)
	return l.copyRangeUnsafe(start, end), hasMore
}

// Messages returns the whole retained history, oldest first.
func (l *Log) Messages() []domain.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.copyRangeUnsafe(0, l.size)
}

// Len returns the number of retained messages.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

// copyRangeUnsafe copies logical positions [start, end) without locking.
func (l *Log) copyRangeUnsafe(start, end int) []domain.Message {
	out := make([]domain.Message, 0, max(end-start, 0))
	for i := start; i < end; i++ {
		out = append(out, l.buf[(l.head+i)%l.capacity].Clone())
	}
	return out
}
