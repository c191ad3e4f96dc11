// Package presence turns session and typing changes into user_list,
// typing_users and join/leave notifications.
package presence

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nfrund/huddle/internal/domain"
	"github.com/nfrund/huddle/internal/idgen"
	"github.com/nfrund/huddle/internal/session"
	"github.com/nfrund/huddle/internal/typing"
)

// Broadcaster recomputes presence from the registry and the typing
// aggregator and hands the result to an emitter. It owns no state of its own.
type Broadcaster struct {
	sessions *session.Registry
	typing   *typing.Aggregator
	emitter  domain.Emitter
	ids      *idgen.Generator
	clock    idgen.Clock
	logger   *slog.Logger
}

// Option is a function that configures a Broadcaster.
type Option func(*Broadcaster)

// WithClock sets the clock stamped on join/leave notices.
func WithClock(c idgen.Clock) Option {
	return func(b *Broadcaster) {
		b.clock = c
	}
}

// WithIDs sets the generator used to number join/leave notices.
func WithIDs(ids *idgen.Generator) Option {
	return func(b *Broadcaster) {
		b.ids = ids
	}
}

// NewBroadcaster creates a broadcaster over the given stores.
func NewBroadcaster(sessions *session.Registry, agg *typing.Aggregator, emitter domain.Emitter, opts ...Option) *Broadcaster {
	b := &Broadcaster{
		sessions: sessions,
		typing:   agg,
		emitter:  emitter,
		clock:    idgen.SystemClock{},
		logger:   slog.Default().With("service", "presence"),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.ids == nil {
		b.ids = idgen.NewFromClock(b.clock)
	}
	return b
}

// Joined announces a newly registered session.
func (b *Broadcaster) Joined(ctx context.Context, s domain.Session) {
	b.UsersChanged(ctx)
	b.emit(ctx, domain.Delivery{
		Event: domain.EventUserJoined,
		All:   true,
		Data: domain.UserEvent{
			Username:  s.Username,
			SessionID: s.ID,
			Room:      s.CurrentRoom,
			Notice:    b.notice(s, fmt.Sprintf("%s joined the chat", s.Username)),
		},
	})
	b.typingSnapshot(ctx, s)
}

// Left announces a removed session. typingRoom is the room it was typing in
// when it left, or empty.
func (b *Broadcaster) Left(ctx context.Context, s domain.Session, typingRoom string) {
	b.UsersChanged(ctx)
	b.emit(ctx, domain.Delivery{
		Event: domain.EventUserLeft,
		All:   true,
		Data: domain.UserEvent{
			Username:  s.Username,
			SessionID: s.ID,
			Room:      s.CurrentRoom,
			Notice:    b.notice(s, fmt.Sprintf("%s left the chat", s.Username)),
		},
	})
	if typingRoom != "" {
		b.TypingChanged(ctx, typingRoom, s.ID)
	}
}

// RoomChanged announces that a session moved rooms. typingRoom is the room
// whose typing set lost the session as part of the move, or empty. The mover
// is told who is already typing in the room it entered.
func (b *Broadcaster) RoomChanged(ctx context.Context, s domain.Session, typingRoom string) {
	b.UsersChanged(ctx)
	if typingRoom != "" {
		b.TypingChanged(ctx, typingRoom, s.ID)
	}
	b.typingSnapshot(ctx, s)
}

// TypingChanged sends the current typing set of room to the room's members,
// except the session whose change triggered it.
func (b *Broadcaster) TypingChanged(ctx context.Context, room, typerID string) {
	members := session.IDs(b.sessions.InRoom(room))
	if len(members) == 0 {
		return
	}
	b.emit(ctx, domain.Delivery{
		Event:   domain.EventTypingUsers,
		To:      members,
		Exclude: typerID,
		Data: domain.TypingEvent{
			Room:      room,
			Usernames: b.typing.Usernames(room),
		},
	})
}

// typingSnapshot sends the typing set of the session's current room to that
// session alone. The other members' view is unchanged by an arrival.
func (b *Broadcaster) typingSnapshot(ctx context.Context, s domain.Session) {
	if s.CurrentRoom == "" {
		return
	}
	b.emit(ctx, domain.Delivery{
		Event: domain.EventTypingUsers,
		To:    []string{s.ID},
		Data: domain.TypingEvent{
			Room:      s.CurrentRoom,
			Usernames: b.typing.UsernamesExcept(s.CurrentRoom, s.ID),
		},
	})
}

// UsersChanged sends the full online user list to every connection.
func (b *Broadcaster) UsersChanged(ctx context.Context) {
	b.emit(ctx, domain.Delivery{
		Event: domain.EventUserList,
		All:   true,
		Data:  domain.UserListEvent{Users: b.OnlineUsers()},
	})
}

// OnlineUsers returns the current presence list.
func (b *Broadcaster) OnlineUsers() []domain.PresenceUser {
	all := b.sessions.All()
	users := make([]domain.PresenceUser, len(all))
	for i, s := range all {
		users[i] = domain.PresenceUser{
			Username:    s.Username,
			SessionID:   s.ID,
			CurrentRoom: s.CurrentRoom,
		}
	}
	return users
}

func (b *Broadcaster) notice(s domain.Session, text string) *domain.Message {
	m := domain.NewMessage(domain.KindSystem, s.Username, s.ID, b.clock.Now())
	m.ID = b.ids.Next()
	m.Text = text
	m.Room = s.CurrentRoom
	return m
}

func (b *Broadcaster) emit(ctx context.Context, d domain.Delivery) {
	if err := b.emitter.Emit(ctx, d); err != nil {
		b.logger.Error("Failed to emit presence event",
			"event", d.Event,
			"error", err)
	}
}
