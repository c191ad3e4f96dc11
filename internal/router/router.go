// Package router is the single entry point for every inbound messaging
// operation. It resolves the caller from the session registry, mutates room
// logs and typing state, and hands outbound events to an emitter.
//
// No operation fails because the caller has not joined: room, file and
// private messages fall back to an anonymous sender, while reactions, read
// receipts and typing updates from unjoined sessions are ignored.
package router

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/nfrund/huddle/internal/config"
	"github.com/nfrund/huddle/internal/domain"
	"github.com/nfrund/huddle/internal/idgen"
	"github.com/nfrund/huddle/internal/presence"
	"github.com/nfrund/huddle/internal/roomlog"
	"github.com/nfrund/huddle/internal/session"
	"github.com/nfrund/huddle/internal/storage"
	"github.com/nfrund/huddle/internal/typing"
)

// MaxUsernameLength bounds join usernames, in bytes.
const MaxUsernameLength = 64

// Deps are the stores and collaborators a Router works on.
type Deps struct {
	Sessions *session.Registry
	Typing   *typing.Aggregator
	Rooms    *roomlog.Store
	Presence *presence.Broadcaster
	Emitter  domain.Emitter
	IDs      *idgen.Generator
}

// Router routes inbound events.
type Router struct {
	sessions *session.Registry
	typing   *typing.Aggregator
	rooms    *roomlog.Store
	presence *presence.Broadcaster
	emitter  domain.Emitter
	ids      *idgen.Generator

	clock        idgen.Clock
	files        storage.Store
	defaultRoom  string
	scope        config.ReactionScope
	maxFileBytes int
	fileTypes    []string
	logger       *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithClock sets the clock used to timestamp messages.
func WithClock(c idgen.Clock) Option {
	return func(r *Router) { r.clock = c }
}

// WithFileStore keeps file payloads in s instead of inside the room log.
func WithFileStore(s storage.Store) Option {
	return func(r *Router) { r.files = s }
}

// WithDefaultRoom sets the room a session lands in when it joins.
func WithDefaultRoom(room string) Option {
	return func(r *Router) { r.defaultRoom = room }
}

// WithReactionScope selects who receives reaction and read receipt events.
func WithReactionScope(scope config.ReactionScope) Option {
	return func(r *Router) { r.scope = scope }
}

// WithMaxFileBytes caps the size of a single uploaded file. Zero disables it.
func WithMaxFileBytes(n int) Option {
	return func(r *Router) { r.maxFileBytes = n }
}

// WithAllowedFileTypes restricts uploads to the given media types. An empty
// list, or one containing "*", accepts any type.
func WithAllowedFileTypes(types []string) Option {
	return func(r *Router) { r.fileTypes = types }
}

// New creates a Router over deps.
func New(deps Deps, opts ...Option) *Router {
	r := &Router{
		sessions:    deps.Sessions,
		typing:      deps.Typing,
		rooms:       deps.Rooms,
		presence:    deps.Presence,
		emitter:     deps.Emitter,
		ids:         deps.IDs,
		clock:       idgen.SystemClock{},
		defaultRoom: config.DefaultRoom,
		scope:       config.ScopeGlobal,
		logger:      slog.Default().With("component", "router"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if !r.rooms.Has(r.defaultRoom) {
		if rooms := r.rooms.Rooms(); len(rooms) > 0 {
			r.defaultRoom = rooms[0]
		}
	}
	return r
}

// NormalizeName trims s and puts it in Unicode NFC so visually equal
// usernames and reaction symbols compare equal.
func NormalizeName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// Join registers sessionID under username in the default room and announces
// it.
func (r *Router) Join(ctx context.Context, sessionID, username string) (domain.Session, error) {
	username = NormalizeName(username)
	if username == "" {
		return domain.Session{}, fmt.Errorf("%w: username is required", domain.ErrInvalidPayload)
	}
	if len(username) > MaxUsernameLength {
		return domain.Session{}, fmt.Errorf("%w: username longer than %d bytes", domain.ErrInvalidPayload, MaxUsernameLength)
	}

	s, err := r.sessions.Register(sessionID, username, r.defaultRoom)
	if err != nil {
		return domain.Session{}, err
	}
	r.logger.Info("User joined", "session_id", sessionID, "username", username, "room", s.CurrentRoom)
	r.presence.Joined(ctx, s)
	return s, nil
}

// sender resolves the display name of sessionID.
func (r *Router) sender(sessionID string) string {
	if s, ok := r.sessions.Lookup(sessionID); ok {
		return s.Username
	}
	return domain.AnonymousSender
}

// PostRoomMessage appends a text message to room and sends it to every other
// session currently in the room.
func (r *Router) PostRoomMessage(ctx context.Context, sessionID, room, body string) (domain.MessageAck, error) {
	log, err := r.rooms.Room(room)
	if err != nil {
		return domain.MessageAck{}, err
	}

	msg := domain.NewMessage(domain.KindNormal, r.sender(sessionID), sessionID, r.clock.Now())
	msg.Text = body
	msg.ID = log.Append(msg)
	msg.Room = room

	r.emit(ctx, domain.Delivery{
		Event:   domain.EventReceiveMessage,
		Data:    msg,
		To:      session.IDs(r.sessions.InRoom(room)),
		Exclude: sessionID,
	})
	return domain.MessageAck{Success: true, MessageID: msg.ID}, nil
}

// FileUpload is the body of a file message.
type FileUpload struct {
	Name string
	Type string
	Data []byte
}

// PostFileMessage appends a file message to room and sends it to every
// session in the room, the sender included.
func (r *Router) PostFileMessage(ctx context.Context, sessionID, room string, upload FileUpload) (domain.Message, error) {
	log, err := r.rooms.Room(room)
	if err != nil {
		return domain.Message{}, err
	}
	if r.maxFileBytes > 0 && len(upload.Data) > r.maxFileBytes {
		return domain.Message{}, fmt.Errorf("%w: file is %d bytes, limit is %d",
			domain.ErrPayloadTooLarge, len(upload.Data), r.maxFileBytes)
	}
	fileType, err := r.fileType(upload)
	if err != nil {
		return domain.Message{}, err
	}

	msg := domain.NewMessage(domain.KindFile, r.sender(sessionID), sessionID, r.clock.Now())
	msg.Room = room
	msg.File = &domain.FilePayload{
		Name: upload.Name,
		Type: fileType,
		Size: len(upload.Data),
		Data: upload.Data,
	}

	stored := msg.Clone()
	msg.ID = log.AppendFunc(&stored, func(m *domain.Message) {
		if r.files != nil {
			m.File.URL = storage.FileURL(m.ID)
			m.File.Data = nil
		}
	})
	if r.files != nil {
		if _, err := r.files.Save(ctx, storage.FilePath(msg.ID), bytes.NewReader(upload.Data)); err != nil {
			r.logger.Error("Failed to store file payload", "message_id", msg.ID, "error", err)
		} else {
			msg.File.URL = storage.FileURL(msg.ID)
			if _, ok := log.Find(msg.ID); !ok {
				// Evicted before the payload landed; nothing will release it.
				_ = r.files.Delete(ctx, storage.FilePath(msg.ID))
			}
		}
	}

	to := session.IDs(r.sessions.InRoom(room))
	if !slices.Contains(to, sessionID) {
		to = append(to, sessionID)
	}
	r.emit(ctx, domain.Delivery{
		Event: domain.EventReceiveFile,
		Data:  msg,
		To:    to,
	})
	return *msg, nil
}

// fileType returns the normalized media type of upload, sniffing it when the
// sender gave none, and rejects types outside the allow-list.
func (r *Router) fileType(upload FileUpload) (string, error) {
	t := ""
	if upload.Type != "" {
		mt, _, err := mime.ParseMediaType(upload.Type)
		if err != nil {
			return "", fmt.Errorf("%w: malformed file type %q", domain.ErrInvalidPayload, upload.Type)
		}
		t = mt
	}
	if t == "" {
		t, _, _ = mime.ParseMediaType(http.DetectContentType(upload.Data))
	}
	if len(r.fileTypes) == 0 || slices.Contains(r.fileTypes, "*") || slices.Contains(r.fileTypes, t) {
		return t, nil
	}
	return "", fmt.Errorf("%w: file type %q is not allowed", domain.ErrInvalidPayload, t)
}

// PostPrivateMessage delivers a message to one session. Private messages are
// never stored, and the sender is acked whether or not the recipient is
// connected.
func (r *Router) PostPrivateMessage(ctx context.Context, sessionID, to, body string) (domain.MessageAck, error) {
	if to == "" {
		return domain.MessageAck{}, fmt.Errorf("%w: recipient is required", domain.ErrInvalidPayload)
	}

	msg := domain.NewMessage(domain.KindPrivate, r.sender(sessionID), sessionID, r.clock.Now())
	msg.ID = r.ids.Next()
	msg.Text = body

	r.emit(ctx, domain.Delivery{
		Event: domain.EventPrivateMessage,
		Data:  msg,
		To:    []string{to},
	})
	return domain.MessageAck{Success: true, MessageID: msg.ID}, nil
}

// ChangeRoom moves the caller to room and returns the room's recent history.
// Callers that have not joined get the history without a presence change.
func (r *Router) ChangeRoom(ctx context.Context, sessionID, room string) (domain.RoomMessagesEvent, error) {
	log, err := r.rooms.Room(room)
	if err != nil {
		return domain.RoomMessagesEvent{}, err
	}

	if s, ok := r.sessions.SetRoom(sessionID, room); ok {
		typingRoom := ""
		if prev, typingNow := r.typing.RoomOf(sessionID); typingNow && prev != room {
			r.typing.Remove(sessionID)
			typingRoom = prev
		}
		r.presence.RoomChanged(ctx, s, typingRoom)
	}

	return domain.RoomMessagesEvent{Room: room, Messages: log.Messages()}, nil
}

// SetTyping records whether the caller is composing in room.
func (r *Router) SetTyping(ctx context.Context, sessionID, room string, isTyping bool) error {
	if !r.rooms.Has(room) {
		return &domain.UnknownRoomError{Room: room}
	}
	s, ok := r.sessions.Lookup(sessionID)
	if !ok {
		return nil
	}

	changed, prevRoom := r.typing.Set(sessionID, s.Username, room, isTyping)
	if !changed {
		return nil
	}
	r.presence.TypingChanged(ctx, room, sessionID)
	if prevRoom != "" {
		r.presence.TypingChanged(ctx, prevRoom, sessionID)
	}
	return nil
}

// React increments a reaction on messageID in whichever room holds it and
// broadcasts the new count. Unjoined callers are ignored.
func (r *Router) React(ctx context.Context, sessionID string, messageID int64, symbol string) (int, error) {
	if _, ok := r.sessions.Lookup(sessionID); !ok {
		return 0, nil
	}
	symbol = NormalizeName(symbol)
	if symbol == "" {
		return 0, fmt.Errorf("%w: reaction symbol is required", domain.ErrInvalidPayload)
	}

	room, count, err := r.rooms.AddReaction(messageID, symbol)
	if err != nil {
		return 0, err
	}

	d := r.scoped(room)
	d.Event = domain.EventReactionAdded
	d.Data = domain.ReactionEvent{MessageID: messageID, Symbol: symbol, Count: count}
	r.emit(ctx, d)
	return count, nil
}

// MarkRead records that the caller read messageID and broadcasts the receipt
// the first time only. Unjoined callers are ignored.
func (r *Router) MarkRead(ctx context.Context, sessionID string, messageID int64) (bool, error) {
	s, ok := r.sessions.Lookup(sessionID)
	if !ok {
		return false, nil
	}

	room, changed, err := r.rooms.MarkRead(messageID, s.Username)
	if err != nil || !changed {
		return false, err
	}

	d := r.scoped(room)
	d.Event = domain.EventMessageRead
	d.Data = domain.ReadEvent{MessageID: messageID, Username: s.Username}
	r.emit(ctx, d)
	return true, nil
}

// LoadMessages returns a page of room's history counted back from the newest
// message. It needs no session.
func (r *Router) LoadMessages(ctx context.Context, room string, limit, offset int) (domain.Page, error) {
	log, err := r.rooms.Room(room)
	if err != nil {
		return domain.Page{}, err
	}
	msgs, hasMore := log.Slice(limit, offset)
	return domain.Page{Success: true, Messages: msgs, HasMore: hasMore}, nil
}

// Disconnect tears down every trace of sessionID. It is safe to call any
// number of times.
func (r *Router) Disconnect(ctx context.Context, sessionID string) {
	typingRoom, _ := r.typing.Remove(sessionID)
	s, ok := r.sessions.Remove(sessionID)
	if !ok {
		if typingRoom != "" {
			r.presence.TypingChanged(ctx, typingRoom, sessionID)
		}
		return
	}
	r.logger.Info("User left", "session_id", sessionID, "username", s.Username)
	r.presence.Left(ctx, s, typingRoom)
}

// Rooms lists the configured rooms.
func (r *Router) Rooms() []string {
	return r.rooms.Rooms()
}

// DefaultRoom is the room new sessions start in.
func (r *Router) DefaultRoom() string {
	return r.defaultRoom
}

// OnlineUsers lists every joined session.
func (r *Router) OnlineUsers() []domain.PresenceUser {
	return r.presence.OnlineUsers()
}

// RoomMessages returns the whole retained history of room.
func (r *Router) RoomMessages(room string) ([]domain.Message, error) {
	log, err := r.rooms.Room(room)
	if err != nil {
		return nil, err
	}
	return log.Messages(), nil
}

// FindFile exposes file metadata for downloads.
func (r *Router) FindFile(id int64) (*domain.FilePayload, error) {
	return r.rooms.FindFile(id)
}

// scoped addresses a reaction or read receipt according to the reaction scope.
func (r *Router) scoped(room string) domain.Delivery {
	if r.scope == config.ScopeRoom {
		return domain.Delivery{To: session.IDs(r.sessions.InRoom(room))}
	}
	return domain.Delivery{All: true}
}

func (r *Router) emit(ctx context.Context, d domain.Delivery) {
	if !d.All && len(d.To) == 0 {
		return
	}
	if err := r.emitter.Emit(ctx, d); err != nil {
		r.logger.Error("Failed to emit event", "event", d.Event, "error", err)
	}
}
