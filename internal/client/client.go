// Package client is a thin WebSocket client for the chat server. It keeps a
// local mirror of the current room and reconciles its own optimistic sends
// with the ids the server assigns.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nfrund/huddle/internal/domain"
	"github.com/nfrund/huddle/internal/idgen"
	"github.com/nfrund/huddle/internal/roomlog"
	ws "github.com/nfrund/huddle/internal/websocket"
)

const (
	handshakeTimeout = 10 * time.Second
	writeWait        = 10 * time.Second
	eventBuffer      = 128
)

// ErrClosed is returned by calls made after the connection went away.
var ErrClosed = errors.New("client: connection closed")

// ServerError is an error frame returned for one request.
type ServerError struct {
	Event   string
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Event, e.Message)
}

// Client is one chat session.
type Client struct {
	conn   *websocket.Conn
	logger *slog.Logger
	clock  idgen.Clock

	sessionID string
	nextAck   atomic.Int64
	writeMu   sync.Mutex

	mu       sync.Mutex
	pending  map[int64]*call
	username string
	room     string
	mirror   *roomlog.Log
	outbox   []*domain.Message
	closed   bool

	events chan ws.Frame
	done   chan struct{}
	err    error
}

// Option configures a Client.
type Option func(*dialOptions)

type dialOptions struct {
	header http.Header
	dialer *websocket.Dialer
	clock  idgen.Clock
}

// WithOrigin sets the Origin header sent on the upgrade request.
func WithOrigin(origin string) Option {
	return func(o *dialOptions) { o.header.Set("Origin", origin) }
}

// WithDialer replaces the default dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(o *dialOptions) { o.dialer = d }
}

// WithClock sets the clock stamping optimistic messages.
func WithClock(c idgen.Clock) Option {
	return func(o *dialOptions) { o.clock = c }
}

// Dial connects to url and waits for the server to announce the session id.
func Dial(ctx context.Context, url string, opts ...Option) (*Client, error) {
	o := dialOptions{
		header: http.Header{},
		dialer: &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		clock:  idgen.SystemClock{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	conn, _, err := o.dialer.DialContext(ctx, url, o.header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}
	var hello ws.Frame
	if err := conn.ReadJSON(&hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("read greeting: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	var connected domain.ConnectedEvent
	if hello.Event != domain.EventConnected || json.Unmarshal(hello.Data, &connected) != nil {
		conn.Close()
		return nil, fmt.Errorf("unexpected greeting %q", hello.Event)
	}

	c := &Client{
		conn:      conn,
		logger:    slog.Default().With("component", "client", "sessionID", connected.SessionID),
		clock:     o.clock,
		sessionID: connected.SessionID,
		pending:   make(map[int64]*call),
		events:    make(chan ws.Frame, eventBuffer),
		done:      make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// SessionID is the handle the server assigned to this connection.
func (c *Client) SessionID() string { return c.sessionID }

// Events delivers every frame that is not a reply, after it has been applied
// to the mirror. The channel closes with the connection.
func (c *Client) Events() <-chan ws.Frame { return c.events }

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err reports why the connection ended.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Room is the room the mirror currently follows.
func (c *Client) Room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

// Messages returns the mirrored room history followed by sends still
// waiting for their ack.
func (c *Client) Messages() []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.Message
	if c.mirror != nil {
		out = c.mirror.Messages()
	}
	for _, m := range c.outbox {
		out = append(out, m.Clone())
	}
	return out
}

// Join announces username and starts mirroring room, which must be the
// server's default room.
func (c *Client) Join(ctx context.Context, username, room string) error {
	if _, err := c.request(ctx, domain.EventJoin, map[string]string{"username": username}); err != nil {
		return err
	}
	c.mu.Lock()
	c.username = username
	c.mu.Unlock()
	_, err := c.SwitchRoom(ctx, room)
	return err
}

// SwitchRoom moves the session to room and replaces the mirror with the
// server's window of its history.
func (c *Client) SwitchRoom(ctx context.Context, room string) ([]domain.Message, error) {
	reply, err := c.request(ctx, domain.EventJoinRoom, map[string]string{"room": room})
	if err != nil {
		return nil, err
	}
	var window domain.RoomMessagesEvent
	if err := json.Unmarshal(reply.Data, &window); err != nil {
		return nil, fmt.Errorf("decode room window: %w", err)
	}

	mirror := roomlog.NewLog(window.Room, idgen.New(0))
	for i := range window.Messages {
		mirror.Append(&window.Messages[i])
	}
	c.mu.Lock()
	c.room = window.Room
	c.mirror = mirror
	c.outbox = nil
	c.mu.Unlock()
	return window.Messages, nil
}

// Send posts body to the current room. The message shows up in Messages at
// once and moves into the mirror under the server's id when the ack arrives;
// a rejected send is withdrawn.
func (c *Client) Send(ctx context.Context, body string) (domain.Message, error) {
	c.mu.Lock()
	room := c.room
	local := domain.NewMessage(domain.KindNormal, c.username, c.sessionID, c.clock.Now())
	local.Text = body
	local.Room = room
	c.outbox = append(c.outbox, local)
	c.mu.Unlock()

	// The hook runs on the read loop, so frames that follow the ack are
	// mirrored after this message.
	settle := func(reply ws.Frame) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.withdrawUnsafe(local)
		var ack domain.MessageAck
		if reply.Event != domain.EventAck || json.Unmarshal(reply.Data, &ack) != nil || !ack.Success {
			return
		}
		local.ID = ack.MessageID
		if c.mirror != nil && c.room == room {
			c.mirror.Append(local)
		}
	}
	_, err := c.requestWith(ctx, domain.EventSendMessage, map[string]string{"room": room, "body": body}, settle)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.withdrawUnsafe(local)
		return domain.Message{}, err
	}
	return local.Clone(), nil
}

// withdrawUnsafe drops msg from the outbox. Callers hold c.mu.
func (c *Client) withdrawUnsafe(msg *domain.Message) {
	for i, m := range c.outbox {
		if m == msg {
			c.outbox = append(c.outbox[:i], c.outbox[i+1:]...)
			return
		}
	}
}

// SendPrivate delivers body to one session. Private messages are not mirrored.
func (c *Client) SendPrivate(ctx context.Context, to, body string) (domain.MessageAck, error) {
	reply, err := c.request(ctx, domain.EventSendPrivateMessage, map[string]string{"to": to, "body": body})
	if err != nil {
		return domain.MessageAck{}, err
	}
	var ack domain.MessageAck
	if err := json.Unmarshal(reply.Data, &ack); err != nil {
		return domain.MessageAck{}, fmt.Errorf("decode ack: %w", err)
	}
	return ack, nil
}

// SendFile uploads a file to the current room. It appears in the mirror when
// the server echoes it back.
func (c *Client) SendFile(ctx context.Context, name, mimeType string, data []byte) error {
	_, err := c.request(ctx, domain.EventSendFile, map[string]any{
		"room":      c.Room(),
		"fileName":  name,
		"fileType":  mimeType,
		"fileBytes": data,
	})
	return err
}

// SetTyping reports whether the user is typing in the current room.
func (c *Client) SetTyping(ctx context.Context, typing bool) error {
	_, err := c.request(ctx, domain.EventSetTyping, map[string]any{"room": c.Room(), "isTyping": typing})
	return err
}

// React adds symbol to message id.
func (c *Client) React(ctx context.Context, id int64, symbol string) error {
	_, err := c.request(ctx, domain.EventAddReaction, map[string]any{"messageId": id, "symbol": symbol})
	return err
}

// MarkRead records that this user has read message id.
func (c *Client) MarkRead(ctx context.Context, id int64) error {
	_, err := c.request(ctx, domain.EventMarkRead, map[string]any{"messageId": id})
	return err
}

// LoadMessages fetches an older window of room without touching the mirror.
func (c *Client) LoadMessages(ctx context.Context, room string, limit, offset int) (domain.Page, error) {
	reply, err := c.request(ctx, domain.EventLoadMessages, map[string]any{"room": room, "limit": limit, "offset": offset})
	if err != nil {
		return domain.Page{}, err
	}
	var page domain.Page
	if err := json.Unmarshal(reply.Data, &page); err != nil {
		return domain.Page{}, fmt.Errorf("decode page: %w", err)
	}
	return page, nil
}

// Close says goodbye and closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if f, err := ws.NewFrame(domain.EventDisconnect, nil, nil); err == nil {
		_ = c.write(f)
	}
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	c.writeMu.Unlock()

	select {
	case <-c.done:
	case <-time.After(writeWait):
	}
	return c.conn.Close()
}

// call is a request waiting for its reply.
type call struct {
	reply   chan ws.Frame
	onReply func(ws.Frame)
}

// request sends event with a fresh ack id and waits for the matching reply.
func (c *Client) request(ctx context.Context, event string, data any) (ws.Frame, error) {
	return c.requestWith(ctx, event, data, nil)
}

// requestWith is request with a hook run on the read loop as the reply
// arrives.
func (c *Client) requestWith(ctx context.Context, event string, data any, onReply func(ws.Frame)) (ws.Frame, error) {
	id := c.nextAck.Add(1)
	ch := make(chan ws.Frame, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ws.Frame{}, ErrClosed
	}
	c.pending[id] = &call{reply: ch, onReply: onReply}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	f, err := ws.NewFrame(event, &id, data)
	if err != nil {
		return ws.Frame{}, err
	}
	if err := c.write(f); err != nil {
		return ws.Frame{}, err
	}

	select {
	case reply := <-ch:
		if reply.Event == domain.EventError {
			var body domain.ErrorEvent
			_ = json.Unmarshal(reply.Data, &body)
			return ws.Frame{}, &ServerError{Event: event, Message: body.Error}
		}
		return reply, nil
	case <-ctx.Done():
		return ws.Frame{}, ctx.Err()
	case <-c.done:
		return ws.Frame{}, ErrClosed
	}
}

func (c *Client) write(f ws.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(f); err != nil {
		return fmt.Errorf("write %s: %w", f.Event, err)
	}
	return nil
}

// readLoop routes replies to their waiting request and everything else
// through the mirror to Events.
func (c *Client) readLoop() {
	defer close(c.events)
	for {
		var f ws.Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			c.mu.Lock()
			c.closed = true
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.err = err
			}
			c.mu.Unlock()
			close(c.done)
			return
		}

		if f.Ack != nil {
			c.mu.Lock()
			pc := c.pending[*f.Ack]
			c.mu.Unlock()
			if pc != nil {
				if pc.onReply != nil {
					pc.onReply(f)
				}
				pc.reply <- f
			}
			continue
		}

		c.apply(f)
		select {
		case c.events <- f:
		default:
			c.logger.Warn("Event queue full, dropping event", "event", f.Event)
		}
	}
}

// apply folds a server event into the mirror.
func (c *Client) apply(f ws.Frame) {
	c.mu.Lock()
	mirror, room := c.mirror, c.room
	c.mu.Unlock()
	if mirror == nil {
		return
	}

	switch f.Event {
	case domain.EventReceiveMessage, domain.EventReceiveFile:
		var msg domain.Message
		if err := json.Unmarshal(f.Data, &msg); err != nil || msg.Room != room {
			return
		}
		mirror.Append(&msg)

	case domain.EventReactionAdded:
		var ev domain.ReactionEvent
		if json.Unmarshal(f.Data, &ev) == nil {
			_ = mirror.SetReaction(ev.MessageID, ev.Symbol, ev.Count)
		}

	case domain.EventMessageRead:
		var ev domain.ReadEvent
		if json.Unmarshal(f.Data, &ev) == nil {
			_, _ = mirror.MarkRead(ev.MessageID, ev.Username)
		}
	}
}
