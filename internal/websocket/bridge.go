package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/nfrund/huddle/internal/domain"
	"github.com/nfrund/huddle/internal/pubsub"
	"github.com/nfrund/huddle/internal/router"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Send pings to peer with this period.
	pingPeriod = 54 * time.Second
	// Outbound frames queued per connection before it is considered stuck.
	sendBuffer = 256
	// DefaultReadLimit caps a single inbound frame.
	DefaultReadLimit int64 = 1 << 20
)

// Dispatcher runs inbound events on behalf of a session.
type Dispatcher interface {
	Dispatch(ctx context.Context, sessionID, event string, raw json.RawMessage) (*router.Reply, error)
	Disconnect(ctx context.Context, sessionID string)
}

// Client is one live connection. Its ID doubles as the session id.
type Client struct {
	ID     string
	conn   *websocket.Conn
	send   chan []byte
	bridge *Bridge
	// closed is set, under the bridge lock, once send has been closed.
	closed bool
}

// shutUnsafe closes the send queue once. Callers hold the bridge lock.
func (c *Client) shutUnsafe() {
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// outbound is a routed frame waiting for the run loop.
type outbound struct {
	payload []byte
	to      []string
	all     bool
	exclude string
}

// Bridge owns every connection and moves frames between them and the router.
type Bridge struct {
	dispatcher     Dispatcher
	logger         *slog.Logger
	originPatterns []string
	readLimit      int64

	clients map[string]*Client
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	deliver    chan *outbound
	done       chan struct{}
	runOnce    sync.Once
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithOriginPatterns sets the host patterns accepted in the Origin header of
// cross-origin upgrade requests. Same-origin requests are always accepted.
func WithOriginPatterns(patterns []string) Option {
	return func(b *Bridge) { b.originPatterns = patterns }
}

// WithReadLimit caps the size of one inbound frame.
func WithReadLimit(n int64) Option {
	return func(b *Bridge) {
		if n > 0 {
			b.readLimit = n
		}
	}
}

// NewBridge initializes a new Bridge. Call Run before accepting connections.
func NewBridge(d Dispatcher, opts ...Option) *Bridge {
	b := &Bridge{
		dispatcher: d,
		logger:     slog.Default().With("component", "websocket-bridge"),
		readLimit:  DefaultReadLimit,
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliver:    make(chan *outbound),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run routes registrations and deliveries until ctx is cancelled, then
// closes every remaining connection.
func (b *Bridge) Run(ctx context.Context) {
	b.logger.Info("WebSocket bridge started")
	defer b.runOnce.Do(func() { close(b.done) })

	for {
		select {
		case client := <-b.register:
			b.mu.Lock()
			b.clients[client.ID] = client
			b.mu.Unlock()
			b.logger.Debug("Client registered", "sessionID", client.ID)

		case client := <-b.unregister:
			b.mu.Lock()
			if current, ok := b.clients[client.ID]; ok && current == client {
				delete(b.clients, client.ID)
			}
			client.shutUnsafe()
			b.mu.Unlock()
			b.logger.Debug("Client unregistered", "sessionID", client.ID)

		case msg := <-b.deliver:
			b.route(msg)

		case <-ctx.Done():
			b.mu.Lock()
			for id, client := range b.clients {
				go client.conn.Close(websocket.StatusGoingAway, "server shutting down")
				delete(b.clients, id)
				client.shutUnsafe()
			}
			b.mu.Unlock()
			b.logger.Info("WebSocket bridge stopped")
			return
		}
	}
}

// route pushes msg to every addressed client without blocking. A client whose
// queue is full is dropped; its read loop then cleans up the session.
func (b *Bridge) route(msg *outbound) {
	b.mu.Lock()
	defer b.mu.Unlock()

	push := func(client *Client) {
		select {
		case client.send <- msg.payload:
		default:
			b.logger.Warn("Client send queue full, dropping connection", "sessionID", client.ID)
			delete(b.clients, client.ID)
			client.shutUnsafe()
			client.conn.CloseNow()
		}
	}

	if msg.all {
		for id, client := range b.clients {
			if id != msg.exclude {
				push(client)
			}
		}
		return
	}
	for _, id := range msg.to {
		if id == msg.exclude {
			continue
		}
		if client, ok := b.clients[id]; ok {
			push(client)
		}
	}
}

// Deliver is the bus handler for pubsub.Deliveries. It never fails; frames
// for sessions that are gone are dropped.
func (b *Bridge) Deliver(ctx context.Context, env pubsub.Envelope) error {
	payload, err := json.Marshal(Frame{Event: env.Event, Data: env.Data})
	if err != nil {
		b.logger.Error("Failed to encode delivery", "event", env.Event, "error", err)
		return nil
	}
	msg := &outbound{payload: payload, to: env.To, all: env.All, exclude: env.Exclude}
	select {
	case b.deliver <- msg:
	case <-b.done:
	case <-ctx.Done():
	}
	return nil
}

// Len reports the number of live connections.
func (b *Bridge) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Handler upgrades the request and serves the connection until it closes.
func (b *Bridge) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
			OriginPatterns: b.originPatterns,
		})
		if err != nil {
			// Accept has already written the HTTP error.
			b.logger.Warn("WebSocket upgrade failed", "error", err)
			return nil
		}
		conn.SetReadLimit(b.readLimit)

		client := &Client{
			ID:     uuid.NewString(),
			conn:   conn,
			send:   make(chan []byte, sendBuffer),
			bridge: b,
		}
		// The queue is private until registration, so the greeting is first.
		connected, _ := NewFrame(domain.EventConnected, nil, domain.ConnectedEvent{SessionID: client.ID})
		client.write(connected)

		select {
		case b.register <- client:
		case <-b.done:
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return nil
		}

		ctx, cancel := context.WithCancel(c.Request().Context())
		defer cancel()
		go client.writePump(ctx)
		client.readPump(ctx)
		return nil
	}
}

// readPump runs inbound frames through the dispatcher in arrival order.
func (c *Client) readPump(ctx context.Context) {
	logger := c.bridge.logger.With("sessionID", c.ID)
	defer func() {
		c.bridge.dispatcher.Disconnect(context.WithoutCancel(ctx), c.ID)
		select {
		case c.bridge.unregister <- c:
		case <-c.bridge.done:
		}
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				logger.Info("WebSocket closed by client")
			default:
				if !errors.Is(err, context.Canceled) {
					logger.Debug("WebSocket read ended", "error", err)
				}
			}
			return
		}
		if !c.handle(ctx, data) {
			return
		}
	}
}

// handle processes one inbound frame. It returns false when the client asked
// to leave.
func (c *Client) handle(ctx context.Context, data []byte) bool {
	frame, err := ParseFrame(data)
	if err != nil {
		c.write(ErrorFrame(nil, err))
		return true
	}
	if frame.Event == domain.EventDisconnect {
		return false
	}

	reply, err := c.bridge.dispatcher.Dispatch(ctx, c.ID, frame.Event, frame.Data)
	if err != nil {
		c.bridge.logger.Debug("Inbound event failed", "sessionID", c.ID, "event", frame.Event, "error", err)
		c.write(ErrorFrame(frame.Ack, err))
		return true
	}

	var out Frame
	switch {
	case frame.Ack != nil && reply != nil:
		out, err = NewFrame(domain.EventAck, frame.Ack, reply.Data)
	case frame.Ack != nil:
		out, err = NewFrame(domain.EventAck, frame.Ack, success)
	case reply != nil:
		out, err = NewFrame(reply.Event, nil, reply.Data)
	default:
		return true
	}
	if err != nil {
		c.write(ErrorFrame(frame.Ack, err))
		return true
	}
	c.write(out)
	return true
}

// write queues a reply frame unless the connection is already shut.
func (c *Client) write(f Frame) {
	payload, err := json.Marshal(f)
	if err != nil {
		c.bridge.logger.Error("Failed to encode frame", "event", f.Event, "error", err)
		return
	}
	c.bridge.mu.RLock()
	defer c.bridge.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.send <- payload:
	default:
		c.bridge.logger.Warn("Client send queue full, reply dropped", "sessionID", c.ID, "event", f.Event)
	}
}

// writePump sends queued frames and keeps the connection alive.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(wctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				c.bridge.logger.Debug("WebSocket write error", "sessionID", c.ID, "error", err)
				return
			}

		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				c.bridge.logger.Debug("WebSocket ping failed", "sessionID", c.ID, "error", err)
				return
			}

		case <-ctx.Done():
			return
		}
	}
}
