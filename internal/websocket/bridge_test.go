package websocket_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/huddle/internal/domain"
	"github.com/nfrund/huddle/internal/idgen"
	"github.com/nfrund/huddle/internal/presence"
	"github.com/nfrund/huddle/internal/pubsub"
	"github.com/nfrund/huddle/internal/roomlog"
	"github.com/nfrund/huddle/internal/router"
	"github.com/nfrund/huddle/internal/session"
	"github.com/nfrund/huddle/internal/typing"
	ws "github.com/nfrund/huddle/internal/websocket"
)

type testServer struct {
	url    string
	bridge *ws.Bridge
}

func newTestServer(t *testing.T, opts ...ws.Option) *testServer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	ids := idgen.New(0)
	sessions := session.NewRegistry()
	agg := typing.NewAggregator()
	rooms := roomlog.NewStore([]string{"general", "random"}, ids)

	bus := pubsub.NewWatermillBridge()
	t.Cleanup(func() { _ = bus.Close() })
	emitter := pubsub.NewBusEmitter(bus)

	rt := router.New(router.Deps{
		Sessions: sessions,
		Typing:   agg,
		Rooms:    rooms,
		Presence: presence.NewBroadcaster(sessions, agg, emitter, presence.WithIDs(ids)),
		Emitter:  emitter,
		IDs:      ids,
	}, router.WithDefaultRoom("general"))

	bridge := ws.NewBridge(rt, opts...)
	go bridge.Run(ctx)
	require.NoError(t, pubsub.Subscribe(ctx, bus, pubsub.Deliveries, bridge.Deliver))

	e := echo.New()
	e.GET("/ws", bridge.Handler())
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	return &testServer{url: "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws", bridge: bridge}
}

func (s *testServer) dial(t *testing.T) (*websocket.Conn, string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, s.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })

	f := readUntil(t, conn, domain.EventConnected)
	var hello domain.ConnectedEvent
	require.NoError(t, json.Unmarshal(f.Data, &hello))
	require.NotEmpty(t, hello.SessionID)
	return conn, hello.SessionID
}

func send(t *testing.T, conn *websocket.Conn, event string, ack *int64, data any) {
	t.Helper()
	f, err := ws.NewFrame(event, ack, data)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, conn, f))
}

// readUntil skips frames until one named event arrives.
func readUntil(t *testing.T, conn *websocket.Conn, event string) ws.Frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		var f ws.Frame
		require.NoError(t, wsjson.Read(ctx, conn, &f), "waiting for %s", event)
		if f.Event == event {
			return f
		}
	}
}

func ackID(n int64) *int64 { return &n }

func TestBridge_ConnectedFrameCarriesSessionID(t *testing.T) {
	srv := newTestServer(t)
	_, first := srv.dial(t)
	_, second := srv.dial(t)

	assert.NotEqual(t, first, second)
	assert.Eventually(t, func() bool { return srv.bridge.Len() == 2 }, time.Second, 10*time.Millisecond)
}

func TestBridge_RoomMessageRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	alice, _ := srv.dial(t)
	bob, _ := srv.dial(t)

	send(t, alice, domain.EventJoin, ackID(1), "alice")
	ack := readUntil(t, alice, domain.EventAck)
	require.NotNil(t, ack.Ack)
	assert.Equal(t, int64(1), *ack.Ack)
	assert.JSONEq(t, `{"success":true}`, string(ack.Data))

	send(t, bob, domain.EventJoin, nil, map[string]string{"username": "bob"})
	joined := readUntil(t, alice, domain.EventUserJoined)
	var ev domain.UserEvent
	require.NoError(t, json.Unmarshal(joined.Data, &ev))
	if ev.Username == "alice" {
		joined = readUntil(t, alice, domain.EventUserJoined)
		require.NoError(t, json.Unmarshal(joined.Data, &ev))
	}
	assert.Equal(t, "bob", ev.Username)

	send(t, alice, domain.EventSendMessage, ackID(7), map[string]string{"room": "general", "body": "hi bob"})

	ack = readUntil(t, alice, domain.EventAck)
	require.NotNil(t, ack.Ack)
	assert.Equal(t, int64(7), *ack.Ack)
	var msgAck domain.MessageAck
	require.NoError(t, json.Unmarshal(ack.Data, &msgAck))
	assert.True(t, msgAck.Success)
	assert.NotZero(t, msgAck.MessageID)

	got := readUntil(t, bob, domain.EventReceiveMessage)
	var msg domain.Message
	require.NoError(t, json.Unmarshal(got.Data, &msg))
	assert.Equal(t, "hi bob", msg.Text)
	assert.Equal(t, "alice", msg.Sender)
	assert.Equal(t, msgAck.MessageID, msg.ID)
}

func TestBridge_ErrorFrames(t *testing.T) {
	srv := newTestServer(t)
	conn, _ := srv.dial(t)

	t.Run("malformed frame", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("{not json")))

		f := readUntil(t, conn, domain.EventError)
		assert.Nil(t, f.Ack)
		var body domain.ErrorEvent
		require.NoError(t, json.Unmarshal(f.Data, &body))
		assert.False(t, body.Success)
		assert.NotEmpty(t, body.Error)
	})

	t.Run("unknown event echoes ack", func(t *testing.T) {
		send(t, conn, "teleport", ackID(3), map[string]string{})
		f := readUntil(t, conn, domain.EventError)
		require.NotNil(t, f.Ack)
		assert.Equal(t, int64(3), *f.Ack)
	})

	t.Run("unknown room", func(t *testing.T) {
		send(t, conn, domain.EventJoin, nil, "carol")
		send(t, conn, domain.EventSendMessage, ackID(4), map[string]string{"room": "nowhere", "body": "x"})
		f := readUntil(t, conn, domain.EventError)
		require.NotNil(t, f.Ack)
		assert.Equal(t, int64(4), *f.Ack)
		assert.Contains(t, string(f.Data), "nowhere")
	})
}

func TestBridge_JoinRoomWithoutAckRepliesRoomMessages(t *testing.T) {
	srv := newTestServer(t)
	conn, _ := srv.dial(t)

	send(t, conn, domain.EventJoin, nil, "dana")
	send(t, conn, domain.EventSendMessage, nil, map[string]string{"room": "random", "body": "first"})
	send(t, conn, domain.EventJoinRoom, nil, "random")

	f := readUntil(t, conn, domain.EventRoomMessages)
	var window domain.RoomMessagesEvent
	require.NoError(t, json.Unmarshal(f.Data, &window))
	assert.Equal(t, "random", window.Room)
	require.Len(t, window.Messages, 1)
	assert.Equal(t, "first", window.Messages[0].Text)
}

func TestBridge_DisconnectAnnouncesLeave(t *testing.T) {
	srv := newTestServer(t)
	alice, _ := srv.dial(t)
	bob, bobID := srv.dial(t)

	send(t, alice, domain.EventJoin, nil, "alice")
	readUntil(t, alice, domain.EventUserList)
	send(t, bob, domain.EventJoin, nil, "bob")
	readUntil(t, bob, domain.EventUserList)

	send(t, bob, domain.EventDisconnect, nil, nil)

	for {
		f := readUntil(t, alice, domain.EventUserLeft)
		var ev domain.UserEvent
		require.NoError(t, json.Unmarshal(f.Data, &ev))
		if ev.SessionID == bobID {
			assert.Equal(t, "bob", ev.Username)
			break
		}
	}
	assert.Eventually(t, func() bool { return srv.bridge.Len() == 1 }, time.Second, 10*time.Millisecond)
}

func TestBridge_ReadLimit(t *testing.T) {
	srv := newTestServer(t, ws.WithReadLimit(64))
	conn, _ := srv.dial(t)

	send(t, conn, domain.EventJoin, nil, strings.Repeat("x", 200))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			assert.Equal(t, websocket.StatusMessageTooBig, websocket.CloseStatus(err))
			return
		}
	}
}
