package router

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/nfrund/huddle/internal/config"
	"github.com/nfrund/huddle/internal/domain"
	"github.com/nfrund/huddle/internal/idgen"
	"github.com/nfrund/huddle/internal/presence"
	"github.com/nfrund/huddle/internal/roomlog"
	"github.com/nfrund/huddle/internal/session"
	"github.com/nfrund/huddle/internal/storage"
	"github.com/nfrund/huddle/internal/testutils"
	"github.com/nfrund/huddle/internal/typing"
)

var testNow = time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

type harness struct {
	router   *Router
	sessions *session.Registry
	typing   *typing.Aggregator
	rooms    *roomlog.Store
	rec      *testutils.RecordingEmitter
	fs       afero.Fs
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	ids := idgen.New(0)
	h := &harness{
		sessions: session.NewRegistry(),
		typing:   typing.NewAggregator(),
		rooms:    roomlog.NewStore([]string{"general", "random", "tech"}, ids),
		rec:      &testutils.RecordingEmitter{},
		fs:       afero.NewMemMapFs(),
	}
	clock := idgen.FixedClock(testNow)
	pres := presence.NewBroadcaster(h.sessions, h.typing, h.rec, presence.WithClock(clock), presence.WithIDs(ids))
	opts = append([]Option{
		WithClock(clock),
		WithDefaultRoom("general"),
		WithFileStore(storage.NewAferoStore(h.fs)),
	}, opts...)
	h.router = New(Deps{
		Sessions: h.sessions,
		Typing:   h.typing,
		Rooms:    h.rooms,
		Presence: pres,
		Emitter:  h.rec,
		IDs:      ids,
	}, opts...)
	return h
}

func (h *harness) join(t *testing.T, sessionID, username string) {
	t.Helper()
	_, err := h.router.Join(context.Background(), sessionID, username)
	require.NoError(t, err)
}

func (h *harness) dispatch(t *testing.T, sessionID, event string, payload any) (*Reply, error) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return h.router.Dispatch(context.Background(), sessionID, event, raw)
}

func (h *harness) logLen(t *testing.T, room string) int {
	t.Helper()
	l, err := h.rooms.Room(room)
	require.NoError(t, err)
	return l.Len()
}

func TestRouter_RoomMessageFanOut(t *testing.T) {
	h := newHarness(t)
	h.join(t, "S1", "alice")
	h.join(t, "S2", "bob")
	h.rec.Reset()

	reply, err := h.dispatch(t, "S1", domain.EventSendMessage, map[string]string{"room": "general", "body": "hello"})
	require.NoError(t, err)
	require.NotNil(t, reply)
	ack := reply.Data.(domain.MessageAck)
	assert.True(t, ack.Success)
	assert.NotZero(t, ack.MessageID)

	d, ok := h.rec.Last(domain.EventReceiveMessage)
	require.True(t, ok)
	assert.True(t, testutils.ReceivedBy(d, "S2"), "bob receives the message")
	assert.False(t, testutils.ReceivedBy(d, "S1"), "alice does not receive her own broadcast")

	msg := d.Data.(*domain.Message)
	assert.Equal(t, "alice", msg.Sender)
	assert.Equal(t, "S1", msg.SenderID)
	assert.Equal(t, "hello", msg.Text)
	assert.Equal(t, ack.MessageID, msg.ID)
	assert.Equal(t, testNow, msg.Timestamp)
	assert.Equal(t, domain.KindNormal, msg.Kind)

	stored, err := h.rooms.Find(ack.MessageID)
	require.NoError(t, err)
	assert.Equal(t, "general", stored.Room)
}

func TestRouter_RoomMessageOnlyReachesRoomMembers(t *testing.T) {
	h := newHarness(t)
	h.join(t, "S1", "alice")
	h.join(t, "S2", "bob")
	h.join(t, "S3", "carol")
	_, err := h.router.ChangeRoom(context.Background(), "S3", "random")
	require.NoError(t, err)

	_, err = h.router.PostRoomMessage(context.Background(), "S1", "general", "hi")
	require.NoError(t, err)

	d, _ := h.rec.Last(domain.EventReceiveMessage)
	assert.True(t, testutils.ReceivedBy(d, "S2"))
	assert.False(t, testutils.ReceivedBy(d, "S3"))
}

func TestRouter_AnonymousFallback(t *testing.T) {
	h := newHarness(t)
	h.join(t, "S2", "bob")

	ack, err := h.router.PostRoomMessage(context.Background(), "ghost", "general", "boo")
	require.NoError(t, err)
	assert.True(t, ack.Success)

	d, _ := h.rec.Last(domain.EventReceiveMessage)
	assert.Equal(t, domain.AnonymousSender, d.Data.(*domain.Message).Sender)
}

func TestRouter_UnknownRoom(t *testing.T) {
	h := newHarness(t)
	h.join(t, "S1", "alice")

	_, err := h.dispatch(t, "S1", domain.EventSendMessage, map[string]string{"room": "lobby", "body": "hi"})
	assert.ErrorIs(t, err, domain.ErrUnknownRoom)

	_, err = h.dispatch(t, "S1", domain.EventJoinRoom, "lobby")
	assert.ErrorIs(t, err, domain.ErrUnknownRoom)

	_, err = h.dispatch(t, "S1", domain.EventLoadMessages, map[string]any{"room": "lobby"})
	assert.ErrorIs(t, err, domain.ErrUnknownRoom)

	err = h.router.SetTyping(context.Background(), "S1", "lobby", true)
	assert.ErrorIs(t, err, domain.ErrUnknownRoom)

	// The session is still usable afterwards.
	_, err = h.dispatch(t, "S1", domain.EventSendMessage, map[string]string{"room": "general", "body": "still here"})
	assert.NoError(t, err)
}

func TestRouter_PrivateMessage(t *testing.T) {
	h := newHarness(t)
	h.join(t, "S1", "alice")
	h.join(t, "S2", "bob")

	reply, err := h.dispatch(t, "S1", domain.EventSendPrivateMessage, map[string]string{"to": "S2", "body": "psst"})
	require.NoError(t, err)
	ack := reply.Data.(domain.MessageAck)
	assert.True(t, ack.Success)
	assert.NotZero(t, ack.MessageID)

	d, ok := h.rec.Last(domain.EventPrivateMessage)
	require.True(t, ok)
	assert.Equal(t, []string{"S2"}, d.To)
	msg := d.Data.(*domain.Message)
	assert.True(t, msg.IsPrivate)
	assert.Equal(t, "S1", msg.SenderID)
	assert.Equal(t, domain.KindPrivate, msg.Kind)
	assert.Empty(t, msg.Room)

	for _, room := range h.rooms.Rooms() {
		assert.Zero(t, h.logLen(t, room), "private messages are never stored")
	}
}

func TestRouter_PrivateMessageToOfflineRecipientIsAcked(t *testing.T) {
	h := newHarness(t)
	h.join(t, "S1", "alice")

	ack, err := h.router.PostPrivateMessage(context.Background(), "S1", "gone", "anyone?")
	require.NoError(t, err)
	assert.True(t, ack.Success)
}

func TestRouter_FileMessage(t *testing.T) {
	h := newHarness(t, WithMaxFileBytes(16))
	h.join(t, "S1", "alice")
	h.join(t, "S2", "bob")

	reply, err := h.dispatch(t, "S1", domain.EventSendFile, map[string]any{
		"room":      "general",
		"fileBytes": []byte("hello file"),
		"fileName":  "a.txt",
		"fileType":  "text/plain",
	})
	require.NoError(t, err)
	assert.Nil(t, reply, "the echo is the acknowledgement")

	d, ok := h.rec.Last(domain.EventReceiveFile)
	require.True(t, ok)
	assert.True(t, testutils.ReceivedBy(d, "S1"), "sender receives its own file")
	assert.True(t, testutils.ReceivedBy(d, "S2"))

	msg := d.Data.(*domain.Message)
	assert.Equal(t, domain.KindFile, msg.Kind)
	require.NotNil(t, msg.File)
	assert.Equal(t, []byte("hello file"), msg.File.Data)
	assert.Equal(t, storage.FileURL(msg.ID), msg.File.URL)

	stored, err := h.rooms.Find(msg.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.File.Data, "payload lives in the file store")
	assert.Equal(t, 10, stored.File.Size)

	data, err := afero.ReadFile(h.fs, storage.FilePath(msg.ID))
	require.NoError(t, err)
	assert.Equal(t, "hello file", string(data))
}

func TestRouter_FileMessageFromAnonymousSenderEchoes(t *testing.T) {
	h := newHarness(t)

	msg, err := h.router.PostFileMessage(context.Background(), "ghost", "general", FileUpload{Name: "x.bin", Data: []byte{1}})
	require.NoError(t, err)
	assert.Equal(t, domain.AnonymousSender, msg.Sender)

	d, _ := h.rec.Last(domain.EventReceiveFile)
	assert.True(t, testutils.ReceivedBy(d, "ghost"))
}

func TestRouter_FileTooLarge(t *testing.T) {
	h := newHarness(t, WithMaxFileBytes(4))
	h.join(t, "S1", "alice")

	_, err := h.router.PostFileMessage(context.Background(), "S1", "general", FileUpload{Name: "big", Data: []byte("12345")})
	assert.ErrorIs(t, err, domain.ErrPayloadTooLarge)
	assert.Zero(t, h.logLen(t, "general"))
	_, ok := h.rec.Last(domain.EventReceiveFile)
	assert.False(t, ok)
}

func TestRouter_FileTypeAllowList(t *testing.T) {
	h := newHarness(t, WithAllowedFileTypes([]string{"image/png", "text/plain"}))
	h.join(t, "S1", "alice")
	ctx := context.Background()

	_, err := h.router.PostFileMessage(ctx, "S1", "general", FileUpload{Name: "x.html", Type: "text/html", Data: []byte("<script></script>")})
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
	_, err = h.router.PostFileMessage(ctx, "S1", "general", FileUpload{Name: "x", Type: "not a type;;", Data: []byte("x")})
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
	_, err = h.router.PostFileMessage(ctx, "S1", "general", FileUpload{Name: "page", Data: []byte("<html><body>hi</body></html>")})
	assert.ErrorIs(t, err, domain.ErrInvalidPayload, "an untyped upload is sniffed before the check")
	assert.Zero(t, h.logLen(t, "general"))
	_, ok := h.rec.Last(domain.EventReceiveFile)
	assert.False(t, ok)

	msg, err := h.router.PostFileMessage(ctx, "S1", "general", FileUpload{Name: "a.txt", Type: "Text/Plain; charset=utf-8", Data: []byte("hi")})
	require.NoError(t, err)
	assert.Equal(t, "text/plain", msg.File.Type, "stored type is the bare media type")

	msg, err = h.router.PostFileMessage(ctx, "S1", "general", FileUpload{Name: "dot", Data: []byte("\x89PNG\r\n\x1a\n0000")})
	require.NoError(t, err)
	assert.Equal(t, "image/png", msg.File.Type)
}

func TestRouter_FileIDsFollowLogOrder(t *testing.T) {
	h := newHarness(t)
	h.join(t, "S1", "alice")
	ctx := context.Background()

	var g errgroup.Group
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			_, err := h.router.PostRoomMessage(ctx, "S1", "general", fmt.Sprintf("t%d", i))
			return err
		})
		g.Go(func() error {
			_, err := h.router.PostFileMessage(ctx, "S1", "general", FileUpload{Name: fmt.Sprintf("f%d", i), Data: []byte{byte(i)}})
			return err
		})
	}
	require.NoError(t, g.Wait())

	l, err := h.rooms.Room("general")
	require.NoError(t, err)
	msgs := l.Messages()
	require.Len(t, msgs, 40)
	for i := 1; i < len(msgs); i++ {
		assert.Less(t, msgs[i-1].ID, msgs[i].ID, "position %d", i)
	}
	for _, m := range msgs {
		if m.Kind != domain.KindFile {
			continue
		}
		assert.Equal(t, storage.FileURL(m.ID), m.File.URL)
		exists, err := afero.Exists(h.fs, storage.FilePath(m.ID))
		require.NoError(t, err)
		assert.True(t, exists, "payload stored under the logged id")
	}
}

func TestRouter_ChangeRoom(t *testing.T) {
	h := newHarness(t)
	h.join(t, "S1", "alice")
	h.join(t, "S2", "bob")
	for i := 0; i < 3; i++ {
		_, err := h.router.PostRoomMessage(context.Background(), "S2", "random", fmt.Sprintf("r%d", i))
		require.NoError(t, err)
	}
	require.NoError(t, h.router.SetTyping(context.Background(), "S1", "general", true))
	h.rec.Reset()

	reply, err := h.dispatch(t, "S1", domain.EventJoinRoom, "random")
	require.NoError(t, err)
	assert.Equal(t, domain.EventRoomMessages, reply.Event)
	window := reply.Data.(domain.RoomMessagesEvent)
	assert.Equal(t, "random", window.Room)
	require.Len(t, window.Messages, 3)
	assert.Equal(t, "r0", window.Messages[0].Text)

	s, _ := h.sessions.Lookup("S1")
	assert.Equal(t, "random", s.CurrentRoom)
	assert.Empty(t, h.typing.Usernames("general"), "typing in the old room is cleared")

	list, ok := h.rec.Last(domain.EventUserList)
	require.True(t, ok)
	assert.Contains(t, list.Data.(domain.UserListEvent).Users,
		domain.PresenceUser{Username: "alice", SessionID: "S1", CurrentRoom: "random"})

	typingEvs := h.rec.ByEvent(domain.EventTypingUsers)
	require.Len(t, typingEvs, 2)
	assert.Equal(t, "general", typingEvs[0].Data.(domain.TypingEvent).Room)
	assert.True(t, testutils.ReceivedBy(typingEvs[0], "S2"))
	assert.Equal(t, "random", typingEvs[1].Data.(domain.TypingEvent).Room)
	assert.Equal(t, []string{"S1"}, typingEvs[1].To)
}

func TestRouter_NewcomersLearnWhoIsTyping(t *testing.T) {
	h := newHarness(t)
	h.join(t, "S1", "alice")
	require.NoError(t, h.router.SetTyping(context.Background(), "S1", "general", true))
	h.rec.Reset()

	h.join(t, "S2", "bob")
	snap, ok := h.rec.Last(domain.EventTypingUsers)
	require.True(t, ok, "joining a room sends its typing set")
	assert.Equal(t, []string{"S2"}, snap.To)
	assert.Equal(t, domain.TypingEvent{Room: "general", Usernames: []string{"alice"}}, snap.Data)

	h.join(t, "S3", "carol")
	_, err := h.router.ChangeRoom(context.Background(), "S3", "random")
	require.NoError(t, err)
	h.rec.Reset()

	_, err = h.router.ChangeRoom(context.Background(), "S3", "general")
	require.NoError(t, err)
	snap, ok = h.rec.Last(domain.EventTypingUsers)
	require.True(t, ok, "entering a room sends its typing set")
	assert.Equal(t, []string{"S3"}, snap.To)
	assert.Equal(t, domain.TypingEvent{Room: "general", Usernames: []string{"alice"}}, snap.Data)
}

func TestRouter_ChangeRoomUnjoined(t *testing.T) {
	h := newHarness(t)

	reply, err := h.dispatch(t, "ghost", domain.EventJoinRoom, map[string]string{"room": "tech"})
	require.NoError(t, err)
	assert.Equal(t, "tech", reply.Data.(domain.RoomMessagesEvent).Room)
	assert.Zero(t, h.sessions.Len())
	assert.Empty(t, h.rec.Deliveries())
}

func TestRouter_Typing(t *testing.T) {
	h := newHarness(t)
	h.join(t, "S1", "alice")
	h.join(t, "S2", "bob")
	h.rec.Reset()

	_, err := h.dispatch(t, "S1", domain.EventSetTyping, map[string]any{"room": "general", "isTyping": true})
	require.NoError(t, err)

	d, ok := h.rec.Last(domain.EventTypingUsers)
	require.True(t, ok)
	assert.Equal(t, []string{"alice"}, d.Data.(domain.TypingEvent).Usernames)
	assert.False(t, testutils.ReceivedBy(d, "S1"), "the typer is excluded")
	assert.True(t, testutils.ReceivedBy(d, "S2"))

	_, err = h.dispatch(t, "S1", domain.EventSetTyping, map[string]any{"room": "general", "isTyping": true})
	require.NoError(t, err)
	assert.Len(t, h.rec.ByEvent(domain.EventTypingUsers), 1, "no event without a change")

	// Unjoined sessions cannot type.
	require.NoError(t, h.router.SetTyping(context.Background(), "ghost", "general", true))
	assert.Equal(t, []string{"alice"}, h.typing.Usernames("general"))
}

func TestRouter_DisconnectWhileTyping(t *testing.T) {
	h := newHarness(t)
	h.join(t, "S1", "alice")
	h.join(t, "S2", "bob")
	require.NoError(t, h.router.SetTyping(context.Background(), "S1", "general", true))
	h.rec.Reset()

	_, err := h.dispatch(t, "S1", domain.EventDisconnect, nil)
	require.NoError(t, err)

	typingEv, ok := h.rec.Last(domain.EventTypingUsers)
	require.True(t, ok)
	assert.Equal(t, "general", typingEv.Data.(domain.TypingEvent).Room)
	assert.NotContains(t, typingEv.Data.(domain.TypingEvent).Usernames, "alice")

	list, ok := h.rec.Last(domain.EventUserList)
	require.True(t, ok)
	for _, u := range list.Data.(domain.UserListEvent).Users {
		assert.NotEqual(t, "S1", u.SessionID)
	}

	left, ok := h.rec.Last(domain.EventUserLeft)
	require.True(t, ok)
	assert.Equal(t, "alice", left.Data.(domain.UserEvent).Username)

	h.rec.Reset()
	h.router.Disconnect(context.Background(), "S1")
	assert.Empty(t, h.rec.Deliveries(), "a second disconnect is a no-op")
}

func TestRouter_Reactions(t *testing.T) {
	h := newHarness(t)
	h.join(t, "S1", "alice")
	h.join(t, "S2", "bob")
	ack, err := h.router.PostRoomMessage(context.Background(), "S1", "general", "react to me")
	require.NoError(t, err)

	for k := 1; k <= 3; k++ {
		count, err := h.router.React(context.Background(), "S2", ack.MessageID, "👍")
		require.NoError(t, err)
		assert.Equal(t, k, count)
	}

	d, ok := h.rec.Last(domain.EventReactionAdded)
	require.True(t, ok)
	assert.True(t, d.All, "reactions are process-wide by default")
	assert.Equal(t, domain.ReactionEvent{MessageID: ack.MessageID, Symbol: "👍", Count: 3}, d.Data)

	h.rec.Reset()
	count, err := h.router.React(context.Background(), "ghost", ack.MessageID, "👍")
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, h.rec.Deliveries(), "unjoined sessions cannot react")

	_, err = h.dispatch(t, "S2", domain.EventAddReaction, map[string]any{"messageId": 987654, "symbol": "👍"})
	assert.NoError(t, err, "unknown messages are ignored")
	assert.Empty(t, h.rec.Deliveries())
}

func TestRouter_ReactionsRoomScope(t *testing.T) {
	h := newHarness(t, WithReactionScope(config.ScopeRoom))
	h.join(t, "S1", "alice")
	h.join(t, "S2", "bob")
	_, err := h.router.ChangeRoom(context.Background(), "S2", "tech")
	require.NoError(t, err)
	ack, _ := h.router.PostRoomMessage(context.Background(), "S1", "general", "hi")

	_, err = h.router.React(context.Background(), "S1", ack.MessageID, "🎉")
	require.NoError(t, err)

	d, _ := h.rec.Last(domain.EventReactionAdded)
	assert.False(t, d.All)
	assert.True(t, testutils.ReceivedBy(d, "S1"))
	assert.False(t, testutils.ReceivedBy(d, "S2"))
}

func TestRouter_MarkRead(t *testing.T) {
	h := newHarness(t)
	h.join(t, "S1", "alice")
	h.join(t, "S2", "bob")
	ack, _ := h.router.PostRoomMessage(context.Background(), "S1", "general", "read me")
	h.rec.Reset()

	_, err := h.dispatch(t, "S2", domain.EventMarkRead, map[string]any{"messageId": ack.MessageID})
	require.NoError(t, err)
	_, err = h.dispatch(t, "S2", domain.EventMarkRead, map[string]any{"messageId": ack.MessageID})
	require.NoError(t, err)

	reads := h.rec.ByEvent(domain.EventMessageRead)
	require.Len(t, reads, 1, "only the first receipt is broadcast")
	assert.Equal(t, domain.ReadEvent{MessageID: ack.MessageID, Username: "bob"}, reads[0].Data)

	stored, _ := h.rooms.Find(ack.MessageID)
	assert.Equal(t, []string{"bob"}, stored.ReadBy)

	changed, err := h.router.MarkRead(context.Background(), "ghost", ack.MessageID)
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = h.dispatch(t, "S2", domain.EventMarkRead, map[string]any{"messageId": 424242})
	assert.NoError(t, err)
}

func TestRouter_LoadMessagesPagination(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 50; i++ {
		_, err := h.router.PostRoomMessage(context.Background(), "S1", "general", fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}

	load := func(offset int) domain.Page {
		reply, err := h.dispatch(t, "nobody", domain.EventLoadMessages, map[string]any{"room": "general", "limit": 20, "offset": offset})
		require.NoError(t, err)
		return reply.Data.(domain.Page)
	}

	page := load(0)
	assert.True(t, page.Success)
	assert.True(t, page.HasMore)
	require.Len(t, page.Messages, 20)
	assert.Equal(t, "m30", page.Messages[0].Text)
	assert.Equal(t, "m49", page.Messages[19].Text)

	page = load(20)
	assert.True(t, page.HasMore)
	require.Len(t, page.Messages, 20)
	assert.Equal(t, "m10", page.Messages[0].Text)

	page = load(40)
	assert.False(t, page.HasMore)
	require.Len(t, page.Messages, 10)
	assert.Equal(t, "m0", page.Messages[0].Text)

	reply, err := h.dispatch(t, "nobody", domain.EventLoadMessages, map[string]any{"room": "general"})
	require.NoError(t, err)
	assert.Len(t, reply.Data.(domain.Page).Messages, DefaultPageSize)

	reply, err = h.dispatch(t, "nobody", domain.EventLoadMessages, map[string]any{"room": "general", "limit": -5, "offset": 90})
	require.NoError(t, err)
	assert.Empty(t, reply.Data.(domain.Page).Messages)
}

func TestRouter_Join(t *testing.T) {
	h := newHarness(t)

	_, err := h.dispatch(t, "S1", domain.EventJoin, "  Ame\u0301lie ")
	require.NoError(t, err)
	s, ok := h.sessions.Lookup("S1")
	require.True(t, ok)
	assert.Equal(t, "Am\u00e9lie", s.Username, "usernames are trimmed and NFC-normalized")
	assert.Equal(t, "general", s.CurrentRoom)

	joined, ok := h.rec.Last(domain.EventUserJoined)
	require.True(t, ok)
	assert.True(t, joined.All)

	_, err = h.dispatch(t, "S1", domain.EventJoin, map[string]string{"username": "again"})
	assert.ErrorIs(t, err, domain.ErrDuplicateSession)

	_, err = h.dispatch(t, "S2", domain.EventJoin, "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
}

func TestRouter_MalformedPayloads(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name  string
		event string
		raw   string
		want  error
	}{
		{"not json", domain.EventSendMessage, `{"room":`, domain.ErrInvalidPayload},
		{"missing data", domain.EventSendMessage, ``, domain.ErrInvalidPayload},
		{"missing room", domain.EventSendMessage, `{"body":"x"}`, domain.ErrInvalidPayload},
		{"blank body", domain.EventSendMessage, `{"room":"general","body":"  "}`, domain.ErrInvalidPayload},
		{"bad message id", domain.EventAddReaction, `{"messageId":0,"symbol":"x"}`, domain.ErrInvalidPayload},
		{"wrong type", domain.EventSetTyping, `{"room":"general","isTyping":"yes"}`, domain.ErrInvalidPayload},
		{"unknown event", "shout", `{}`, domain.ErrUnknownEvent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, err := h.router.Dispatch(context.Background(), "S1", tt.event, json.RawMessage(tt.raw))
			assert.Nil(t, reply)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRouter_Queries(t *testing.T) {
	h := newHarness(t)
	h.join(t, "S1", "alice")
	_, _ = h.router.PostRoomMessage(context.Background(), "S1", "tech", "q")

	assert.Equal(t, []string{"general", "random", "tech"}, h.router.Rooms())
	assert.Equal(t, "general", h.router.DefaultRoom())
	assert.Equal(t, []domain.PresenceUser{{Username: "alice", SessionID: "S1", CurrentRoom: "general"}}, h.router.OnlineUsers())

	msgs, err := h.router.RoomMessages("tech")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "q", msgs[0].Text)

	_, err = h.router.RoomMessages("nope")
	assert.ErrorIs(t, err, domain.ErrUnknownRoom)
}
