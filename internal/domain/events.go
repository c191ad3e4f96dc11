package domain

import "context"

// Inbound event names.
const (
	EventJoin               = "join"
	EventSendMessage        = "send_message"
	EventSendPrivateMessage = "send_private_message"
	EventJoinRoom           = "join_room"
	EventSendFile           = "send_file"
	EventSetTyping          = "set_typing"
	EventAddReaction        = "add_reaction"
	EventMarkRead           = "mark_read"
	EventLoadMessages       = "load_messages"
	EventDisconnect         = "disconnect"
)

// Outbound event names.
const (
	EventConnected      = "connected"
	EventAck            = "ack"
	EventError          = "error"
	EventUserList       = "user_list"
	EventUserJoined     = "user_joined"
	EventUserLeft       = "user_left"
	EventReceiveMessage = "receive_message"
	EventReceiveFile    = "receive_file"
	EventPrivateMessage = "private_message"
	EventTypingUsers    = "typing_users"
	EventReactionAdded  = "reaction_added"
	EventMessageRead    = "message_read"
	EventRoomMessages   = "room_messages"
)

// Delivery is one outbound event and the sessions that should receive it.
// When All is set the event goes to every connection and To is ignored.
// Exclude is never delivered to, even when listed in To.
type Delivery struct {
	Event   string   `json:"event"`
	Data    any      `json:"data"`
	To      []string `json:"to,omitempty"`
	All     bool     `json:"all,omitempty"`
	Exclude string   `json:"exclude,omitempty"`
}

// Emitter hands outbound events to the transport. Implementations must not
// block on network I/O.
type Emitter interface {
	Emit(ctx context.Context, d Delivery) error
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(ctx context.Context, d Delivery) error

func (f EmitterFunc) Emit(ctx context.Context, d Delivery) error {
	return f(ctx, d)
}

// PresenceUser is one entry of the user_list event.
type PresenceUser struct {
	Username    string `json:"username"`
	SessionID   string `json:"sessionId"`
	CurrentRoom string `json:"currentRoom"`
}

// UserListEvent is the payload of user_list.
type UserListEvent struct {
	Users []PresenceUser `json:"users"`
}

// UserEvent is the payload of user_joined and user_left.
type UserEvent struct {
	Username  string   `json:"username"`
	SessionID string   `json:"sessionId"`
	Room      string   `json:"room,omitempty"`
	Notice    *Message `json:"notice,omitempty"`
}

// TypingEvent is the payload of typing_users.
type TypingEvent struct {
	Room      string   `json:"room"`
	Usernames []string `json:"usernames"`
}

// ReactionEvent is the payload of reaction_added.
type ReactionEvent struct {
	MessageID int64  `json:"messageId"`
	Symbol    string `json:"symbol"`
	Count     int    `json:"count"`
}

// ReadEvent is the payload of message_read.
type ReadEvent struct {
	MessageID int64  `json:"messageId"`
	Username  string `json:"username"`
}

// RoomMessagesEvent is the reply to join_room.
type RoomMessagesEvent struct {
	Room     string    `json:"room"`
	Messages []Message `json:"messages"`
}

// ConnectedEvent tells a new connection its session handle.
type ConnectedEvent struct {
	SessionID string `json:"sessionId"`
}

// ErrorEvent is the payload of error frames and failed acks.
type ErrorEvent struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Direction of an event relative to the server.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// EventInfo documents one entry of the event surface.
type EventInfo struct {
	Name        string    `json:"name"`
	Direction   Direction `json:"direction"`
	Description string    `json:"description"`
}

// Catalogue lists every event the server accepts or emits.
var Catalogue = []EventInfo{
	{EventJoin, DirectionIn, "Register the connection under a username in the default room"},
	{EventSendMessage, DirectionIn, "Post a text message to a room; acked with the message id"},
	{EventSendPrivateMessage, DirectionIn, "Send a message to one session; acked with the message id"},
	{EventJoinRoom, DirectionIn, "Switch rooms; replies with the room's recent messages"},
	{EventSendFile, DirectionIn, "Post a file to a room; the echo to the sender is the ack"},
	{EventSetTyping, DirectionIn, "Report whether the user is composing in a room"},
	{EventAddReaction, DirectionIn, "Increment a reaction counter on a message"},
	{EventMarkRead, DirectionIn, "Record a read receipt for a message"},
	{EventLoadMessages, DirectionIn, "Fetch an older window of a room's history"},
	{EventDisconnect, DirectionIn, "Transport-level close of the connection"},
	{EventConnected, DirectionOut, "Session handle assigned to a new connection"},
	{EventAck, DirectionOut, "Reply to an inbound event that carried an ack id"},
	{EventError, DirectionOut, "Failure of a single inbound event"},
	{EventUserList, DirectionOut, "Every joined session with its current room"},
	{EventUserJoined, DirectionOut, "A session joined"},
	{EventUserLeft, DirectionOut, "A joined session disconnected"},
	{EventReceiveMessage, DirectionOut, "A text message posted to the recipient's room"},
	{EventReceiveFile, DirectionOut, "A file posted to the recipient's room"},
	{EventPrivateMessage, DirectionOut, "A message addressed to the recipient only"},
	{EventTypingUsers, DirectionOut, "Usernames currently typing in a room"},
	{EventReactionAdded, DirectionOut, "New count of a reaction on a message"},
	{EventMessageRead, DirectionOut, "A user read a message"},
	{EventRoomMessages, DirectionOut, "Recent history of the room just joined"},
}
