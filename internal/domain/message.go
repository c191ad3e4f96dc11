package domain

import (
	"maps"
	"slices"
	"time"
)

// AnonymousSender is substituted for senders whose session has not joined.
const AnonymousSender = "Anonymous"

// Kind classifies a message.
type Kind string

const (
	KindNormal  Kind = "normal"
	KindFile    Kind = "file"
	KindPrivate Kind = "private"
	// KindSystem marks synthesized join/leave notices. They are never stored.
	KindSystem Kind = "system"
)

// FilePayload is the file half of a message body.
type FilePayload struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int    `json:"size"`
	Data []byte `json:"data,omitempty"`
	URL  string `json:"url,omitempty"`
}

// Message is a single chat message. Group messages are owned by the RoomLog of
// their room; private and system messages are built, delivered and dropped.
type Message struct {
	ID        int64          `json:"id"`
	Sender    string         `json:"sender"`
	SenderID  string         `json:"senderId"`
	Text      string         `json:"message,omitempty"`
	File      *FilePayload   `json:"file,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Room      string         `json:"room,omitempty"`
	Reactions map[string]int `json:"reactions"`
	ReadBy    []string       `json:"readBy"`
	Kind      Kind           `json:"kind"`
	IsPrivate bool           `json:"isPrivate,omitempty"`
}

// NewMessage returns a message with empty reaction and read-receipt sets.
func NewMessage(kind Kind, sender, senderID string, at time.Time) *Message {
	return &Message{
		Sender:    sender,
		SenderID:  senderID,
		Timestamp: at,
		Reactions: make(map[string]int),
		ReadBy:    make([]string, 0),
		Kind:      kind,
		IsPrivate: kind == KindPrivate,
	}
}

// Clone returns a deep copy that shares no mutable state with m.
func (m *Message) Clone() Message {
	c := *m
	c.Reactions = maps.Clone(m.Reactions)
	if c.Reactions == nil {
		c.Reactions = make(map[string]int)
	}
	c.ReadBy = slices.Clone(m.ReadBy)
	if c.ReadBy == nil {
		c.ReadBy = make([]string, 0)
	}
	if m.File != nil {
		f := *m.File
		f.Data = slices.Clone(m.File.Data)
		c.File = &f
	}
	return c
}

// HasReader reports whether username already has a read receipt on m.
func (m *Message) HasReader(username string) bool {
	return slices.Contains(m.ReadBy, username)
}

// MessageAck is returned synchronously to the sender of a message.
type MessageAck struct {
	Success   bool  `json:"success"`
	MessageID int64 `json:"messageId"`
}

// Page is a pagination window over a room log.
type Page struct {
	Success  bool      `json:"success"`
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"hasMore"`
}
