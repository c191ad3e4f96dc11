package domain

import "time"

// Session is one active client connection that has joined with a username.
type Session struct {
	ID          string    `json:"sessionId"`
	Username    string    `json:"username"`
	CurrentRoom string    `json:"currentRoom"`
	JoinedAt    time.Time `json:"joinedAt"`
}
