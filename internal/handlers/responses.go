package handlers

import (
	"github.com/nfrund/huddle/internal/domain"
)

// ErrorResponse is the standard format for API error responses.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HealthResponse reports liveness.
type HealthResponse struct {
	Status string `json:"status"`
	Users  int    `json:"users"`
}

// RoomsResponse lists the configured rooms.
type RoomsResponse struct {
	Rooms       []string `json:"rooms"`
	DefaultRoom string   `json:"defaultRoom"`
}

// UsersResponse lists the joined sessions.
type UsersResponse struct {
	Users []domain.PresenceUser `json:"users"`
	Count int                   `json:"count"`
}

// MessagesResponse is the whole retained history of a room.
type MessagesResponse struct {
	Room     string           `json:"room"`
	Messages []domain.Message `json:"messages"`
}

// PageResponse is one pagination window of a room.
type PageResponse struct {
	Room string `json:"room"`
	domain.Page
}
