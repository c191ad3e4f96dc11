package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nfrund/huddle/internal/domain"
	"github.com/nfrund/huddle/internal/middleware"
	"github.com/nfrund/huddle/internal/router"
)

// ChatReader is the read side of the router served over HTTP.
type ChatReader interface {
	Rooms() []string
	DefaultRoom() string
	OnlineUsers() []domain.PresenceUser
	RoomMessages(room string) ([]domain.Message, error)
	LoadMessages(ctx context.Context, room string, limit, offset int) (domain.Page, error)
}

// ChatHandler serves read-only views of rooms and presence.
type ChatHandler struct {
	chat ChatReader
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(chat ChatReader) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// Health reports that the process is serving.
func (h *ChatHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Users: len(h.chat.OnlineUsers())})
}

// Rooms lists the configured rooms.
func (h *ChatHandler) Rooms(c echo.Context) error {
	return c.JSON(http.StatusOK, RoomsResponse{Rooms: h.chat.Rooms(), DefaultRoom: h.chat.DefaultRoom()})
}

// Users lists every joined session.
func (h *ChatHandler) Users(c echo.Context) error {
	users := h.chat.OnlineUsers()
	return c.JSON(http.StatusOK, UsersResponse{Users: users, Count: len(users)})
}

// RoomMessages returns the retained history of a room, oldest first.
func (h *ChatHandler) RoomMessages(c echo.Context) error {
	room := c.Param("room")
	msgs, err := h.chat.RoomMessages(room)
	if err != nil {
		return roomError(err)
	}
	return c.JSON(http.StatusOK, MessagesResponse{Room: room, Messages: msgs})
}

// RoomPage returns one pagination window counted back from the newest message.
func (h *ChatHandler) RoomPage(c echo.Context) error {
	req := PageRequest{Limit: router.DefaultPageSize}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid page request").SetInternal(err)
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	}

	ctx := c.Request().Context()
	page, err := h.chat.LoadMessages(ctx, req.Room, req.Limit, req.Offset)
	if err != nil {
		return roomError(err)
	}
	middleware.FromContext(ctx).Debug("Served history page",
		"room", req.Room, "limit", req.Limit, "offset", req.Offset, "count", len(page.Messages))
	return c.JSON(http.StatusOK, PageResponse{Room: req.Room, Page: page})
}

func roomError(err error) error {
	if errors.Is(err, domain.ErrUnknownRoom) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error()).SetInternal(err)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "Could not read room").SetInternal(err)
}
