package server

import (
	"github.com/nfrund/huddle/internal/middleware"
)

// RegisterRoutes sets up all the application routes.
func (s *Server) RegisterRoutes() {
	chat := s.handlers.Chat
	origins := middleware.AllowedOrigins(s.Cfg.GetAllowedOrigins())

	s.E.GET("/health", chat.Health)

	api := s.E.Group("/api", origins, middleware.RateLimiter(middleware.DefaultRateLimit))
	api.GET("/rooms", chat.Rooms)
	api.GET("/users", chat.Users)
	api.GET("/rooms/:room/messages", chat.RoomMessages)
	api.GET("/rooms/:room/messages/page", chat.RoomPage)
	api.GET("/files/:id", s.handlers.Files.Download)

	s.E.GET("/ws", s.handlers.Socket, origins)
}
