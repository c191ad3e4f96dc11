package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/nfrund/huddle/internal/config"
	"github.com/nfrund/huddle/internal/handlers"
	"github.com/nfrund/huddle/internal/middleware"
	"github.com/nfrund/huddle/internal/storage"
)

// Handlers groups everything the routes point at.
type Handlers struct {
	Chat   *handlers.ChatHandler
	Files  *storage.FileHandler
	Socket echo.HandlerFunc
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	E        *echo.Echo
	Cfg      config.Provider
	handlers Handlers
	logger   *slog.Logger
}

// New creates a Server with middleware and routes installed.
func New(cfg config.Provider, h Handlers) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handlers.NewValidator()

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.Logger)
	setupErrorHandling(e)

	s := &Server{
		E:        e,
		Cfg:      cfg,
		handlers: h,
		logger:   slog.Default().With("component", "server"),
	}
	s.RegisterRoutes()
	return s
}

// Start serves HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", "addr", s.Cfg.GetServerAddr())
	if err := s.E.Start(s.Cfg.GetServerAddr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
