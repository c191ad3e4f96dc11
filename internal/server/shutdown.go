package server

import (
	"context"
)

// Shutdown stops accepting requests and waits for in-flight ones. Upgraded
// WebSocket connections are closed by the bridge, not here.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("HTTP server shutting down")
	return s.E.Shutdown(ctx)
}
