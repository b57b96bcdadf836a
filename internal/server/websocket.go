package server

import (
	"net/http"

	"github.com/foundryml/forge/internal/wsbridge"
)

// progressHandler upgrades the connection and streams job progress events
// from the Subscription Hub until the client disconnects.
func (s *Server) progressHandler(w http.ResponseWriter, r *http.Request) {
	wsbridge.Serve(s.app.JobHub, s.logger, 16)(w, r)
}
