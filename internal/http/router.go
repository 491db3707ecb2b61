package http

import (
	"github.com/jmylchreest/transcribecore/internal/http/handlers"
)

// RegisterEpisodes registers the episode lifecycle handlers on the
// server's API.
func (s *Server) RegisterEpisodes(h *handlers.EpisodeHandler) {
	h.Register(s.api)
}
