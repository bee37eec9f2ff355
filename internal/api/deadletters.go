package api

import (
	"net/http"

	"github.com/kpeterse/crew/internal/deadletter"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// listDeadLettersResponse wraps the paginated list response.
type listDeadLettersResponse struct {
	DeadLetters []*deadletter.Entry `json:"dead_letters"`
	Total       int                 `json:"total"`
	Limit       int                 `json:"limit"`
	Offset      int                 `json:"offset"`
}

func (s *Server) handleListDeadLetters(w http.ResponseWriter, r *http.Request) {
	if s.deadLetters == nil {
		s.writeError(w, http.StatusNotFound, "dead-letter store is disabled")
		return
	}

	limit := parseIntQuery(r, "limit", defaultListLimit)
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := parseIntQuery(r, "offset", 0)

	entries, total, err := s.deadLetters.List(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list dead letters", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list dead letters")
		return
	}

	s.writeJSON(w, http.StatusOK, listDeadLettersResponse{
		DeadLetters: entries,
		Total:       total,
		Limit:       limit,
		Offset:      offset,
	})
}
