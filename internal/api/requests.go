package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/kpeterse/crew/internal/pool"
)

const (
	defaultWaitMS = 30_000
	maxWaitMS     = 240_000
	maxBodySize   = 1 << 20 // 1 MB
)

// executeRequest is the JSON body for POST /v1/requests.
type executeRequest struct {
	Payload json.RawMessage `json:"payload"`
	WaitMS  int             `json:"wait_ms"`
}

// executeResponse reports a delivered outcome.
type executeResponse struct {
	Status string `json:"status"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	payload, waitMS, ok := s.decodeExecute(w, r)
	if !ok {
		return
	}

	fut, err := s.pool.Execute(payload)
	if errors.Is(err, pool.ErrPoolClosed) {
		s.writeError(w, http.StatusServiceUnavailable, "pool is shut down")
		return
	}
	if err != nil {
		s.logger.Error("submit request", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to submit request")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(waitMS)*time.Millisecond)
	defer cancel()

	result, err := fut.Wait(ctx)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		s.writeError(w, http.StatusGatewayTimeout, "request did not complete in time")
	case err != nil:
		// A failed request is still a delivered outcome.
		s.writeJSON(w, http.StatusOK, executeResponse{Status: "failed", Error: err.Error()})
	default:
		s.writeJSON(w, http.StatusOK, executeResponse{Status: "ok", Result: result})
	}
}

func (s *Server) handleExecuteSilently(w http.ResponseWriter, r *http.Request) {
	payload, _, ok := s.decodeExecute(w, r)
	if !ok {
		return
	}

	if err := s.pool.ExecuteSilently(payload); err != nil {
		if errors.Is(err, pool.ErrPoolClosed) {
			s.writeError(w, http.StatusServiceUnavailable, "pool is shut down")
			return
		}
		s.logger.Error("submit silent request", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to submit request")
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// decodeExecute parses the common execute body and reports whether the
// handler should proceed.
func (s *Server) decodeExecute(w http.ResponseWriter, r *http.Request) (any, int, bool) {
	var req executeRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return nil, 0, false
	}

	if len(req.Payload) == 0 {
		s.writeError(w, http.StatusBadRequest, "payload is required")
		return nil, 0, false
	}

	var payload any
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "payload is not valid JSON")
		return nil, 0, false
	}

	waitMS := req.WaitMS
	if waitMS <= 0 {
		waitMS = defaultWaitMS
	}
	if waitMS > maxWaitMS {
		waitMS = maxWaitMS
	}

	return payload, waitMS, true
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	return v
}
