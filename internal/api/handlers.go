// File: internal/api/handlers.go
package api

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCommand runs one command. Pipeline failures are reported in the body
// with status 200 so the client can render them; only malformed requests get
// a 4xx.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.respondJSON(w, http.StatusBadRequest, errorWire("Invalid request body: "+err.Error()))
		return
	}
	if strings.TrimSpace(req.Command) == "" {
		s.respondJSON(w, http.StatusBadRequest, errorWire("The 'command' field is required."))
		return
	}

	s.logger.Info("Received command.",
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("thread_id", req.ThreadID))

	resp := s.commands.ProcessCommand(r.Context(), req.Command, req.ThreadID)
	s.respondJSON(w, http.StatusOK, ToWire(resp))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.respondJSON(w, http.StatusServiceUnavailable, errorWire("History is not available."))
		return
	}
	threadID := chi.URLParam(r, "threadID")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.respondJSON(w, http.StatusBadRequest, errorWire("The 'limit' parameter must be a non-negative integer."))
			return
		}
		limit = n
	}

	entries, err := s.history.List(r.Context(), threadID, limit)
	if err != nil {
		s.logger.Error("Failed to list history.", zap.String("thread_id", threadID), zap.Error(err))
		s.respondJSON(w, http.StatusInternalServerError, errorWire("Internal error retrieving history."))
		return
	}
	s.respondJSON(w, http.StatusOK, HistoryResponse{ThreadID: threadID, Count: len(entries), Entries: entries})
}

func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}
