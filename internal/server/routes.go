package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/odslabs/ridebot/internal/riders"
)

// chatRequest is the REST chat payload. An empty thread_id starts a new
// conversation; the response carries the id to use for follow-ups.
type chatRequest struct {
	RiderID  int64  `json:"rider_id"`
	ThreadID string `json:"thread_id,omitempty"`
	Message  string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	result, err := s.orch.RunTurn(r.Context(), req.RiderID, req.ThreadID, req.Message)
	if err != nil {
		if errors.Is(err, riders.ErrInvalidRider) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("server: chat turn failed: %v", err)
		writeError(w, http.StatusInternalServerError, "turn failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRetrievalStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.indexes.Stats())
}

// handleRetrievalClear forces a reload of every cached corpus index, used
// after corpora are rebuilt on disk.
func (s *Server) handleRetrievalClear(w http.ResponseWriter, r *http.Request) {
	s.indexes.Clear()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
