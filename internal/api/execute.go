package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/kenny-hash/CyclopsCmd/internal/model"
	"github.com/kenny-hash/CyclopsCmd/internal/room"
)

type executeResponse struct {
	Room      string `json:"room"`
	RequestID string `json:"request_id"`
}

// handleExecute implements POST /api/v1/execute: validate, mint a room, and
// return it, per spec §6/§8. The batch itself doesn't run until a subscriber
// connects to GET /ws/{room}.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var rows []model.Row
	if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	b, err := s.Rooms.Create(rows)
	if err != nil {
		status := http.StatusBadRequest
		if !errors.Is(err, room.ErrEmptyRows) {
			log.Printf("[http] execute validation failed: %v", err)
		}
		writeJSONError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, executeResponse{Room: b.Room, RequestID: b.RequestID})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[http] encode response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
