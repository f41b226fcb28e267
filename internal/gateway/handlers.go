package gateway

import (
	"encoding/json"
	"net/http"
	"time"
)

// healthResponse is the GET /health body.
type healthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime"`
	Sessions int    `json:"sessions"`
	Rooms    int    `json:"rooms"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:   "ok",
		Version:  s.version,
		Uptime:   time.Since(s.startedAt).Round(time.Second).String(),
		Sessions: s.hub.Registry.Count(),
		Rooms:    s.hub.Rooms.Count(),
	})
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
