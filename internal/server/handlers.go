package server

import (
	"encoding/json"
	"image/png"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/ripwatch/internal/version"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:    "healthy",
		Version:   version.Version,
		Time:      s.now().UTC().Format(time.RFC3339),
		Observers: s.hub.Clients(),
	}
	if latest := s.Latest(); latest != nil {
		response.Frames = latest.Frame
	}

	writeJSON(w, http.StatusOK, response)
}

// latestHandler returns the most recent frame result.
func (s *Server) latestHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	latest := s.Latest()
	if latest == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, latest)
}

// snapshotHandler renders the annotated frame as PNG.
func (s *Server) snapshotHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.snapshot == nil {
		http.Error(w, "Snapshots are disabled", http.StatusNotFound)
		return
	}

	start := time.Now()
	img := s.snapshot()
	if img == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := png.Encode(w, img); err != nil {
		slog.Error("Failed to encode snapshot", "error", err)
		return
	}
	snapshotDuration.Observe(time.Since(start).Seconds())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
