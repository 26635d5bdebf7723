// Package server exposes a running detection pipeline to remote observers:
// a WebSocket feed of frame results, the latest result as JSON, an annotated
// snapshot and Prometheus metrics.
package server

import (
	"image"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/ripwatch/internal/display"
	"github.com/MeKo-Tech/ripwatch/internal/pipeline"
)

// Message types published on the frame feed.
const (
	MessageFrame  = "frame"
	MessageFooter = "footer"
	MessageReveal = "reveal"
)

// Config holds server configuration.
type Config struct {
	Host       string
	Port       int
	CORSOrigin string
	// SendQueue is the per-observer message buffer.
	SendQueue int
	// SnapshotRate limits snapshot renders per client and second. Zero
	// disables the limit.
	SnapshotRate  float64
	SnapshotBurst int
}

// SnapshotFunc renders the current annotated frame. It returns nil when no
// frame has been seen yet.
type SnapshotFunc func() image.Image

// Server holds the HTTP server state and dependencies.
type Server struct {
	hub        *Hub
	corsOrigin string
	snapshot   SnapshotFunc
	limiter    *clientLimiter
	now        func() time.Time

	mu     sync.RWMutex
	latest *FramePayload
	stats  string
	footer string
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version,omitempty"`
	Time      string `json:"time"`
	Observers int    `json:"observers"`
	Frames    uint64 `json:"frames"`
}

// FramePayload is the observer view of one processed frame.
type FramePayload struct {
	Frame      uint64              `json:"frame"`
	Format     string              `json:"format"`
	Count      int                 `json:"count"`
	Detections []display.Detection `json:"detections"`
	Candidates int                 `json:"candidates"`
	Suppressed int                 `json:"suppressed"`
	Hazards    int                 `json:"hazards"`
	Captures   []string            `json:"captures,omitempty"`
	Stats      string              `json:"stats,omitempty"`
	Footer     string              `json:"footer,omitempty"`
	ElapsedMS  float64             `json:"elapsed_ms"`
	Time       string              `json:"time"`
}

// NewServer creates a server. Attach it to a pipeline with Hooks.
func NewServer(cfg Config) *Server {
	origin := cfg.CORSOrigin
	if origin == "" {
		origin = "*"
	}
	return &Server{
		hub:        NewHub(cfg.SendQueue),
		corsOrigin: origin,
		limiter:    newClientLimiter(cfg.SnapshotRate, cfg.SnapshotBurst),
		now:        time.Now,
	}
}

// WithSnapshot enables /snapshot.png.
func (s *Server) WithSnapshot(fn SnapshotFunc) *Server {
	s.snapshot = fn
	return s
}

// Hub returns the observer hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// SetupRoutes registers the HTTP handlers on mux.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/latest", s.corsMiddleware(s.latestHandler))
	mux.HandleFunc("/snapshot.png", s.corsMiddleware(s.rateLimitMiddleware(s.snapshotHandler)))
	mux.Handle("/frames", s.hub)
	mux.Handle("/metrics", promhttp.Handler())
}

// Hooks returns pipeline hooks that publish results to observers. Chain them
// with any other hooks the caller needs.
func (s *Server) Hooks() pipeline.Hooks {
	return pipeline.Hooks{
		OnStats:           s.setStats,
		OnFrame:           s.PublishFrame,
		OnAnnotationShown: s.publishFooter,
		OnReveal:          s.publishReveal,
	}
}

// PublishFrame stores res as the latest result and broadcasts it.
func (s *Server) PublishFrame(res *pipeline.Result) {
	if res == nil {
		return
	}
	s.mu.Lock()
	payload := &FramePayload{
		Frame:      res.Frame,
		Format:     res.Format.String(),
		Count:      res.Count(),
		Detections: res.Detections,
		Candidates: res.Candidates,
		Suppressed: res.Suppressed,
		Hazards:    res.Hazards,
		Captures:   res.Captures,
		Stats:      s.stats,
		Footer:     s.footer,
		ElapsedMS:  float64(res.Elapsed) / float64(time.Millisecond),
		Time:       s.now().UTC().Format(time.RFC3339Nano),
	}
	if payload.Detections == nil {
		payload.Detections = []display.Detection{}
	}
	s.latest = payload
	s.mu.Unlock()

	framesPublished.Inc()
	s.hub.Broadcast(WebSocketMessage{Type: MessageFrame, Payload: payload})
}

// Latest returns the most recently published frame, nil before the first.
func (s *Server) Latest() *FramePayload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

func (s *Server) setStats(text string) {
	s.mu.Lock()
	s.stats = text
	s.mu.Unlock()
}

func (s *Server) publishFooter(text string) {
	s.mu.Lock()
	s.footer = text
	s.mu.Unlock()
	s.hub.Broadcast(WebSocketMessage{Type: MessageFooter, Payload: map[string]string{"text": text}})
}

func (s *Server) publishReveal() {
	s.hub.Broadcast(WebSocketMessage{Type: MessageReveal})
}

// Close disconnects all observers.
func (s *Server) Close() error {
	s.hub.Close()
	return nil
}
