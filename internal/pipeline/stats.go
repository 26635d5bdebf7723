package pipeline

import (
	"fmt"
	"sync"
	"time"
)

// Stats tracks the latest inference time and a running average.
type Stats struct {
	mu      sync.RWMutex
	last    time.Duration
	total   time.Duration
	samples int
}

// NewStats creates an empty tracker.
func NewStats() *Stats {
	return &Stats{}
}

// Record stores one inference duration.
func (s *Stats) Record(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = d
	s.total += d
	s.samples++
}

// Clear drops every sample.
func (s *Stats) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last, s.total, s.samples = 0, 0, 0
}

// Last returns the most recent duration.
func (s *Stats) Last() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Average returns the mean duration over all samples.
func (s *Stats) Average() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.samples == 0 {
		return 0
	}
	return s.total / time.Duration(s.samples)
}

// Samples returns the number of recorded durations.
func (s *Stats) Samples() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.samples
}

// Text renders the latest sample as shown in the viewer, or "" when empty.
func (s *Stats) Text() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.samples == 0 {
		return ""
	}
	return FormatStats(s.last)
}

// FormatStats renders d as inference time and the frame rate it allows.
func FormatStats(d time.Duration) string {
	ms := float64(d) / float64(time.Millisecond)
	fps := 0.0
	if ms > 0 {
		fps = 1000 / ms
	}
	return fmt.Sprintf("Inference Time: %.2f ms\nFrame Rate: %.2f FPS", ms, fps)
}
