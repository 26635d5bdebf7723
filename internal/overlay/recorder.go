package overlay

import (
	"sync"

	"github.com/MeKo-Tech/ripwatch/internal/display"
)

// RecordedBox is the in-memory state of a box handle.
type RecordedBox struct {
	Active    bool
	Style     Style
	Detection display.Detection
	Resets    int
}

// RecordedMarker is the in-memory state of a marker handle.
type RecordedMarker struct {
	Active bool
	Style  Style
	X, Y   float32
	Resets int
}

// Recorder is a Renderer that keeps handle state in memory. It backs headless
// runs and tests. Reads are safe while the pipeline writes.
type Recorder struct {
	mu      sync.RWMutex
	boxes   []*RecordedBox
	markers []*RecordedMarker
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) NewBox() Box {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := &RecordedBox{}
	r.boxes = append(r.boxes, b)
	return &recordedBoxHandle{r: r, b: b}
}

func (r *Recorder) NewMarker() Marker {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := &RecordedMarker{}
	r.markers = append(r.markers, m)
	return &recordedMarkerHandle{r: r, m: m}
}

// Boxes returns a copy of every box created so far.
func (r *Recorder) Boxes() []RecordedBox {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RecordedBox, len(r.boxes))
	for i, b := range r.boxes {
		out[i] = *b
	}
	return out
}

// Markers returns a copy of every marker created so far.
func (r *Recorder) Markers() []RecordedMarker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RecordedMarker, len(r.markers))
	for i, m := range r.markers {
		out[i] = *m
	}
	return out
}

// ActiveDetections returns the detections of active boxes in pool order.
func (r *Recorder) ActiveDetections() []display.Detection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []display.Detection
	for _, b := range r.boxes {
		if b.Active {
			out = append(out, b.Detection)
		}
	}
	return out
}

// ActiveCounts returns the number of active boxes and markers.
func (r *Recorder) ActiveCounts() (boxes, markers int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.boxes {
		if b.Active {
			boxes++
		}
	}
	for _, m := range r.markers {
		if m.Active {
			markers++
		}
	}
	return boxes, markers
}

// Created returns how many handles the recorder has allocated.
func (r *Recorder) Created() (boxes, markers int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.boxes), len(r.markers)
}

type recordedBoxHandle struct {
	r *Recorder
	b *RecordedBox
}

func (h *recordedBoxHandle) Reset(base Style) {
	h.r.mu.Lock()
	defer h.r.mu.Unlock()
	h.b.Style = base
	h.b.Detection = display.Detection{}
	h.b.Resets++
}

func (h *recordedBoxHandle) Place(det display.Detection) {
	h.r.mu.Lock()
	defer h.r.mu.Unlock()
	h.b.Detection = det
}

func (h *recordedBoxHandle) SetStyle(s Style) {
	h.r.mu.Lock()
	defer h.r.mu.Unlock()
	h.b.Style = s
}

func (h *recordedBoxHandle) SetActive(active bool) {
	h.r.mu.Lock()
	defer h.r.mu.Unlock()
	h.b.Active = active
}

type recordedMarkerHandle struct {
	r *Recorder
	m *RecordedMarker
}

func (h *recordedMarkerHandle) Reset(base Style) {
	h.r.mu.Lock()
	defer h.r.mu.Unlock()
	h.m.Style = base
	h.m.X, h.m.Y = 0, 0
	h.m.Resets++
}

func (h *recordedMarkerHandle) PointAt(x, y float32) {
	h.r.mu.Lock()
	defer h.r.mu.Unlock()
	h.m.X, h.m.Y = x, y
}

func (h *recordedMarkerHandle) SetStyle(s Style) {
	h.r.mu.Lock()
	defer h.r.mu.Unlock()
	h.m.Style = s
}

func (h *recordedMarkerHandle) SetActive(active bool) {
	h.r.mu.Lock()
	defer h.r.mu.Unlock()
	h.m.Active = active
}
