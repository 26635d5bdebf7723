package overlay

import (
	"log/slog"

	"github.com/MeKo-Tech/ripwatch/internal/display"
)

// DefaultMaxMarkers caps the pointer-marker pool.
const DefaultMaxMarkers = 5

// StyleFunc returns the style override for a detection, or false to keep the
// base style.
type StyleFunc func(det display.Detection) (Style, bool)

// SyncStats summarizes one Sync call.
type SyncStats struct {
	Boxes         int // active box annotations
	Markers       int // active pointer markers
	MarkersDenied int // detections left without a marker
	BoxesCreated  int // handles created this call
}

// Pool keeps box and marker handles alive across frames and reuses them by
// position. The box pool grows to the peak detection count; the marker pool
// is capped. Pool is not safe for concurrent use.
type Pool struct {
	renderer   Renderer
	maxMarkers int
	base       Style
	styleFor   StyleFunc

	boxes   []Box
	markers []Marker

	activeBoxes   int
	activeMarkers int
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithBaseStyle sets the style handles are reset to.
func WithBaseStyle(s Style) PoolOption {
	return func(p *Pool) { p.base = s }
}

// WithStyleFunc sets the per-detection style override.
func WithStyleFunc(fn StyleFunc) PoolOption {
	return func(p *Pool) { p.styleFor = fn }
}

// NewPool creates an empty pool. maxMarkers < 0 is treated as 0.
func NewPool(r Renderer, maxMarkers int, opts ...PoolOption) *Pool {
	if maxMarkers < 0 {
		maxMarkers = 0
	}
	p := &Pool{
		renderer:   r,
		maxMarkers: maxMarkers,
		base:       DefaultStyle(),
		markers:    make([]Marker, 0, maxMarkers),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AcquireBox returns the i-th box handle, creating handles up to i as
// needed. The handle is reset to the base style.
func (p *Pool) AcquireBox(i int) (Box, bool) {
	created := false
	for len(p.boxes) <= i {
		p.boxes = append(p.boxes, p.renderer.NewBox())
		created = true
	}
	b := p.boxes[i]
	b.Reset(p.base)
	return b, created
}

// AcquireMarker returns the i-th marker handle, or (nil, false) once the
// pool is at its cap. Running out of markers is not an error.
func (p *Pool) AcquireMarker(i int) (Marker, bool) {
	if i >= p.maxMarkers {
		return nil, false
	}
	for len(p.markers) <= i {
		p.markers = append(p.markers, p.renderer.NewMarker())
	}
	m := p.markers[i]
	m.Reset(p.base)
	return m, true
}

// Sync activates and places exactly len(dets) boxes and up to maxMarkers
// markers, and deactivates every other handle.
func (p *Pool) Sync(dets []display.Detection) SyncStats {
	var stats SyncStats

	for i, det := range dets {
		box, created := p.AcquireBox(i)
		if created {
			stats.BoxesCreated++
		}
		style, override := p.base, false
		if p.styleFor != nil {
			style, override = p.styleFor(det)
		}
		if override {
			box.SetStyle(style)
		}
		box.Place(det)
		box.SetActive(true)
		stats.Boxes++

		marker, ok := p.AcquireMarker(i)
		if !ok {
			stats.MarkersDenied++
			continue
		}
		if override {
			marker.SetStyle(style)
		}
		marker.PointAt(det.CenterX, det.CenterY)
		marker.SetActive(true)
		stats.Markers++
	}

	p.deactivateFrom(stats.Boxes, stats.Markers)

	if stats.BoxesCreated > 0 {
		slog.Debug("Annotation pool grew", "boxes", len(p.boxes), "markers", len(p.markers))
	}
	return stats
}

// Clear deactivates every handle.
func (p *Pool) Clear() {
	p.deactivateFrom(0, 0)
}

func (p *Pool) deactivateFrom(boxes, markers int) {
	for i := boxes; i < len(p.boxes); i++ {
		p.boxes[i].SetActive(false)
	}
	for i := markers; i < len(p.markers); i++ {
		p.markers[i].SetActive(false)
	}
	p.activeBoxes = boxes
	p.activeMarkers = markers
}

// Active returns the number of active boxes and markers.
func (p *Pool) Active() (boxes, markers int) {
	return p.activeBoxes, p.activeMarkers
}

// Size returns the number of allocated boxes and markers.
func (p *Pool) Size() (boxes, markers int) {
	return len(p.boxes), len(p.markers)
}

// MaxMarkers returns the marker cap.
func (p *Pool) MaxMarkers() int {
	return p.maxMarkers
}
