package overlay

import (
	"image/color"

	"github.com/MeKo-Tech/ripwatch/internal/display"
)

// Style is the visual override applied to a pooled handle.
type Style struct {
	Color      color.RGBA
	LabelColor color.RGBA
	Thickness  int
}

// DefaultStyle is the style every handle is reset to before reuse.
func DefaultStyle() Style {
	return Style{
		Color:      color.RGBA{R: 0, G: 200, B: 255, A: 255},
		LabelColor: color.RGBA{R: 255, G: 255, B: 255, A: 255},
		Thickness:  2,
	}
}

// HazardStyle highlights annotations of the hazard class.
func HazardStyle() Style {
	return Style{
		Color:      color.RGBA{R: 255, G: 64, B: 32, A: 255},
		LabelColor: color.RGBA{R: 255, G: 255, B: 255, A: 255},
		Thickness:  3,
	}
}

// Box is a box-plus-label annotation owned by a renderer.
type Box interface {
	// Reset clears label, geometry and any style override.
	Reset(base Style)
	Place(det display.Detection)
	SetStyle(s Style)
	SetActive(active bool)
}

// Marker is a directional pointer marker owned by a renderer.
type Marker interface {
	Reset(base Style)
	// PointAt aims the marker at a display-space point.
	PointAt(x, y float32)
	SetStyle(s Style)
	SetActive(active bool)
}

// Renderer creates annotation handles. Handles are created once by the Pool
// and reused across frames.
type Renderer interface {
	NewBox() Box
	NewMarker() Marker
}
