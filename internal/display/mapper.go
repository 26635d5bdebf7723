package display

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/MeKo-Tech/ripwatch/internal/detector"
)

// Size is a width/height pair in pixels or display units.
type Size struct {
	Width  float32 `json:"width"`
	Height float32 `json:"height"`
}

// Valid reports whether both dimensions are positive.
func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// Letterbox describes the aspect-preserving fit of an image into a display.
type Letterbox struct {
	Scale float32
	XPad  float32
	YPad  float32
}

// ComputeLetterbox returns the uniform scale and centering padding that fit
// image inside display. Invalid sizes yield the zero Letterbox.
func ComputeLetterbox(image, display Size) Letterbox {
	if !image.Valid() || !display.Valid() {
		return Letterbox{}
	}
	s := math32.Min(display.Width/image.Width, display.Height/image.Height)
	return Letterbox{
		Scale: s,
		XPad:  (display.Width - image.Width*s) / 2,
		YPad:  (display.Height - image.Height*s) / 2,
	}
}

// Detection is one finalized annotation in display-local coordinates, with
// the origin at the display center.
type Detection struct {
	CenterX    float32 `json:"center_x"`
	CenterY    float32 `json:"center_y"`
	Width      float32 `json:"width"`
	Height     float32 `json:"height"`
	Label      string  `json:"label"`
	ClassName  string  `json:"class_name"`
	ClassID    uint32  `json:"class_id"`
	Confidence float32 `json:"confidence"`
}

// Mapper projects model-space candidates onto the display surface.
type Mapper struct {
	FlipX  bool
	Labels LabelTable
}

// Map returns the display-space center and size of c. The horizontal mirror
// is applied in model space before scaling. Sizes are floored at 1.
func (m Mapper) Map(c detector.RawCandidate, image, display Size) (cx, cy, w, h float32) {
	lb := ComputeLetterbox(image, display)

	x := c.X
	if m.FlipX {
		x = image.Width - x
	}

	cx = x*lb.Scale - display.Width/2 + lb.XPad
	cy = c.Y*lb.Scale - display.Height/2 + lb.YPad
	w = math32.Max(1, c.W*lb.Scale)
	h = math32.Max(1, c.H*lb.Scale)
	return cx, cy, w, h
}

// ToDetection maps c and attaches its label.
func (m Mapper) ToDetection(c detector.RawCandidate, image, display Size) Detection {
	cx, cy, w, h := m.Map(c, image, display)
	name := m.Labels.Name(c.ClassID)
	return Detection{
		CenterX:    cx,
		CenterY:    cy,
		Width:      w,
		Height:     h,
		Label:      FormatLabel(name, c.Confidence),
		ClassName:  name,
		ClassID:    c.ClassID,
		Confidence: c.Confidence,
	}
}

// FormatLabel renders "<name> (<pct>% confidence)" with one decimal place.
func FormatLabel(name string, confidence float32) string {
	return fmt.Sprintf("%s (%.1f%% confidence)", name, confidence*100)
}
