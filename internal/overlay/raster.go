package overlay

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"sync"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/MeKo-Tech/ripwatch/internal/display"
)

const markerSize = 12

// Raster is a Renderer that draws active annotations over a letterboxed
// copy of the camera frame.
type Raster struct {
	Face font.Face

	mu      sync.Mutex
	boxes   []*rasterBox
	markers []*rasterMarker
}

// NewRaster creates a raster renderer using the 7x13 bitmap font.
func NewRaster() *Raster {
	return &Raster{Face: basicfont.Face7x13}
}

type rasterBox struct {
	mu     *sync.Mutex
	active bool
	style  Style
	det    display.Detection
}

type rasterMarker struct {
	mu     *sync.Mutex
	active bool
	style  Style
	x, y   float32
}

func (r *Raster) NewBox() Box {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := &rasterBox{mu: &r.mu}
	r.boxes = append(r.boxes, b)
	return b
}

func (r *Raster) NewMarker() Marker {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := &rasterMarker{mu: &r.mu}
	r.markers = append(r.markers, m)
	return m
}

func (b *rasterBox) Reset(base Style) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.style = base
	b.det = display.Detection{}
}

func (b *rasterBox) Place(det display.Detection) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.det = det
}

func (b *rasterBox) SetStyle(s Style) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.style = s
}

func (b *rasterBox) SetActive(active bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.active = active
}

func (m *rasterMarker) Reset(base Style) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.style = base
	m.x, m.y = 0, 0
}

func (m *rasterMarker) PointAt(x, y float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.x, m.y = x, y
}

func (m *rasterMarker) SetStyle(s Style) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.style = s
}

func (m *rasterMarker) SetActive(active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = active
}

// Compose letterboxes frame into a canvas of the display size and draws every
// active annotation on top. A nil frame yields a black background.
func (r *Raster) Compose(frame image.Image, surface display.Size, flipX bool) *image.NRGBA {
	dw, dh := int(surface.Width), int(surface.Height)
	if dw <= 0 || dh <= 0 {
		return imaging.New(0, 0, color.Black)
	}
	canvas := imaging.New(dw, dh, color.Black)

	if frame != nil && !frame.Bounds().Empty() {
		if flipX {
			frame = imaging.FlipH(frame)
		}
		b := frame.Bounds()
		lb := display.ComputeLetterbox(display.Size{Width: float32(b.Dx()), Height: float32(b.Dy())}, surface)
		fw := int(math.Round(float64(float32(b.Dx()) * lb.Scale)))
		fh := int(math.Round(float64(float32(b.Dy()) * lb.Scale)))
		if fw > 0 && fh > 0 {
			canvas = imaging.PasteCenter(canvas, imaging.Resize(frame, fw, fh, imaging.Linear))
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	halfW, halfH := surface.Width/2, surface.Height/2
	for _, b := range r.boxes {
		if !b.active {
			continue
		}
		x0 := int(b.det.CenterX - b.det.Width/2 + halfW)
		y0 := int(b.det.CenterY - b.det.Height/2 + halfH)
		x1 := int(b.det.CenterX + b.det.Width/2 + halfW)
		y1 := int(b.det.CenterY + b.det.Height/2 + halfH)
		strokeRect(canvas, image.Rect(x0, y0, x1, y1), b.style.Color, b.style.Thickness)
		r.drawLabel(canvas, b.det.Label, x0, y0, b.style)
	}
	for _, m := range r.markers {
		if !m.active {
			continue
		}
		fillMarker(canvas, int(m.x+halfW), int(m.y+halfH), m.style.Color)
	}
	return canvas
}

// ActiveBoxes returns the number of active boxes.
func (r *Raster) ActiveBoxes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, b := range r.boxes {
		if b.active {
			n++
		}
	}
	return n
}

func (r *Raster) drawLabel(dst draw.Image, label string, x, y int, s Style) {
	if label == "" || r.Face == nil {
		return
	}
	metrics := r.Face.Metrics()
	lineH := (metrics.Ascent + metrics.Descent).Ceil()
	textW := font.MeasureString(r.Face, label).Ceil()

	top := y - lineH - 2
	if top < 0 {
		top = y
	}
	bg := image.Rect(x, top, x+textW+4, top+lineH+2)
	draw.Draw(dst, bg.Intersect(dst.Bounds()), image.NewUniform(s.Color), image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(s.LabelColor),
		Face: r.Face,
		Dot:  fixed.P(x+2, top+1+metrics.Ascent.Ceil()),
	}
	drawer.DrawString(label)
}

// strokeRect draws the outline of rect with the given thickness.
func strokeRect(dst draw.Image, rect image.Rectangle, c color.RGBA, thickness int) {
	if thickness <= 0 {
		thickness = 1
	}
	src := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+thickness),
		image.Rect(rect.Min.X, rect.Max.Y-thickness, rect.Max.X, rect.Max.Y),
		image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+thickness, rect.Max.Y),
		image.Rect(rect.Max.X-thickness, rect.Min.Y, rect.Max.X, rect.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(dst.Bounds()), src, image.Point{}, draw.Src)
	}
}

// fillMarker draws a downward-pointing triangle whose tip sits on (x, y).
func fillMarker(dst draw.Image, x, y int, c color.RGBA) {
	bounds := dst.Bounds()
	for dy := 0; dy < markerSize; dy++ {
		row := y - markerSize + dy
		half := (markerSize - dy) / 2
		for dx := -half; dx <= half; dx++ {
			p := image.Pt(x+dx, row)
			if p.In(bounds) {
				dst.Set(p.X, p.Y, c)
			}
		}
	}
}
