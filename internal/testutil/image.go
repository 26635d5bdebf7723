package testutil

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"math/rand"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ImageSize represents common camera frame dimensions.
type ImageSize struct {
	Width  int
	Height int
}

var (
	// Common camera frame sizes.
	SmallSize  = ImageSize{320, 240}
	MediumSize = ImageSize{640, 480}
	LargeSize  = ImageSize{1280, 720}
)

// CameraFrameConfig holds configuration for generating synthetic beach frames.
type CameraFrameConfig struct {
	Size ImageSize
	Sky  color.NRGBA
	Sea  color.NRGBA
	Sand color.NRGBA
	// Horizon and Shore are fractions of the frame height.
	Horizon float64
	Shore   float64
	// Channel darkens a vertical band of water, the way a rip looks from
	// the beach. Empty means no channel.
	Channel image.Rectangle
	Caption string
	Noise   float64
	Seed    int64
}

// DefaultCameraFrameConfig returns a default configuration for camera frames.
func DefaultCameraFrameConfig() CameraFrameConfig {
	return CameraFrameConfig{
		Size:    MediumSize,
		Sky:     color.NRGBA{R: 150, G: 200, B: 235, A: 255},
		Sea:     color.NRGBA{R: 30, G: 110, B: 150, A: 255},
		Sand:    color.NRGBA{R: 220, G: 200, B: 160, A: 255},
		Horizon: 0.3,
		Shore:   0.8,
		Noise:   0.02,
		Seed:    1,
	}
}

// GenerateCameraFrame paints a synthetic beach frame.
func GenerateCameraFrame(cfg CameraFrameConfig) *image.NRGBA {
	w, h := cfg.Size.Width, cfg.Size.Height
	img := imaging.New(w, h, cfg.Sand)

	horizon := int(float64(h) * cfg.Horizon)
	shore := int(float64(h) * cfg.Shore)
	draw.Draw(img, image.Rect(0, 0, w, horizon), &image.Uniform{cfg.Sky}, image.Point{}, draw.Src)

	// Water gets lighter towards the shore.
	for y := horizon; y < shore; y++ {
		t := float64(y-horizon) / math.Max(1, float64(shore-horizon))
		row := color.NRGBA{
			R: lerp(cfg.Sea.R, 200, t*0.5),
			G: lerp(cfg.Sea.G, 220, t*0.5),
			B: lerp(cfg.Sea.B, 230, t*0.5),
			A: 255,
		}
		draw.Draw(img, image.Rect(0, y, w, y+1), &image.Uniform{row}, image.Point{}, draw.Src)
	}

	if !cfg.Channel.Empty() {
		band := cfg.Channel.Intersect(image.Rect(0, horizon, w, shore))
		dark := color.NRGBA{R: cfg.Sea.R / 2, G: cfg.Sea.G / 2, B: cfg.Sea.B / 2, A: 200}
		draw.Draw(img, band, &image.Uniform{dark}, image.Point{}, draw.Over)
	}

	if cfg.Noise > 0 {
		img = addNoise(img, cfg.Noise, cfg.Seed)
	}

	if cfg.Caption != "" {
		drawer := &font.Drawer{
			Dst:  img,
			Src:  image.White,
			Face: basicfont.Face7x13,
			Dot:  fixed.P(8, h-8),
		}
		drawer.DrawString(cfg.Caption)
	}

	return img
}

// CreateCameraFrame returns a default beach frame of the given size.
func CreateCameraFrame(width, height int) *image.NRGBA {
	cfg := DefaultCameraFrameConfig()
	cfg.Size = ImageSize{width, height}
	return GenerateCameraFrame(cfg)
}

// CompareImages compares two images and returns true if they are similar.
func CompareImages(img1, img2 image.Image, tolerance float64) bool {
	bounds1 := img1.Bounds()
	bounds2 := img2.Bounds()

	if bounds1.Dx() != bounds2.Dx() || bounds1.Dy() != bounds2.Dy() {
		return false
	}

	var totalDiff float64
	var pixelCount float64

	for y := 0; y < bounds1.Dy(); y++ {
		for x := 0; x < bounds1.Dx(); x++ {
			r1, g1, b1, a1 := img1.At(bounds1.Min.X+x, bounds1.Min.Y+y).RGBA()
			r2, g2, b2, a2 := img2.At(bounds2.Min.X+x, bounds2.Min.Y+y).RGBA()

			dr := float64(r1) - float64(r2)
			dg := float64(g1) - float64(g2)
			db := float64(b1) - float64(b2)
			da := float64(a1) - float64(a2)

			totalDiff += math.Sqrt(dr*dr + dg*dg + db*db + da*da)
			pixelCount++
		}
	}
	if pixelCount == 0 {
		return true
	}

	avgDiff := totalDiff / pixelCount
	maxDiff := math.Sqrt(4 * 65535 * 65535) // Maximum possible difference

	return (avgDiff / maxDiff) <= tolerance
}

// addNoise adds random noise to simulate sensor grain.
func addNoise(img *image.NRGBA, noiseLevel float64, seed int64) *image.NRGBA {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // G404: synthetic images
	amp := noiseLevel * 255
	for i := 0; i+3 < len(img.Pix); i += 4 {
		d := (rng.Float64()*2 - 1) * amp
		img.Pix[i] = clamp8(float64(img.Pix[i]) + d)
		img.Pix[i+1] = clamp8(float64(img.Pix[i+1]) + d)
		img.Pix[i+2] = clamp8(float64(img.Pix[i+2]) + d)
	}
	return img
}

func lerp(a uint8, b uint8, t float64) uint8 {
	return clamp8(float64(a) + (float64(b)-float64(a))*t)
}

func clamp8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
