package testutil

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultCameraFrameConfig(t *testing.T) {
	cfg := DefaultCameraFrameConfig()
	assert.Equal(t, MediumSize, cfg.Size)
	assert.Less(t, cfg.Horizon, cfg.Shore)
	assert.True(t, cfg.Channel.Empty())
}

func TestGenerateCameraFrame(t *testing.T) {
	cfg := DefaultCameraFrameConfig()
	cfg.Size = SmallSize
	cfg.Noise = 0

	img := GenerateCameraFrame(cfg)
	assert.Equal(t, SmallSize.Width, img.Bounds().Dx())
	assert.Equal(t, SmallSize.Height, img.Bounds().Dy())

	assert.Equal(t, cfg.Sky, img.NRGBAAt(5, 5))
	assert.Equal(t, cfg.Sand, img.NRGBAAt(5, SmallSize.Height-2))
}

func TestGenerateCameraFrame_Channel(t *testing.T) {
	cfg := DefaultCameraFrameConfig()
	cfg.Noise = 0
	plain := GenerateCameraFrame(cfg)

	cfg.Channel = image.Rect(300, 0, 340, cfg.Size.Height)
	rip := GenerateCameraFrame(cfg)

	y := cfg.Size.Height / 2
	assert.Equal(t, plain.NRGBAAt(10, y), rip.NRGBAAt(10, y))
	assert.Less(t, rip.NRGBAAt(320, y).B, plain.NRGBAAt(320, y).B, "channel water is darker")
}

func TestGenerateCameraFrame_Deterministic(t *testing.T) {
	cfg := DefaultCameraFrameConfig()
	cfg.Size = SmallSize
	cfg.Caption = "cam 1"

	a := GenerateCameraFrame(cfg)
	b := GenerateCameraFrame(cfg)
	assert.Equal(t, a.Pix, b.Pix)

	cfg.Seed = 2
	c := GenerateCameraFrame(cfg)
	assert.True(t, CompareImages(a, c, 0.05))
	assert.NotEqual(t, a.Pix, c.Pix)
}

func TestCompareImages(t *testing.T) {
	a := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	b := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	assert.True(t, CompareImages(a, b, 0))

	c := CreateCameraFrame(4, 4)
	assert.False(t, CompareImages(a, c, 0.01))
	assert.False(t, CompareImages(a, image.NewNRGBA(image.Rect(0, 0, 5, 4)), 1))
}
