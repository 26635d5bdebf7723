package utils

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSupportedImage(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"frame.png", true},
		{"frame.PNG", true},
		{"frame.jpeg", true},
		{"frame.jpg", true},
		{"frame.bmp", true},
		{"frame.gif", false},
		{"frame", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsSupportedImage(tt.path), tt.path)
	}
}

func TestSaveAndLoadImage(t *testing.T) {
	dir := t.TempDir()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 6))
	img.Set(1, 1, color.NRGBA{R: 255, A: 255})

	for _, name := range []string{"a.png", "nested/b.jpg", "c.bmp"} {
		path := filepath.Join(dir, name)
		require.NoError(t, SaveImage(img, path))

		loaded, info, err := LoadImage(path)
		require.NoError(t, err)
		assert.Equal(t, path, info.Path)
		assert.Equal(t, 8, info.Width)
		assert.Equal(t, 6, info.Height)
		assert.Positive(t, info.Bytes)
		assert.Equal(t, image.Rect(0, 0, 8, 6), loaded.Bounds())
	}
}

func TestLoadImage_Errors(t *testing.T) {
	dir := t.TempDir()

	_, _, err := LoadImage("")
	assert.Error(t, err)

	_, _, err = LoadImage(filepath.Join(dir, "frame.gif"))
	assert.Error(t, err)

	_, _, err = LoadImage(filepath.Join(dir, "missing.png"))
	var fe *FrameError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "load", fe.Op)
	assert.Contains(t, fe.Error(), "missing.png")
	assert.True(t, errors.Is(err, os.ErrNotExist))

	bad := filepath.Join(dir, "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0o600))
	_, _, err = LoadImage(bad)
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "decode", fe.Op)
}

func TestSaveImage_Errors(t *testing.T) {
	dir := t.TempDir()
	assert.Error(t, SaveImage(nil, filepath.Join(dir, "x.png")))
	assert.Error(t, SaveImage(image.NewNRGBA(image.Rect(0, 0, 1, 1)), filepath.Join(dir, "x.gif")))
}

func TestFindImage(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "frame_00001")

	_, ok := FindImage(base)
	assert.False(t, ok)

	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	require.NoError(t, SaveImage(img, base+".jpg"))
	path, ok := FindImage(base)
	require.True(t, ok)
	assert.Equal(t, base+".jpg", path)

	require.NoError(t, SaveImage(img, base+".png"))
	path, _ = FindImage(base)
	assert.Equal(t, base+".png", path, "png is preferred")
}
