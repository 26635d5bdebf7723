// Package utils loads and stores camera frames.
package utils

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
)

// FrameError reports a failed frame load or save.
type FrameError struct {
	Op   string // "load", "decode" or "save"
	Path string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("frame %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("frame %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// SupportedImageExtensions lists the frame formats, in lookup order.
var SupportedImageExtensions = []string{".png", ".jpg", ".jpeg", ".bmp"}

// IsSupportedImage reports whether the path has a supported image extension.
func IsSupportedImage(path string) bool {
	return slices.Contains(SupportedImageExtensions, strings.ToLower(filepath.Ext(path)))
}

// ImageInfo describes a decoded frame file.
type ImageInfo struct {
	Path   string
	Format string
	Bytes  int64
	Width  int
	Height int
}

// FindImage returns the first existing frame image named base plus one of
// SupportedImageExtensions.
func FindImage(base string) (string, bool) {
	for _, ext := range SupportedImageExtensions {
		path := base + ext
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// LoadImage decodes a camera frame.
func LoadImage(path string) (image.Image, ImageInfo, error) {
	switch {
	case path == "":
		return nil, ImageInfo{}, &FrameError{Op: "load", Err: errors.New("empty path")}
	case !IsSupportedImage(path):
		return nil, ImageInfo{}, &FrameError{Op: "load", Path: path, Err: fmt.Errorf("unsupported format %q", filepath.Ext(path))}
	}

	f, err := os.Open(path) //nolint:gosec // G304: frame paths come from the recording layout
	if err != nil {
		return nil, ImageInfo{}, &FrameError{Op: "load", Path: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return nil, ImageInfo{}, &FrameError{Op: "load", Path: path, Err: err}
	}
	img, format, err := image.Decode(f)
	if err != nil {
		return nil, ImageInfo{}, &FrameError{Op: "decode", Path: path, Err: err}
	}

	b := img.Bounds()
	return img, ImageInfo{Path: path, Format: format, Bytes: st.Size(), Width: b.Dx(), Height: b.Dy()}, nil
}

// SaveImage encodes img to path, creating parent directories. The format
// follows the file extension.
func SaveImage(img image.Image, path string) error {
	if img == nil {
		return &FrameError{Op: "save", Path: path, Err: errors.New("nil image")}
	}
	if !IsSupportedImage(path) {
		return &FrameError{Op: "save", Path: path, Err: fmt.Errorf("unsupported format %q", filepath.Ext(path))}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return &FrameError{Op: "save", Path: path, Err: err}
	}
	if err := imaging.Save(img, path); err != nil {
		return &FrameError{Op: "save", Path: path, Err: err}
	}
	return nil
}
