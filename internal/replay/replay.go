// Package replay provides frame sources backed by recorded detector output.
package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/ripwatch/internal/display"
	"github.com/MeKo-Tech/ripwatch/internal/pipeline"
)

// DefaultImageSize is used when a recording does not carry frame sizes.
var DefaultImageSize = display.Size{Width: 640, Height: 640}

// Error reports a problem with one recorded frame.
type Error struct {
	Path  string
	Frame int
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("replay %s frame %d: %v", e.Path, e.Frame, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrEmptyRecording is returned by Open for recordings without frames.
var ErrEmptyRecording = errors.New("recording holds no frames")

// Options configures a source.
type Options struct {
	// ImageSize applies to frames that do not record their own size.
	ImageSize display.Size
	// InputSize is the model input size. Zero means ImageSize.
	InputSize display.Size
	// LoadImages attaches the camera frame stored next to a .npy dump.
	LoadImages bool
}

func (o Options) withDefaults() Options {
	if !o.ImageSize.Valid() {
		o.ImageSize = DefaultImageSize
	}
	return o
}

// Source is a rewindable frame source.
type Source interface {
	pipeline.SizedSource
	Rewind() error
	Close() error
}

// Open picks a source by path: a directory of .npy files or a .jsonl dump.
func Open(path string, opts Options) (Source, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}
	if fi.IsDir() {
		return OpenNpyDir(path, opts)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		return OpenJSONL(path, opts)
	case ".npy":
		return OpenNpyFiles([]string{path}, opts)
	default:
		return nil, fmt.Errorf("unsupported recording format: %s", filepath.Ext(path))
	}
}

// Loop replays src forever, rewinding it when exhausted.
type Loop struct {
	Source
}

// NewLoop wraps src.
func NewLoop(src Source) *Loop {
	return &Loop{Source: src}
}

// Next returns the next frame, starting over at the end of the recording.
func (l *Loop) Next(ctx context.Context) (pipeline.Frame, error) {
	f, err := l.Source.Next(ctx)
	if !errors.Is(err, io.EOF) {
		return f, err
	}
	if l.Source.Len() == 0 {
		return pipeline.Frame{}, io.EOF
	}
	if err := l.Rewind(); err != nil {
		return pipeline.Frame{}, err
	}
	return l.Source.Next(ctx)
}

// Len reports 0: a looping source has no end.
func (l *Loop) Len() int {
	return 0
}
