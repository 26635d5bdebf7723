package replay

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/MeKo-Tech/ripwatch/internal/display"
	"github.com/MeKo-Tech/ripwatch/internal/pipeline"
	"github.com/MeKo-Tech/ripwatch/internal/tensor"
	"github.com/MeKo-Tech/ripwatch/internal/utils"
)

// NpySource reads one frame per .npy file, in file name order. With
// LoadImages set, an image with the same base name (frame_0001.npy next to
// frame_0001.png) is attached as the camera frame and provides ImageSize.
type NpySource struct {
	files []string
	opts  Options
	next  int
}

// OpenNpyDir lists the .npy files in dir.
func OpenNpyDir(dir string, opts Options) (*NpySource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".npy") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%s: %w", dir, ErrEmptyRecording)
	}
	sort.Strings(files)
	return OpenNpyFiles(files, opts)
}

// OpenNpyFiles replays the given files in order.
func OpenNpyFiles(files []string, opts Options) (*NpySource, error) {
	if len(files) == 0 {
		return nil, ErrEmptyRecording
	}
	return &NpySource{files: files, opts: opts.withDefaults()}, nil
}

// Next loads the next file.
func (s *NpySource) Next(ctx context.Context) (pipeline.Frame, error) {
	if err := ctx.Err(); err != nil {
		return pipeline.Frame{}, err
	}
	if s.next >= len(s.files) {
		return pipeline.Frame{}, io.EOF
	}
	idx := s.next
	path := s.files[idx]
	s.next++

	t, err := tensor.LoadNpy(path)
	if err != nil {
		return pipeline.Frame{}, &Error{Path: path, Frame: idx, Err: err}
	}

	frame := pipeline.Frame{
		Tensor:    t,
		ImageSize: s.opts.ImageSize,
		InputSize: s.opts.InputSize,
	}
	if s.opts.LoadImages {
		s.attachImage(&frame, path)
	}
	return frame, nil
}

func (s *NpySource) attachImage(frame *pipeline.Frame, npyPath string) {
	path, ok := utils.FindImage(strings.TrimSuffix(npyPath, filepath.Ext(npyPath)))
	if !ok {
		return
	}
	img, info, err := utils.LoadImage(path)
	if err != nil {
		slog.Warn("Failed to load frame image", "path", path, "error", err)
		return
	}
	frame.Image = img
	frame.ImageSize = display.Size{Width: float32(info.Width), Height: float32(info.Height)}
}

// Len returns the number of files.
func (s *NpySource) Len() int {
	return len(s.files)
}

// Rewind restarts at the first file.
func (s *NpySource) Rewind() error {
	s.next = 0
	return nil
}

// Close is a no-op.
func (s *NpySource) Close() error {
	return nil
}

// WriteNpyFrame stores t as dir/frame_<index>.npy and returns the path.
func WriteNpyFrame(dir string, index int, t tensor.Tensor) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("frame_%05d.npy", index))
	f, err := os.Create(path) //nolint:gosec // G304: output path built from the user's directory
	if err != nil {
		return "", err
	}
	if err := tensor.WriteNpy(f, t); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, f.Close()
}
