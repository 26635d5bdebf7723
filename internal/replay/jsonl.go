package replay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/MeKo-Tech/ripwatch/internal/display"
	"github.com/MeKo-Tech/ripwatch/internal/mempool"
	"github.com/MeKo-Tech/ripwatch/internal/pipeline"
	"github.com/MeKo-Tech/ripwatch/internal/tensor"
)

// initialFloats sizes the first decode buffer for a 6-channel, 8400-anchor
// model output.
const initialFloats = 6 * 8400

// Record is one line of a JSON-lines recording.
type Record struct {
	Shape       []int64   `json:"shape"`
	Data        []float32 `json:"data"`
	ImageWidth  float32   `json:"image_width,omitempty"`
	ImageHeight float32   `json:"image_height,omitempty"`
	InputWidth  float32   `json:"input_width,omitempty"`
	InputHeight float32   `json:"input_height,omitempty"`
	InferenceMS float64   `json:"inference_ms,omitempty"`
}

// JSONLSource reads frames from a JSON-lines file. The tensor data of a
// returned frame is only valid until the next call to Next.
type JSONLSource struct {
	path   string
	opts   Options
	file   *os.File
	reader *bufio.Reader
	frames int
	next   int
	buf    []float32
}

// OpenJSONL opens path and counts its frames.
func OpenJSONL(path string, opts Options) (*JSONLSource, error) {
	f, err := os.Open(path) //nolint:gosec // G304: recording path is provided by the user
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}

	frames, err := countLines(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("scan recording %s: %w", path, err)
	}
	if frames == 0 {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyRecording)
	}

	s := &JSONLSource{
		path:   path,
		opts:   opts.withDefaults(),
		file:   f,
		frames: frames,
		buf:    mempool.GetFloat32(initialFloats)[:0],
	}
	if err := s.Rewind(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func countLines(r io.Reader) (int, error) {
	buf := make([]byte, 64*1024)
	n, content := 0, false
	for {
		k, err := r.Read(buf)
		for _, b := range buf[:k] {
			switch b {
			case '\n':
				if content {
					n++
				}
				content = false
			case ' ', '\t', '\r':
			default:
				content = true
			}
		}
		if errors.Is(err, io.EOF) {
			if content {
				n++
			}
			return n, nil
		}
		if err != nil {
			return n, err
		}
	}
}

// Next decodes the next non-empty line.
func (s *JSONLSource) Next(ctx context.Context) (pipeline.Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return pipeline.Frame{}, err
		}
		line, err := s.reader.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) == 0 {
			if err != nil {
				return pipeline.Frame{}, io.EOF
			}
			continue
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return pipeline.Frame{}, &Error{Path: s.path, Frame: s.next, Err: err}
		}
		return s.decode(line)
	}
}

func (s *JSONLSource) decode(line []byte) (pipeline.Frame, error) {
	rec := Record{Data: s.buf[:0]}
	idx := s.next
	s.next++
	if err := json.Unmarshal(line, &rec); err != nil {
		return pipeline.Frame{}, &Error{Path: s.path, Frame: idx, Err: err}
	}
	s.buf = rec.Data

	t := tensor.Tensor{Data: rec.Data, Shape: rec.Shape}
	if len(rec.Shape) == 2 {
		t.Shape = []int64{1, rec.Shape[0], rec.Shape[1]}
	}

	frame := pipeline.Frame{
		Tensor:        t,
		ImageSize:     display.Size{Width: rec.ImageWidth, Height: rec.ImageHeight},
		InputSize:     display.Size{Width: rec.InputWidth, Height: rec.InputHeight},
		InferenceTime: time.Duration(rec.InferenceMS * float64(time.Millisecond)),
	}
	if !frame.ImageSize.Valid() {
		frame.ImageSize = s.opts.ImageSize
	}
	if !frame.InputSize.Valid() {
		frame.InputSize = s.opts.InputSize
	}
	return frame, nil
}

// Len returns the number of frames in the file.
func (s *JSONLSource) Len() int {
	return s.frames
}

// Rewind restarts at the first frame.
func (s *JSONLSource) Rewind() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind %s: %w", s.path, err)
	}
	if s.reader == nil {
		s.reader = bufio.NewReaderSize(s.file, 1<<20)
	} else {
		s.reader.Reset(s.file)
	}
	s.next = 0
	return nil
}

// Close releases the file and the decode buffer.
func (s *JSONLSource) Close() error {
	mempool.PutFloat32(s.buf)
	s.buf = nil
	return s.file.Close()
}

// JSONLWriter writes frames in the JSON-lines recording format.
type JSONLWriter struct {
	w   *bufio.Writer
	enc *json.Encoder
}

// NewJSONLWriter creates a writer on w. Call Flush when done.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	bw := bufio.NewWriter(w)
	return &JSONLWriter{w: bw, enc: json.NewEncoder(bw)}
}

// Write appends one frame.
func (jw *JSONLWriter) Write(f pipeline.Frame) error {
	if err := f.Tensor.Validate(); err != nil {
		return err
	}
	return jw.enc.Encode(Record{
		Shape:       f.Tensor.Shape,
		Data:        f.Tensor.Data,
		ImageWidth:  f.ImageSize.Width,
		ImageHeight: f.ImageSize.Height,
		InputWidth:  f.InputSize.Width,
		InputHeight: f.InputSize.Height,
		InferenceMS: float64(f.InferenceTime) / float64(time.Millisecond),
	})
}

// Flush writes buffered data to the underlying writer.
func (jw *JSONLWriter) Flush() error {
	return jw.w.Flush()
}
