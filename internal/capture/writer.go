package capture

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/MeKo-Tech/ripwatch/internal/utils"
)

// DefaultQueueSize bounds the number of frames waiting to be written.
const DefaultQueueSize = 8

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("capture writer closed")

type job struct {
	img  image.Image
	name string
}

// Stats counts capture outcomes.
type Stats struct {
	Written int64
	Dropped int64
	Failed  int64
}

// Writer persists captured frames on a background goroutine. Enqueue never
// blocks: frames are dropped when the queue is full.
type Writer struct {
	dir   string
	queue chan job

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	written atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64

	// OnWritten is called after each successful write, from the writer goroutine.
	OnWritten func(path string)
}

// NewWriter creates the capture directory and a writer with the given queue
// size (DefaultQueueSize when <= 0).
func NewWriter(dir string, queueSize int) (*Writer, error) {
	if dir == "" {
		return nil, errors.New("capture directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Writer{dir: dir, queue: make(chan job, queueSize)}, nil
}

// Start runs the writer loop until ctx is done or Close is called.
func (w *Writer) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		slog.Info("Capture writer started", "dir", w.dir)
		for {
			select {
			case <-ctx.Done():
				w.drain()
				return
			case j, ok := <-w.queue:
				if !ok {
					return
				}
				w.write(j)
			}
		}
	}()
}

// Enqueue queues img for writing as name. It reports false when the frame
// was dropped.
func (w *Writer) Enqueue(img image.Image, name string) bool {
	if img == nil || name == "" {
		w.dropped.Add(1)
		return false
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.dropped.Add(1)
		return false
	}
	select {
	case w.queue <- job{img: img, name: filepath.Base(name)}:
		return true
	default:
		w.dropped.Add(1)
		slog.Warn("Capture queue full, dropping frame", "filename", name)
		return false
	}
}

// Capture matches the capture hook signature and discards the result.
func (w *Writer) Capture(img image.Image, name string) {
	w.Enqueue(img, name)
}

// Close stops accepting frames, flushes the queue and waits for the loop.
func (w *Writer) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()

	w.wg.Wait()
	return nil
}

// Stats returns the current counters.
func (w *Writer) Stats() Stats {
	return Stats{
		Written: w.written.Load(),
		Dropped: w.dropped.Load(),
		Failed:  w.failed.Load(),
	}
}

// Dir returns the capture directory.
func (w *Writer) Dir() string {
	return w.dir
}

func (w *Writer) drain() {
	for {
		select {
		case j, ok := <-w.queue:
			if !ok {
				return
			}
			w.write(j)
		default:
			return
		}
	}
}

func (w *Writer) write(j job) {
	path := filepath.Join(w.dir, j.name)
	if err := utils.SaveImage(j.img, path); err != nil {
		w.failed.Add(1)
		slog.Error("Failed to write capture", "path", path, "error", err)
		return
	}
	w.written.Add(1)
	slog.Debug("Capture written", "path", path)
	if w.OnWritten != nil {
		w.OnWritten(path)
	}
}
