package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/benbjohnson/clock"
)

// FrameSource yields frames in order and returns io.EOF when exhausted.
type FrameSource interface {
	Next(ctx context.Context) (Frame, error)
}

// SizedSource is a FrameSource that knows its frame count.
type SizedSource interface {
	FrameSource
	Len() int
}

// RunOptions controls Run.
type RunOptions struct {
	// FPS paces frames on Clock. Zero runs as fast as possible.
	FPS float64
	// MaxFrames stops after that many frames. Zero means no limit.
	MaxFrames int
	Clock     clock.Clock
	Progress  ProgressCallback
}

// RunSummary totals a Run.
type RunSummary struct {
	Frames     int           `json:"frames"`
	Errors     int           `json:"errors"`
	Detections int           `json:"detections"`
	Hazards    int           `json:"hazards"`
	Captures   int           `json:"captures"`
	Elapsed    time.Duration `json:"elapsed_ns"`
}

// Run feeds frames from src through p until the source is exhausted, the
// frame limit is hit or ctx is cancelled. Frame decode errors are counted and
// reported to the progress callback; source errors abort the run.
func Run(ctx context.Context, p *Pipeline, src FrameSource, opts RunOptions) (RunSummary, error) {
	var sum RunSummary

	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	progress := opts.Progress
	if progress == nil {
		progress = NoOpProgressCallback{}
	}

	total := 0
	if sized, ok := src.(SizedSource); ok {
		total = sized.Len()
	}
	if opts.MaxFrames > 0 && (total == 0 || opts.MaxFrames < total) {
		total = opts.MaxFrames
	}

	var ticker *clock.Ticker
	if opts.FPS > 0 {
		ticker = clk.Ticker(time.Duration(float64(time.Second) / opts.FPS))
		defer ticker.Stop()
	}

	start := clk.Now()
	progress.OnStart(total)

	for opts.MaxFrames == 0 || sum.Frames < opts.MaxFrames {
		if err := ctx.Err(); err != nil {
			sum.Elapsed = clk.Since(start)
			return sum, err
		}

		if ticker != nil && sum.Frames > 0 {
			select {
			case <-ctx.Done():
				sum.Elapsed = clk.Since(start)
				return sum, ctx.Err()
			case <-ticker.C:
			}
		}

		frame, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			sum.Elapsed = clk.Since(start)
			progress.OnError(sum.Frames, err)
			return sum, fmt.Errorf("read frame %d: %w", sum.Frames, err)
		}

		res, err := p.ProcessFrame(frame)
		sum.Frames++
		if err != nil {
			sum.Errors++
			progress.OnError(sum.Frames, err)
		} else {
			sum.Detections += res.Count()
			sum.Hazards += res.Hazards
			sum.Captures += len(res.Captures)
		}
		progress.OnProgress(sum.Frames, total)
	}

	sum.Elapsed = clk.Since(start)
	progress.OnComplete()
	return sum, nil
}
