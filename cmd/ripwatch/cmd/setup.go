package cmd

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/MeKo-Tech/ripwatch/internal/capture"
	"github.com/MeKo-Tech/ripwatch/internal/config"
	"github.com/MeKo-Tech/ripwatch/internal/overlay"
	"github.com/MeKo-Tech/ripwatch/internal/pipeline"
	"github.com/MeKo-Tech/ripwatch/internal/replay"
)

// applyPipelineFlags copies explicitly set pipeline flags onto cfg.
func applyPipelineFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("flip-x") {
		cfg.Display.FlipX, _ = flags.GetBool("flip-x")
	}
	if flags.Changed("display-width") {
		cfg.Display.Width, _ = flags.GetInt("display-width")
	}
	if flags.Changed("display-height") {
		cfg.Display.Height, _ = flags.GetInt("display-height")
	}
	if flags.Changed("hazard-class") {
		cfg.Detector.HazardClassID, _ = flags.GetUint32("hazard-class")
	}
	if flags.Changed("iou-threshold") {
		cfg.NMS.IoUThreshold, _ = flags.GetFloat32("iou-threshold")
	}
	if flags.Changed("capture-dir") {
		cfg.Hooks.CaptureDir, _ = flags.GetString("capture-dir")
	}
	if flags.Changed("image-width") {
		cfg.Replay.ImageWidth, _ = flags.GetInt("image-width")
	}
	if flags.Changed("image-height") {
		cfg.Replay.ImageHeight, _ = flags.GetInt("image-height")
	}
	if flags.Changed("input-width") {
		cfg.Replay.InputWidth, _ = flags.GetInt("input-width")
	}
	if flags.Changed("input-height") {
		cfg.Replay.InputHeight, _ = flags.GetInt("input-height")
	}
	if flags.Changed("load-images") {
		cfg.Replay.LoadImages, _ = flags.GetBool("load-images")
	}
}

// addPipelineFlags registers the flags read by applyPipelineFlags.
func addPipelineFlags(cmd *cobra.Command) {
	d := config.DefaultConfig()
	cmd.Flags().Bool("flip-x", d.Display.FlipX, "mirror annotations horizontally (front camera)")
	cmd.Flags().Int("display-width", d.Display.Width, "display surface width")
	cmd.Flags().Int("display-height", d.Display.Height, "display surface height")
	cmd.Flags().Uint32("hazard-class", d.Detector.HazardClassID, "class id that fires the hazard hooks")
	cmd.Flags().Float32("iou-threshold", d.NMS.IoUThreshold, "overlap above which boxes are suppressed")
	cmd.Flags().String("capture-dir", d.Hooks.CaptureDir, "directory for hazard screenshots (disabled when empty)")
	cmd.Flags().Int("image-width", d.Replay.ImageWidth, "camera frame width for recordings without sizes")
	cmd.Flags().Int("image-height", d.Replay.ImageHeight, "camera frame height for recordings without sizes")
	cmd.Flags().Int("input-width", d.Replay.InputWidth, "model input width (0 = image width)")
	cmd.Flags().Int("input-height", d.Replay.InputHeight, "model input height (0 = image height)")
	cmd.Flags().Bool("load-images", d.Replay.LoadImages, "attach camera frames stored next to .npy dumps")
}

// frameTap remembers the frame currently being processed so hooks and
// snapshot renders can reach its camera image.
type frameTap struct {
	pipeline.FrameSource

	mu    sync.RWMutex
	frame pipeline.Frame
	seen  bool
}

func newFrameTap(src pipeline.FrameSource) *frameTap {
	return &frameTap{FrameSource: src}
}

func (t *frameTap) Next(ctx context.Context) (pipeline.Frame, error) {
	f, err := t.FrameSource.Next(ctx)
	if err == nil {
		t.mu.Lock()
		t.frame = pipeline.Frame{Image: f.Image, ImageSize: f.ImageSize}
		t.seen = true
		t.mu.Unlock()
	}
	return f, err
}

// Len forwards the frame count of sized sources.
func (t *frameTap) Len() int {
	if sized, ok := t.FrameSource.(pipeline.SizedSource); ok {
		return sized.Len()
	}
	return 0
}

// current returns the camera image of the current frame and whether a frame
// has been read yet.
func (t *frameTap) current() (image.Image, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.frame.Image, t.seen
}

// session bundles the pieces shared by replay and serve.
type session struct {
	cfg      *config.Config
	source   replay.Source
	tap      *frameTap
	raster   *overlay.Raster
	captures *capture.Writer
	pipeline *pipeline.Pipeline
}

// openSession opens the recording, starts the capture writer and builds the
// pipeline with hooks chained after the capture hook.
func openSession(ctx context.Context, cfg *config.Config, recording string, loop bool, hooks pipeline.Hooks) (*session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	labels, err := cfg.LoadLabels()
	if err != nil {
		return nil, err
	}

	src, err := replay.Open(recording, cfg.ToReplayOptions())
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, source: src, raster: overlay.NewRaster()}
	var feed pipeline.FrameSource = src
	if loop {
		feed = replay.NewLoop(src)
	}
	s.tap = newFrameTap(feed)

	if cfg.Hooks.CaptureDir != "" {
		s.captures, err = capture.NewWriter(cfg.Hooks.CaptureDir, cfg.Hooks.CaptureQueue)
		if err != nil {
			_ = src.Close()
			return nil, fmt.Errorf("create capture writer: %w", err)
		}
		s.captures.OnWritten = func(path string) {
			slog.Info("Hazard screenshot saved", "path", path)
		}
		s.captures.Start(ctx)
		hooks = pipeline.Hooks{OnCapture: s.captures.Capture}.Chain(hooks)
	}

	s.pipeline, err = pipeline.NewBuilder().
		WithConfig(cfg.ToPipelineConfig()).
		WithLabels(labels).
		WithRenderer(s.raster).
		WithDisplay(pipeline.StaticDisplay(cfg.DisplaySize())).
		WithHooks(hooks).
		WithLogger(slog.Default()).
		Build()
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// snapshot composes the annotations over the current camera frame. It
// returns nil before the first frame.
func (s *session) snapshot() image.Image {
	img, ok := s.tap.current()
	if !ok {
		return nil
	}
	return s.raster.Compose(img, s.cfg.DisplaySize(), s.cfg.Display.FlipX)
}

// Close releases the pipeline timers, flushes captures and closes the
// recording.
func (s *session) Close() error {
	if s.pipeline != nil {
		s.pipeline.Close()
	}
	var err error
	if s.captures != nil {
		err = multierr.Append(err, s.captures.Close())
	}
	return multierr.Append(err, s.source.Close())
}
