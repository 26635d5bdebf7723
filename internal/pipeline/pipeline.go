package pipeline

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	"github.com/MeKo-Tech/ripwatch/internal/detector"
	"github.com/MeKo-Tech/ripwatch/internal/display"
	"github.com/MeKo-Tech/ripwatch/internal/overlay"
	"github.com/MeKo-Tech/ripwatch/internal/tensor"
	"github.com/MeKo-Tech/ripwatch/internal/trigger"
)

// DefaultErrorLogInterval is the minimum spacing of repeated error logs.
const DefaultErrorLogInterval = 10 * time.Second

// Config holds the per-frame pipeline settings.
type Config struct {
	Thresholds        detector.Thresholds
	Stabilizer        detector.StabilizerConfig
	NMSIoUThreshold   float32
	HazardClassID     uint32
	FlipX             bool
	MaxPointerMarkers int
	Trigger           trigger.Config
	ErrorLogInterval  time.Duration
}

// DefaultConfig returns the settings used by the deployed viewer.
func DefaultConfig() Config {
	return Config{
		Thresholds:        detector.DefaultThresholds(),
		Stabilizer:        detector.DefaultStabilizerConfig(),
		NMSIoUThreshold:   detector.DefaultIoUThreshold,
		HazardClassID:     0,
		FlipX:             false,
		MaxPointerMarkers: overlay.DefaultMaxMarkers,
		Trigger:           trigger.DefaultConfig(),
		ErrorLogInterval:  DefaultErrorLogInterval,
	}
}

// Validate checks the configuration and reports every problem found.
func (c Config) Validate() error {
	var err error
	if c.NMSIoUThreshold < 0 || c.NMSIoUThreshold > 1 {
		err = multierr.Append(err, fmt.Errorf("nms iou threshold must be in [0,1], got %.3f", c.NMSIoUThreshold))
	}
	if c.MaxPointerMarkers < 0 {
		err = multierr.Append(err, fmt.Errorf("max pointer markers cannot be negative, got %d", c.MaxPointerMarkers))
	}
	if c.Stabilizer.SwitchThreshold < 0 {
		err = multierr.Append(err, fmt.Errorf("switch threshold cannot be negative, got %f", c.Stabilizer.SwitchThreshold))
	}
	thresholds := []struct {
		name string
		v    float32
	}{
		{"multi-class", c.Thresholds.MultiClass},
		{"binary", c.Thresholds.BinaryLogit},
		{"single-class", c.Thresholds.SingleClass},
	}
	for _, th := range thresholds {
		if th.v < 0 || th.v > 1 {
			err = multierr.Append(err, fmt.Errorf("%s threshold must be in [0,1], got %.3f", th.name, th.v))
		}
	}
	if c.Trigger.CaptureCooldown < 0 || c.Trigger.RevealDelay < 0 || c.Trigger.FooterRestoreDelay < 0 {
		err = multierr.Append(err, errors.New("hook delays cannot be negative"))
	}
	return err
}

// DisplaySource reports the current size of the display surface. It is
// queried once per frame so resizes take effect immediately.
type DisplaySource interface {
	DisplaySize() display.Size
}

// StaticDisplay is a DisplaySource with a fixed size.
type StaticDisplay display.Size

// DisplaySize implements DisplaySource.
func (s StaticDisplay) DisplaySize() display.Size {
	return display.Size(s)
}

// Frame is one model output plus the camera frame it was computed from.
type Frame struct {
	Tensor tensor.Tensor
	// ImageSize is the camera image size used for the letterbox fit.
	ImageSize display.Size
	// InputSize is the model input size used to scale normalized boxes.
	// Zero means ImageSize.
	InputSize display.Size
	// Image is handed to the capture hook. May be nil.
	Image image.Image
	// InferenceTime is the model run time reported by the producer, if known.
	InferenceTime time.Duration
}

// Result describes one processed frame.
type Result struct {
	Frame      uint64              `json:"frame"`
	Format     detector.Format     `json:"-"`
	Detections []display.Detection `json:"detections"`
	Candidates int                 `json:"candidates"`
	Suppressed int                 `json:"suppressed"`
	Overrides  int                 `json:"overrides"`
	Hazards    int                 `json:"hazards"`
	Captures   []string            `json:"captures,omitempty"`
	Sync       overlay.SyncStats   `json:"-"`
	Elapsed    time.Duration       `json:"elapsed_ns"`
}

// Count returns the number of finalized detections.
func (r *Result) Count() int {
	return len(r.Detections)
}

// Pipeline turns model output tensors into pooled screen annotations.
// ProcessFrame is not safe for concurrent use.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger
	clock  clock.Clock

	decoder    *detector.Decoder
	stabilizer *detector.Stabilizer
	mapper     display.Mapper
	pool       *overlay.Pool
	hazard     *trigger.Hazard
	display    DisplaySource
	hooks      Hooks

	stats    *Stats
	throttle *logThrottle
	frames   uint64
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Pool returns the annotation pool.
func (p *Pipeline) Pool() *overlay.Pool {
	return p.pool
}

// Stats returns the inference stats tracker.
func (p *Pipeline) Stats() *Stats {
	return p.stats
}

// Stabilizer returns the class hysteresis table.
func (p *Pipeline) Stabilizer() *detector.Stabilizer {
	return p.stabilizer
}

// ProcessFrame decodes, stabilizes, deduplicates and maps one frame and
// syncs the annotation pool with the result. On a decode error the
// annotations are cleared, a count of 0 is emitted and the error is
// returned together with an empty result.
func (p *Pipeline) ProcessFrame(f Frame) (*Result, error) {
	start := p.clock.Now()
	p.frames++
	res := &Result{Frame: p.frames}

	input := f.InputSize
	if !input.Valid() {
		input = f.ImageSize
	}

	format, cands, err := p.decoder.Decode(f.Tensor, input.Width, input.Height)
	res.Format = format
	if err != nil {
		p.fail(res, err)
		return res, err
	}
	res.Candidates = len(cands)

	if format.Stabilized() {
		res.Overrides = p.stabilizer.StabilizeAll(cands)
		p.stabilizer.EndFrame()
	}

	for i := range cands {
		if cands[i].ClassID != p.cfg.HazardClassID {
			continue
		}
		res.Hazards++
		hr := p.hazard.Observe(f.Image)
		if hr.Captured {
			res.Captures = append(res.Captures, hr.CaptureName)
		}
	}

	keep := detector.SuppressIndices(cands, p.cfg.NMSIoUThreshold)
	res.Suppressed = len(cands) - len(keep)

	surface := p.display.DisplaySize()
	res.Detections = make([]display.Detection, 0, len(keep))
	for _, idx := range keep {
		res.Detections = append(res.Detections, p.mapper.ToDetection(cands[idx], f.ImageSize, surface))
	}

	res.Sync = p.pool.Sync(res.Detections)
	p.emitCount(res.Count())

	res.Elapsed = p.clock.Since(start)
	if f.InferenceTime > 0 {
		p.stats.Record(f.InferenceTime)
	} else {
		p.stats.Record(res.Elapsed)
	}
	p.emitStats()

	observeFrame(res, p.stabilizer.Len())
	p.logger.Debug("Frame processed",
		"frame", res.Frame,
		"format", format.String(),
		"candidates", res.Candidates,
		"detections", res.Count(),
		"suppressed", res.Suppressed,
		"overrides", res.Overrides,
		"markers_denied", res.Sync.MarkersDenied)

	if p.hooks.OnFrame != nil {
		p.hooks.OnFrame(res)
	}
	return res, nil
}

func (p *Pipeline) fail(res *Result, err error) {
	p.pool.Clear()
	p.emitCount(0)
	p.stats.Clear()
	p.emitStats()

	reason := "malformed_tensor"
	if detector.IsUnsupportedFormat(err) {
		reason = "unsupported_format"
	}
	frameErrorsTotal.WithLabelValues(reason).Inc()
	activeAnnotations.Set(0)

	p.throttle.Do(reason, func(suppressed int) {
		p.logger.Warn("Object detection failed, annotations cleared",
			"frame", res.Frame,
			"reason", reason,
			"error", err,
			"suppressed_repeats", suppressed)
	})

	if p.hooks.OnFrame != nil {
		p.hooks.OnFrame(res)
	}
}

// Reset clears every annotation, the hysteresis table and the stats, and
// emits a count of 0.
func (p *Pipeline) Reset() {
	p.pool.Clear()
	p.stabilizer.Reset()
	p.stats.Clear()
	p.emitCount(0)
	p.emitStats()
	activeAnnotations.Set(0)
}

// Close cancels pending delayed hooks.
func (p *Pipeline) Close() {
	p.hazard.Stop()
}

func (p *Pipeline) emitCount(n int) {
	if p.hooks.OnCount != nil {
		p.hooks.OnCount(n)
	}
}

func (p *Pipeline) emitStats() {
	if p.hooks.OnStats != nil {
		p.hooks.OnStats(p.stats.Text())
	}
}
