package pipeline

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/benbjohnson/clock"

	"github.com/MeKo-Tech/ripwatch/internal/detector"
	"github.com/MeKo-Tech/ripwatch/internal/display"
	"github.com/MeKo-Tech/ripwatch/internal/overlay"
	"github.com/MeKo-Tech/ripwatch/internal/trigger"
)

// Builder helps configure and construct a Pipeline.
type Builder struct {
	cfg      Config
	logger   *slog.Logger
	clock    clock.Clock
	renderer overlay.Renderer
	display  DisplaySource
	labels   display.LabelTable
	hooks    Hooks
}

// NewBuilder creates a builder with DefaultConfig.
func NewBuilder() *Builder {
	return &Builder{cfg: DefaultConfig()}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithThresholds sets the decoder keep thresholds.
func (b *Builder) WithThresholds(th detector.Thresholds) *Builder {
	b.cfg.Thresholds = th
	return b
}

// WithStabilizer sets the hysteresis settings.
func (b *Builder) WithStabilizer(cfg detector.StabilizerConfig) *Builder {
	b.cfg.Stabilizer = cfg
	return b
}

// WithIoUThreshold sets the NMS overlap threshold.
func (b *Builder) WithIoUThreshold(t float32) *Builder {
	b.cfg.NMSIoUThreshold = t
	return b
}

// WithFlipX mirrors detections horizontally.
func (b *Builder) WithFlipX(flip bool) *Builder {
	b.cfg.FlipX = flip
	return b
}

// WithMaxPointerMarkers caps the marker pool.
func (b *Builder) WithMaxPointerMarkers(n int) *Builder {
	b.cfg.MaxPointerMarkers = n
	return b
}

// WithHazardClass sets the class that triggers the capture and reveal hooks.
func (b *Builder) WithHazardClass(id uint32) *Builder {
	b.cfg.HazardClassID = id
	return b
}

// WithTrigger sets the hook timing.
func (b *Builder) WithTrigger(cfg trigger.Config) *Builder {
	b.cfg.Trigger = cfg
	return b
}

// WithLabels sets the class label table.
func (b *Builder) WithLabels(lt display.LabelTable) *Builder {
	b.labels = lt
	return b
}

// WithRenderer sets the annotation renderer. Defaults to an overlay.Recorder.
func (b *Builder) WithRenderer(r overlay.Renderer) *Builder {
	b.renderer = r
	return b
}

// WithDisplay sets the display size source.
func (b *Builder) WithDisplay(d DisplaySource) *Builder {
	b.display = d
	return b
}

// WithHooks sets the outbound callbacks.
func (b *Builder) WithHooks(h Hooks) *Builder {
	b.hooks = h
	return b
}

// WithClock sets the clock used for cooldowns and delayed hooks.
func (b *Builder) WithClock(c clock.Clock) *Builder {
	b.clock = c
	return b
}

// WithLogger sets the logger. Defaults to slog.Default().
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// Config returns the current configuration.
func (b *Builder) Config() Config {
	return b.cfg
}

// Validate checks the configuration and required collaborators.
func (b *Builder) Validate() error {
	if err := b.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid pipeline config: %w", err)
	}
	if b.display == nil {
		return fmt.Errorf("invalid pipeline config: display source is required")
	}
	return nil
}

// Build validates the configuration and wires the pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := b.clock
	if clk == nil {
		clk = clock.New()
	}
	renderer := b.renderer
	if renderer == nil {
		renderer = overlay.NewRecorder()
	}

	hazardID := b.cfg.HazardClassID
	pool := overlay.NewPool(renderer, b.cfg.MaxPointerMarkers,
		overlay.WithStyleFunc(func(det display.Detection) (overlay.Style, bool) {
			if det.ClassID == hazardID {
				return overlay.HazardStyle(), true
			}
			return overlay.Style{}, false
		}))

	p := &Pipeline{
		cfg:        b.cfg,
		logger:     logger,
		clock:      clk,
		decoder:    detector.NewDecoder(b.cfg.Thresholds),
		stabilizer: detector.NewStabilizer(b.cfg.Stabilizer),
		mapper:     display.Mapper{FlipX: b.cfg.FlipX, Labels: b.labels},
		pool:       pool,
		display:    b.display,
		hooks:      b.hooks,
		stats:      NewStats(),
		throttle:   newLogThrottle(clk, b.cfg.ErrorLogInterval),
	}
	p.hazard = trigger.NewHazard(clk, b.cfg.Trigger, trigger.Actions{
		Capture: p.onCapture(b.hooks.OnCapture),
		Reveal:  b.hooks.OnReveal,
		Footer:  b.hooks.OnAnnotationShown,
	})

	logger.Info("Detection pipeline ready",
		"iou_threshold", b.cfg.NMSIoUThreshold,
		"switch_threshold", b.cfg.Stabilizer.SwitchThreshold,
		"max_pointer_markers", b.cfg.MaxPointerMarkers,
		"hazard_class", b.labels.Name(hazardID),
		"flip_x", b.cfg.FlipX)
	return p, nil
}

// onCapture counts captures before handing them to hook. A nil hook
// disables captures entirely.
func (p *Pipeline) onCapture(hook func(image.Image, string)) func(image.Image, string) {
	if hook == nil {
		return nil
	}
	return func(frame image.Image, name string) {
		capturesTotal.Inc()
		hook(frame, name)
	}
}
