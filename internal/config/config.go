package config

import (
	"fmt"
	"slices"
	"strings"

	"go.uber.org/multierr"

	"github.com/MeKo-Tech/ripwatch/internal/capture"
	"github.com/MeKo-Tech/ripwatch/internal/detector"
	"github.com/MeKo-Tech/ripwatch/internal/display"
	"github.com/MeKo-Tech/ripwatch/internal/overlay"
	"github.com/MeKo-Tech/ripwatch/internal/pipeline"
	"github.com/MeKo-Tech/ripwatch/internal/replay"
	"github.com/MeKo-Tech/ripwatch/internal/server"
	"github.com/MeKo-Tech/ripwatch/internal/trigger"
)

var validLogLevels = []string{"debug", "info", "warn", "error"}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	th := detector.DefaultThresholds()
	stab := detector.DefaultStabilizerConfig()
	hooks := trigger.DefaultConfig()

	return Config{
		LogLevel: "info",
		Verbose:  false,
		Detector: DetectorConfig{
			MultiClassThreshold:  th.MultiClass,
			BinaryThreshold:      th.BinaryLogit,
			SingleClassThreshold: th.SingleClass,
			ClassBias:            th.ClassBias,
			HazardClassID:        0,
		},
		Stabilizer: StabilizerConfig{
			SwitchThreshold: stab.SwitchThreshold,
			GCInterval:      stab.GCInterval,
			MaxEntries:      stab.MaxEntries,
			EvictCount:      stab.EvictCount,
		},
		NMS: NMSConfig{IoUThreshold: detector.DefaultIoUThreshold},
		Display: DisplayConfig{
			FlipX:  false,
			Width:  1280,
			Height: 720,
		},
		Overlay: OverlayConfig{MaxPointerMarkers: overlay.DefaultMaxMarkers},
		Hooks: HooksConfig{
			ScreenshotCooldown: hooks.CaptureCooldown,
			RevealDelay:        hooks.RevealDelay,
			FooterRestoreDelay: hooks.FooterRestoreDelay,
			FooterBaseText:     hooks.FooterBaseText,
			CapturePrefix:      hooks.CapturePrefix,
			CaptureDir:         "",
			CaptureQueue:       capture.DefaultQueueSize,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			ShutdownTimeout: 10,
			SendQueue:       server.DefaultSendQueue,
			SnapshotRate:    2,
			SnapshotBurst:   4,
		},
		Replay: ReplayConfig{
			FPS:         30,
			ImageWidth:  int(replay.DefaultImageSize.Width),
			ImageHeight: int(replay.DefaultImageSize.Height),
		},
	}
}

// Validate validates the configuration and returns every problem found.
func (c *Config) Validate() error {
	var err error

	if !slices.Contains(validLogLevels, c.LogLevel) {
		err = multierr.Append(err, fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", ")))
	}

	thresholds := []struct {
		name  string
		value float32
	}{
		{"detector.multi_class_threshold", c.Detector.MultiClassThreshold},
		{"detector.binary_threshold", c.Detector.BinaryThreshold},
		{"detector.single_class_threshold", c.Detector.SingleClassThreshold},
		{"nms.iou_threshold", c.NMS.IoUThreshold},
	}
	for _, th := range thresholds {
		err = multierr.Append(err, validateThreshold(float64(th.value), th.name))
	}

	if c.Stabilizer.SwitchThreshold < 0 {
		err = multierr.Append(err, fmt.Errorf("invalid stabilizer.switch_threshold: %f (must not be negative)", c.Stabilizer.SwitchThreshold))
	}
	positives := []struct {
		name  string
		value int
	}{
		{"stabilizer.gc_interval", c.Stabilizer.GCInterval},
		{"stabilizer.max_entries", c.Stabilizer.MaxEntries},
		{"stabilizer.evict_count", c.Stabilizer.EvictCount},
		{"display.width", c.Display.Width},
		{"display.height", c.Display.Height},
		{"hooks.capture_queue", c.Hooks.CaptureQueue},
		{"server.shutdown_timeout", c.Server.ShutdownTimeout},
		{"server.send_queue", c.Server.SendQueue},
	}
	for _, p := range positives {
		if p.value <= 0 {
			err = multierr.Append(err, fmt.Errorf("invalid %s: %d (must be positive)", p.name, p.value))
		}
	}

	if c.Overlay.MaxPointerMarkers < 0 {
		err = multierr.Append(err, fmt.Errorf("invalid overlay.max_pointer_markers: %d (must not be negative)", c.Overlay.MaxPointerMarkers))
	}
	if c.Hooks.ScreenshotCooldown < 0 || c.Hooks.RevealDelay < 0 || c.Hooks.FooterRestoreDelay < 0 {
		err = multierr.Append(err, fmt.Errorf("invalid hooks delays: durations must not be negative"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		err = multierr.Append(err, fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port))
	}
	if c.Server.SnapshotRate < 0 {
		err = multierr.Append(err, fmt.Errorf("invalid server.snapshot_rate: %.2f (must not be negative)", c.Server.SnapshotRate))
	}
	if c.Replay.FPS < 0 {
		err = multierr.Append(err, fmt.Errorf("invalid replay.fps: %.2f (must not be negative)", c.Replay.FPS))
	}
	if c.Replay.ImageWidth < 0 || c.Replay.ImageHeight < 0 || c.Replay.InputWidth < 0 || c.Replay.InputHeight < 0 {
		err = multierr.Append(err, fmt.Errorf("invalid replay sizes: dimensions must not be negative"))
	}

	return err
}

// ToPipelineConfig converts the config to the pipeline configuration.
func (c *Config) ToPipelineConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.Thresholds = detector.Thresholds{
		MultiClass:  c.Detector.MultiClassThreshold,
		BinaryLogit: c.Detector.BinaryThreshold,
		SingleClass: c.Detector.SingleClassThreshold,
		ClassBias:   c.Detector.ClassBias,
	}
	cfg.Stabilizer = detector.StabilizerConfig{
		SwitchThreshold: c.Stabilizer.SwitchThreshold,
		GCInterval:      c.Stabilizer.GCInterval,
		MaxEntries:      c.Stabilizer.MaxEntries,
		EvictCount:      c.Stabilizer.EvictCount,
	}
	cfg.NMSIoUThreshold = c.NMS.IoUThreshold
	cfg.HazardClassID = c.Detector.HazardClassID
	cfg.FlipX = c.Display.FlipX
	cfg.MaxPointerMarkers = c.Overlay.MaxPointerMarkers
	cfg.Trigger = c.toTriggerConfig()
	return cfg
}

// toTriggerConfig converts to trigger.Config.
func (c *Config) toTriggerConfig() trigger.Config {
	cfg := trigger.DefaultConfig()
	cfg.CaptureCooldown = c.Hooks.ScreenshotCooldown
	cfg.RevealDelay = c.Hooks.RevealDelay
	cfg.FooterRestoreDelay = c.Hooks.FooterRestoreDelay
	cfg.FooterBaseText = c.Hooks.FooterBaseText
	if c.Hooks.CapturePrefix != "" {
		cfg.CapturePrefix = c.Hooks.CapturePrefix
	}
	return cfg
}

// ToServerConfig converts to server.Config.
func (c *Config) ToServerConfig() server.Config {
	return server.Config{
		Host:          c.Server.Host,
		Port:          c.Server.Port,
		CORSOrigin:    c.Server.CORSOrigin,
		SendQueue:     c.Server.SendQueue,
		SnapshotRate:  c.Server.SnapshotRate,
		SnapshotBurst: c.Server.SnapshotBurst,
	}
}

// ToReplayOptions converts to replay.Options.
func (c *Config) ToReplayOptions() replay.Options {
	return replay.Options{
		ImageSize:  display.Size{Width: float32(c.Replay.ImageWidth), Height: float32(c.Replay.ImageHeight)},
		InputSize:  display.Size{Width: float32(c.Replay.InputWidth), Height: float32(c.Replay.InputHeight)},
		LoadImages: c.Replay.LoadImages,
	}
}

// DisplaySize returns the configured display surface.
func (c *Config) DisplaySize() display.Size {
	return display.Size{Width: float32(c.Display.Width), Height: float32(c.Display.Height)}
}

// LoadLabels reads the configured label file. Without a path the table is
// empty and every class falls back to its synthetic name.
func (c *Config) LoadLabels() (display.LabelTable, error) {
	if c.Labels.Path == "" {
		return display.NewLabelTable(), nil
	}
	labels, err := display.LoadLabels(c.Labels.Path)
	if err != nil {
		return display.LabelTable{}, fmt.Errorf("load labels: %w", err)
	}
	return labels, nil
}

// validateThreshold validates that a value is between 0.0 and 1.0.
func validateThreshold(value float64, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %.2f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}
