//nolint:lll
package config

import "time"

// Config represents the complete configuration for ripwatch. It covers the
// detection pipeline, the hazard hooks and the replay and serve commands, and
// is loaded from configuration files, environment variables and flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Detector   DetectorConfig   `mapstructure:"detector" yaml:"detector" json:"detector"`
	Stabilizer StabilizerConfig `mapstructure:"stabilizer" yaml:"stabilizer" json:"stabilizer"`
	NMS        NMSConfig        `mapstructure:"nms" yaml:"nms" json:"nms"`
	Display    DisplayConfig    `mapstructure:"display" yaml:"display" json:"display"`
	Overlay    OverlayConfig    `mapstructure:"overlay" yaml:"overlay" json:"overlay"`
	Hooks      HooksConfig      `mapstructure:"hooks" yaml:"hooks" json:"hooks"`
	Labels     LabelsConfig     `mapstructure:"labels" yaml:"labels" json:"labels"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// Replay configuration (for replay and serve commands)
	Replay ReplayConfig `mapstructure:"replay" yaml:"replay" json:"replay"`
}

// DetectorConfig contains decode thresholds and the hazard class.
type DetectorConfig struct {
	MultiClassThreshold  float32 `mapstructure:"multi_class_threshold" yaml:"multi_class_threshold" json:"multi_class_threshold"`
	BinaryThreshold      float32 `mapstructure:"binary_threshold" yaml:"binary_threshold" json:"binary_threshold"`
	SingleClassThreshold float32 `mapstructure:"single_class_threshold" yaml:"single_class_threshold" json:"single_class_threshold"`
	ClassBias            float32 `mapstructure:"class_bias" yaml:"class_bias" json:"class_bias"`
	HazardClassID        uint32  `mapstructure:"hazard_class_id" yaml:"hazard_class_id" json:"hazard_class_id"`
}

// StabilizerConfig contains class hysteresis settings.
type StabilizerConfig struct {
	SwitchThreshold float32 `mapstructure:"switch_threshold" yaml:"switch_threshold" json:"switch_threshold"`
	GCInterval      int     `mapstructure:"gc_interval" yaml:"gc_interval" json:"gc_interval"`
	MaxEntries      int     `mapstructure:"max_entries" yaml:"max_entries" json:"max_entries"`
	EvictCount      int     `mapstructure:"evict_count" yaml:"evict_count" json:"evict_count"`
}

// NMSConfig contains suppression settings.
type NMSConfig struct {
	IoUThreshold float32 `mapstructure:"iou_threshold" yaml:"iou_threshold" json:"iou_threshold"`
}

// DisplayConfig describes the display surface annotations are mapped onto.
type DisplayConfig struct {
	FlipX  bool `mapstructure:"flip_x" yaml:"flip_x" json:"flip_x"`
	Width  int  `mapstructure:"width" yaml:"width" json:"width"`
	Height int  `mapstructure:"height" yaml:"height" json:"height"`
}

// OverlayConfig contains annotation pool settings.
type OverlayConfig struct {
	MaxPointerMarkers int `mapstructure:"max_pointer_markers" yaml:"max_pointer_markers" json:"max_pointer_markers"`
}

// HooksConfig contains hazard side-effect settings.
type HooksConfig struct {
	ScreenshotCooldown time.Duration `mapstructure:"screenshot_cooldown" yaml:"screenshot_cooldown" json:"screenshot_cooldown"`
	RevealDelay        time.Duration `mapstructure:"reveal_delay" yaml:"reveal_delay" json:"reveal_delay"`
	FooterRestoreDelay time.Duration `mapstructure:"footer_restore_delay" yaml:"footer_restore_delay" json:"footer_restore_delay"`
	FooterBaseText     string        `mapstructure:"footer_base_text" yaml:"footer_base_text" json:"footer_base_text"`
	CapturePrefix      string        `mapstructure:"capture_prefix" yaml:"capture_prefix" json:"capture_prefix"`
	CaptureDir         string        `mapstructure:"capture_dir" yaml:"capture_dir" json:"capture_dir"`
	CaptureQueue       int           `mapstructure:"capture_queue" yaml:"capture_queue" json:"capture_queue"`
}

// LabelsConfig points at the class label file.
type LabelsConfig struct {
	Path string `mapstructure:"path" yaml:"path" json:"path"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string  `mapstructure:"host" yaml:"host" json:"host"`
	Port            int     `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string  `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	ShutdownTimeout int     `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	SendQueue       int     `mapstructure:"send_queue" yaml:"send_queue" json:"send_queue"`
	SnapshotRate    float64 `mapstructure:"snapshot_rate" yaml:"snapshot_rate" json:"snapshot_rate"`
	SnapshotBurst   int     `mapstructure:"snapshot_burst" yaml:"snapshot_burst" json:"snapshot_burst"`
}

// ReplayConfig contains recording playback settings.
type ReplayConfig struct {
	FPS         float64 `mapstructure:"fps" yaml:"fps" json:"fps"`
	ImageWidth  int     `mapstructure:"image_width" yaml:"image_width" json:"image_width"`
	ImageHeight int     `mapstructure:"image_height" yaml:"image_height" json:"image_height"`
	InputWidth  int     `mapstructure:"input_width" yaml:"input_width" json:"input_width"`
	InputHeight int     `mapstructure:"input_height" yaml:"input_height" json:"input_height"`
	LoadImages  bool    `mapstructure:"load_images" yaml:"load_images" json:"load_images"`
}
