package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "ripwatch"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "RIPWATCH"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance so that flags bound
// by the root command take part in resolution.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWithViper creates a loader on v.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load loads configuration from files, environment variables and defaults,
// and validates it.
func (l *Loader) Load() (*Config, error) {
	return l.load("", true)
}

// LoadWithoutValidation is Load without the validation step.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	return l.load("", false)
}

// LoadWithFile loads configuration from a specific file path. An empty path
// searches the standard locations.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	return l.load(configFile, true)
}

// LoadWithFileWithoutValidation is LoadWithFile without the validation step.
func (l *Loader) LoadWithFileWithoutValidation(configFile string) (*Config, error) {
	return l.load(configFile, false)
}

func (l *Loader) load(configFile string, validate bool) (*Config, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
	}

	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		// A missing file in the search paths is fine; defaults and env apply.
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if validate {
		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	return &config, nil
}

// Get returns a value from the configuration.
func (l *Loader) Get(key string) interface{} {
	return l.v.Get(key)
}

// GetString returns a string value from the configuration.
func (l *Loader) GetString(key string) string {
	return l.v.GetString(key)
}

// Set sets a value in the configuration.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance for advanced usage.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// addConfigPaths adds the standard configuration search paths.
func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

// setupEnvironmentVariables configures environment variable handling.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()

	// Replace dots and dashes with underscores in env var names
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults sets default values for all configuration options.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("log_level", d.LogLevel)
	l.v.SetDefault("verbose", d.Verbose)

	l.v.SetDefault("detector.multi_class_threshold", d.Detector.MultiClassThreshold)
	l.v.SetDefault("detector.binary_threshold", d.Detector.BinaryThreshold)
	l.v.SetDefault("detector.single_class_threshold", d.Detector.SingleClassThreshold)
	l.v.SetDefault("detector.class_bias", d.Detector.ClassBias)
	l.v.SetDefault("detector.hazard_class_id", d.Detector.HazardClassID)

	l.v.SetDefault("stabilizer.switch_threshold", d.Stabilizer.SwitchThreshold)
	l.v.SetDefault("stabilizer.gc_interval", d.Stabilizer.GCInterval)
	l.v.SetDefault("stabilizer.max_entries", d.Stabilizer.MaxEntries)
	l.v.SetDefault("stabilizer.evict_count", d.Stabilizer.EvictCount)

	l.v.SetDefault("nms.iou_threshold", d.NMS.IoUThreshold)

	l.v.SetDefault("display.flip_x", d.Display.FlipX)
	l.v.SetDefault("display.width", d.Display.Width)
	l.v.SetDefault("display.height", d.Display.Height)

	l.v.SetDefault("overlay.max_pointer_markers", d.Overlay.MaxPointerMarkers)

	l.v.SetDefault("hooks.screenshot_cooldown", d.Hooks.ScreenshotCooldown)
	l.v.SetDefault("hooks.reveal_delay", d.Hooks.RevealDelay)
	l.v.SetDefault("hooks.footer_restore_delay", d.Hooks.FooterRestoreDelay)
	l.v.SetDefault("hooks.footer_base_text", d.Hooks.FooterBaseText)
	l.v.SetDefault("hooks.capture_prefix", d.Hooks.CapturePrefix)
	l.v.SetDefault("hooks.capture_dir", d.Hooks.CaptureDir)
	l.v.SetDefault("hooks.capture_queue", d.Hooks.CaptureQueue)

	l.v.SetDefault("labels.path", d.Labels.Path)

	l.v.SetDefault("server.host", d.Server.Host)
	l.v.SetDefault("server.port", d.Server.Port)
	l.v.SetDefault("server.cors_origin", d.Server.CORSOrigin)
	l.v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	l.v.SetDefault("server.send_queue", d.Server.SendQueue)
	l.v.SetDefault("server.snapshot_rate", d.Server.SnapshotRate)
	l.v.SetDefault("server.snapshot_burst", d.Server.SnapshotBurst)

	l.v.SetDefault("replay.fps", d.Replay.FPS)
	l.v.SetDefault("replay.image_width", d.Replay.ImageWidth)
	l.v.SetDefault("replay.image_height", d.Replay.ImageHeight)
	l.v.SetDefault("replay.input_width", d.Replay.InputWidth)
	l.v.SetDefault("replay.input_height", d.Replay.InputHeight)
	l.v.SetDefault("replay.load_images", d.Replay.LoadImages)
}

// GetResolvedConfig returns the current resolved configuration for debugging.
func (l *Loader) GetResolvedConfig() map[string]interface{} {
	return l.v.AllSettings()
}

// WriteConfigToFile writes the current configuration to a file.
func (l *Loader) WriteConfigToFile(filename string) error {
	return l.v.WriteConfigAs(filename)
}

// GenerateDefaultConfigFile writes the default configuration. An empty
// filename writes ripwatch.yaml in the working directory.
func GenerateDefaultConfigFile(filename string) error {
	loader := NewLoaderWithViper(viper.New())
	loader.setDefaults()

	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}

	return loader.WriteConfigToFile(filename)
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
	}

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, ConfigFileName))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", ConfigFileName))
	}

	paths = append(paths, filepath.Join("/etc", ConfigFileName))

	return paths
}

// PrintConfigInfo writes information about configuration loading to w.
func (l *Loader) PrintConfigInfo(w io.Writer) {
	_, _ = fmt.Fprintf(w, "Configuration file used: %s\n", l.GetConfigFileUsed())
	_, _ = fmt.Fprintf(w, "Configuration search paths: %v\n", GetConfigSearchPaths())
	_, _ = fmt.Fprintf(w, "Environment prefix: %s\n", EnvPrefix)
}
