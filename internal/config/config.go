// Package config handles configuration loading, validation, and management for sketchd.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"sketchd/internal/baseline"
	"sketchd/internal/drawing"
	"sketchd/internal/features"
)

// Version is the current configuration schema version.
const Version = 1

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SKETCHD_"

// Config holds the complete sketchd configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Extraction configures feature extraction and quality control.
	Extraction ExtractionConfig `toml:"extraction" json:"extraction" yaml:"extraction"`

	// Baseline configures robust baselining and anomaly scoring.
	Baseline BaselineConfig `toml:"baseline" json:"baseline" yaml:"baseline"`

	// Trend configures smoothing and change-point detection over scores.
	Trend TrendConfig `toml:"trend" json:"trend" yaml:"trend"`

	// Storage configuration for the session store.
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// Metrics configuration.
	Metrics MetricsConfig `toml:"metrics" json:"metrics" yaml:"metrics"`

	// Watch configuration for the drawing inbox.
	Watch WatchConfig `toml:"watch" json:"watch" yaml:"watch"`

	mu sync.RWMutex `toml:"-" json:"-" yaml:"-"`
}

// ExtractionConfig holds feature extraction configuration.
type ExtractionConfig struct {
	// CanvasWidth is used when a drawing omits canvas_w.
	CanvasWidth float64 `toml:"canvas_width" json:"canvas_width" yaml:"canvas_width"`

	// CanvasHeight is used when a drawing omits canvas_h.
	CanvasHeight float64 `toml:"canvas_height" json:"canvas_height" yaml:"canvas_height"`

	// MinInkLength is the total ink length below which a session is flagged too_short.
	MinInkLength float64 `toml:"min_ink_length" json:"min_ink_length" yaml:"min_ink_length"`

	// MinStrokes is the stroke count below which a session is flagged too_few_strokes.
	MinStrokes int `toml:"min_strokes" json:"min_strokes" yaml:"min_strokes"`

	// Concurrency bounds parallel extraction in batch mode.
	Concurrency int `toml:"concurrency" json:"concurrency" yaml:"concurrency"`
}

// Thresholds converts the QC settings into extraction thresholds.
func (e ExtractionConfig) Thresholds() features.Thresholds {
	return features.Thresholds{
		MinInkLength: e.MinInkLength,
		MinStrokes:   e.MinStrokes,
	}
}

// BaselineConfig holds baseline configuration.
type BaselineConfig struct {
	// Window is the number of most recent sessions used for the baseline.
	Window int `toml:"window" json:"window" yaml:"window"`

	// Trim is the proportion cut from each end when averaging |z|.
	Trim float64 `toml:"trim" json:"trim" yaml:"trim"`

	// TopN is the number of contributing features reported.
	TopN int `toml:"top_n" json:"top_n" yaml:"top_n"`
}

// Options converts the section into analysis options.
func (b BaselineConfig) Options() baseline.Options {
	return baseline.Options{
		Window: b.Window,
		Trim:   baseline.TrimProportion(b.Trim),
		TopN:   b.TopN,
	}
}

// TrendConfig holds score trend configuration.
type TrendConfig struct {
	// Alpha is the EMA smoothing factor in (0, 1].
	Alpha float64 `toml:"alpha" json:"alpha" yaml:"alpha"`

	// ChangeThreshold is the multiple of MAD beyond which a score is a change point.
	ChangeThreshold float64 `toml:"change_threshold" json:"change_threshold" yaml:"change_threshold"`
}

// StorageConfig holds persistence configuration.
type StorageConfig struct {
	// Path is the path to the SQLite database file.
	Path string `toml:"path" json:"path" yaml:"path"`

	// BusyTimeoutMs is the SQLite busy timeout in milliseconds.
	BusyTimeoutMs int `toml:"busy_timeout_ms" json:"busy_timeout_ms" yaml:"busy_timeout_ms"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is the log output: "stdout", "stderr", "file" or "both".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the path to the log file (when Output is "file" or "both").
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// MaxSizeMB is the maximum log file size before rotation.
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of old log files to keep.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled turns metric collection on.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// TextfilePath, when set, receives the registry in node-exporter
	// textfile format after each run.
	TextfilePath string `toml:"textfile_path" json:"textfile_path" yaml:"textfile_path"`
}

// WatchConfig holds inbox watching configuration.
type WatchConfig struct {
	// InboxDir is the directory scanned for new drawing files.
	InboxDir string `toml:"inbox_dir" json:"inbox_dir" yaml:"inbox_dir"`

	// Subject is the subject new drawings are recorded under.
	Subject string `toml:"subject" json:"subject" yaml:"subject"`

	// Pattern is the glob a file name must match to be processed.
	Pattern string `toml:"pattern" json:"pattern" yaml:"pattern"`

	// DebounceMs is how long a file must be quiet before it is read.
	DebounceMs int `toml:"debounce_ms" json:"debounce_ms" yaml:"debounce_ms"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := DataDir()
	th := features.DefaultThresholds()

	return &Config{
		Version: Version,
		Extraction: ExtractionConfig{
			CanvasWidth:  drawing.DefaultCanvasW,
			CanvasHeight: drawing.DefaultCanvasH,
			MinInkLength: th.MinInkLength,
			MinStrokes:   th.MinStrokes,
			Concurrency:  4,
		},
		Baseline: BaselineConfig{
			Window: baseline.DefaultWindow,
			Trim:   baseline.DefaultTrim,
			TopN:   baseline.DefaultTopN,
		},
		Trend: TrendConfig{
			Alpha:           baseline.DefaultAlpha,
			ChangeThreshold: baseline.DefaultChangeThreshold,
		},
		Storage: StorageConfig{
			Path:          filepath.Join(dir, "sessions.db"),
			BusyTimeoutMs: 5000,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(dir, "sketchd.log"),
			MaxSizeMB:  100,
			MaxBackups: 5,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Watch: WatchConfig{
			InboxDir:   filepath.Join(dir, "inbox"),
			Subject:    "default",
			Pattern:    "*.json",
			DebounceMs: 500,
		},
	}
}

// Load reads configuration from the specified path.
// If the file doesn't exist, returns default configuration.
// Supports TOML, JSON, and YAML formats based on file extension.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// EnsureDirectories creates all directories the configured paths need.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		filepath.Dir(c.Storage.Path),
		c.Watch.InboxDir,
	}
	if c.Logging.Output == "file" || c.Logging.Output == "both" {
		dirs = append(dirs, filepath.Dir(c.Logging.FilePath))
	}
	if c.Metrics.TextfilePath != "" {
		dirs = append(dirs, filepath.Dir(c.Metrics.TextfilePath))
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables are prefixed with SKETCHD_ and use underscores.
// Unparseable numeric overrides are ignored.
func (c *Config) ApplyEnvOverrides() {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Storage overrides
	if v := env("STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}

	// Logging overrides
	if v := env("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := env("LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := env("LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}

	// Baseline overrides
	if n, ok := envInt("BASELINE_WINDOW"); ok {
		c.Baseline.Window = n
	}
	if f, ok := envFloat("BASELINE_TRIM"); ok {
		c.Baseline.Trim = f
	}

	// Extraction overrides
	if n, ok := envInt("CONCURRENCY"); ok {
		c.Extraction.Concurrency = n
	}

	// Metrics overrides
	if v := env("METRICS_TEXTFILE"); v != "" {
		c.Metrics.TextfilePath = v
	}

	// Watch overrides
	if v := env("INBOX_DIR"); v != "" {
		c.Watch.InboxDir = v
	}
	if v := env("SUBJECT"); v != "" {
		c.Watch.Subject = v
	}
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	clone := &Config{}
	clone.replace(c)
	return clone
}

// replace copies every section of src into c. Callers hold whatever lock
// protects src.
func (c *Config) replace(src *Config) {
	c.Version = src.Version
	c.Extraction = src.Extraction
	c.Baseline = src.Baseline
	c.Trend = src.Trend
	c.Storage = src.Storage
	c.Logging = src.Logging
	c.Metrics = src.Metrics
	c.Watch = src.Watch
}

func env(name string) string {
	return os.Getenv(EnvPrefix + name)
}

func envInt(name string) (int, bool) {
	v := env(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envFloat(name string) (float64, bool) {
	v := env(name)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
