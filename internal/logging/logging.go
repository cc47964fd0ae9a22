// Package logging builds the slog loggers used by sketchd commands and
// services. Output goes to stderr, stdout, a size-rotated file, or both a
// stream and a file.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/adrg/xdg"

	"sketchd/internal/config"
)

// Level is a slog level.
type Level = slog.Level

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Format selects the slog handler.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// MaxValueLen caps string attribute values. Raw drawing payloads can run
// to megabytes and are cut to this length with a "...(N bytes)" suffix.
const MaxValueLen = 512

// Rotation controls the log file written when Output is "file" or "both".
type Rotation struct {
	Path       string
	MaxSizeMB  int64
	MaxAgeDays int
	MaxBackups int
	Compress   bool
}

// Config describes one logger.
type Config struct {
	Level     Level
	Format    Format
	Output    string // stdout, stderr, file or both
	Writer    io.Writer
	Rotation  Rotation
	AddSource bool
	Component string
}

// DefaultConfig logs text at info level to stderr.
func DefaultConfig() *Config {
	return &Config{
		Level:  LevelInfo,
		Format: FormatText,
		Output: "stderr",
		Rotation: Rotation{
			Path:       filepath.Join(xdg.StateHome, "sketchd", "sketchd.log"),
			MaxSizeMB:  100,
			MaxAgeDays: 30,
			MaxBackups: 5,
			Compress:   true,
		},
		Component: "sketchd",
	}
}

// FromSettings converts the [logging] section of the application config.
func FromSettings(s config.LoggingConfig, component string) (*Config, error) {
	level, err := ParseLevel(s.Level)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	cfg.Level = level
	if strings.EqualFold(s.Format, "json") {
		cfg.Format = FormatJSON
	}
	if s.Output != "" {
		cfg.Output = strings.ToLower(s.Output)
	}
	if s.FilePath != "" {
		cfg.Rotation.Path = s.FilePath
	}
	if s.MaxSizeMB > 0 {
		cfg.Rotation.MaxSizeMB = int64(s.MaxSizeMB)
	}
	cfg.Rotation.MaxBackups = s.MaxBackups
	if component != "" {
		cfg.Component = component
	}
	return cfg, nil
}

// ParseLevel accepts debug, info, warn (or warning) and error in any case.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level: %q", s)
}

// Logger is a slog.Logger that remembers its component and owns the log
// file, if any. Derived loggers share the file and the request counter.
type Logger struct {
	*slog.Logger
	component string
	file      *RotatingFile
	seq       *atomic.Uint64
}

// New builds a logger from cfg, or from DefaultConfig when cfg is nil.
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	l := &Logger{component: cfg.Component, seq: new(atomic.Uint64)}

	w, err := l.open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open log output: %w", err)
	}

	opts := &slog.HandlerOptions{
		Level:       cfg.Level,
		AddSource:   cfg.AddSource,
		ReplaceAttr: scrubAttr,
	}
	var h slog.Handler = slog.NewTextHandler(w, opts)
	if cfg.Format == FormatJSON {
		h = slog.NewJSONHandler(w, opts)
	}
	if cfg.Component != "" {
		h = h.WithAttrs([]slog.Attr{slog.String("component", cfg.Component)})
	}

	l.Logger = slog.New(h)
	return l, nil
}

func (l *Logger) open(cfg *Config) (io.Writer, error) {
	stream := cfg.Writer
	if stream == nil {
		stream = os.Stderr
		if cfg.Output == "stdout" {
			stream = os.Stdout
		}
	}

	if cfg.Output != "file" && cfg.Output != "both" {
		return stream, nil
	}

	f, err := OpenRotatingFile(cfg.Rotation)
	if err != nil {
		return nil, err
	}
	l.file = f
	if cfg.Output == "file" {
		return f, nil
	}
	return io.MultiWriter(stream, f), nil
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		seq:    new(atomic.Uint64),
	}
}

// SetDefault installs l as the process-wide slog default.
func SetDefault(l *Logger) {
	slog.SetDefault(l.Logger)
}

var secretMarkers = []string{"password", "secret", "token", "api_key", "apikey", "auth", "cookie", "bearer"}

// scrubAttr redacts credentials and truncates oversized string values.
func scrubAttr(_ []string, a slog.Attr) slog.Attr {
	if isSecret(a.Key) {
		return slog.String(a.Key, "[REDACTED]")
	}
	if a.Value.Kind() == slog.KindString {
		if s := a.Value.String(); len(s) > MaxValueLen {
			return slog.String(a.Key, fmt.Sprintf("%s...(%d bytes)", s[:MaxValueLen], len(s)))
		}
	}
	return a
}

func isSecret(key string) bool {
	key = strings.ToLower(key)
	for _, m := range secretMarkers {
		if strings.Contains(key, m) {
			return true
		}
	}
	return false
}

func (l *Logger) derive(sl *slog.Logger, component string) *Logger {
	return &Logger{Logger: sl, component: component, file: l.file, seq: l.seq}
}

// With returns a logger carrying args.
func (l *Logger) With(args ...any) *Logger {
	return l.derive(l.Logger.With(args...), l.component)
}

// WithComponent tags entries with a component name.
func (l *Logger) WithComponent(name string) *Logger {
	return l.derive(l.Logger.With(slog.String("component", name)), name)
}

// WithRequestID tags entries with a request ID.
func (l *Logger) WithRequestID(id string) *Logger {
	return l.With(slog.String("request_id", id))
}

// WithContext adds the request ID carried by ctx, if any.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if id := RequestIDFromContext(ctx); id != "" {
		return l.WithRequestID(id)
	}
	return l
}

// NewRequestID returns "<component>-<unix nanos>-<seq>". The sequence is
// shared by every logger derived from the same root.
func (l *Logger) NewRequestID() string {
	return fmt.Sprintf("%s-%d-%d", l.component, time.Now().UnixNano(), l.seq.Add(1))
}

// Sync flushes the log file.
func (l *Logger) Sync() error {
	if l.file == nil {
		return nil
	}
	return l.file.Sync()
}

// Close closes the log file. Derived loggers must not be used afterwards.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

type requestIDKey struct{}

// ContextWithRequestID returns a context carrying id.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request ID in ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
