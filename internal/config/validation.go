package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// ErrInvalidConfig matches any error returned by ValidateConfig.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidationError names one offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is every problem found, in section order.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i := range e {
		msgs[i] = e[i].Error()
	}
	return strings.Join(msgs, "; ")
}

// Is makes errors.Is(err, ErrInvalidConfig) hold for any validation failure.
func (e ValidationErrors) Is(target error) bool {
	return target == ErrInvalidConfig
}

// Fields returns the offending field names in order.
func (e ValidationErrors) Fields() []string {
	out := make([]string, len(e))
	for i := range e {
		out[i] = e[i].Field
	}
	return out
}

type checker struct {
	errs ValidationErrors
}

// require records a failure for field unless ok holds.
func (c *checker) require(ok bool, field, format string, args ...any) {
	if !ok {
		c.errs = append(c.errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}
}

func (c *checker) oneOf(value, field string, allowed ...string) {
	c.require(slices.Contains(allowed, value), field,
		"invalid value %q (valid: %s)", value, strings.Join(allowed, ", "))
}

// ValidateConfig checks every section and returns ValidationErrors when
// anything is out of range.
func ValidateConfig(c *Config) error {
	var v checker

	v.require(c.Version >= 1 && c.Version <= Version, "version",
		"unsupported version %d (current: %d)", c.Version, Version)

	e := c.Extraction
	v.require(e.CanvasWidth > 0, "extraction.canvas_width", "must be positive")
	v.require(e.CanvasHeight > 0, "extraction.canvas_height", "must be positive")
	v.require(e.MinInkLength >= 0, "extraction.min_ink_length", "cannot be negative")
	v.require(e.MinStrokes >= 0, "extraction.min_strokes", "cannot be negative")
	v.require(e.Concurrency >= 1 && e.Concurrency <= 256, "extraction.concurrency",
		"must be between 1 and 256")

	b := c.Baseline
	v.require(b.Window >= 1, "baseline.window", "must be at least 1 session")
	// At 0.5 the trimmed mean would discard every value.
	v.require(b.Trim >= 0 && b.Trim < 0.5, "baseline.trim", "must be in [0, 0.5)")
	v.require(b.TopN >= 1, "baseline.top_n", "must be at least 1")

	t := c.Trend
	v.require(t.Alpha > 0 && t.Alpha <= 1, "trend.alpha", "must be in (0, 1]")
	v.require(t.ChangeThreshold > 0, "trend.change_threshold", "must be positive")

	s := c.Storage
	v.require(s.Path != "", "storage.path", "required field is missing")
	v.require(s.BusyTimeoutMs >= 0, "storage.busy_timeout_ms", "cannot be negative")

	l := c.Logging
	v.oneOf(l.Level, "logging.level", "debug", "info", "warn", "error")
	v.oneOf(l.Format, "logging.format", "text", "json")
	v.oneOf(l.Output, "logging.output", "stdout", "stderr", "file", "both")
	if l.Output == "file" || l.Output == "both" {
		v.require(l.FilePath != "", "logging.file_path", "required when output is %q", l.Output)
	}
	v.require(l.MaxSizeMB >= 1, "logging.max_size_mb", "must be at least 1 MB")
	v.require(l.MaxBackups >= 0, "logging.max_backups", "cannot be negative")

	w := c.Watch
	v.require(w.Subject != "", "watch.subject", "required field is missing")
	v.require(validGlob(w.Pattern), "watch.pattern", "invalid glob pattern %q", w.Pattern)
	v.require(w.DebounceMs >= 0, "watch.debounce_ms", "cannot be negative")

	if len(v.errs) > 0 {
		return v.errs
	}
	return nil
}

func validGlob(pattern string) bool {
	if pattern == "" {
		return false
	}
	_, err := filepath.Match(pattern, "drawing.json")
	return err == nil
}
