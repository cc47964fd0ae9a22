package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sketchd/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		hasError bool
	}{
		{"debug", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{"info", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"invalid", LevelInfo, true},
		{"", LevelInfo, true},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			level, err := ParseLevel(test.input)
			if test.hasError && err == nil {
				t.Error("expected error, got nil")
			}
			if !test.hasError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !test.hasError && level != test.expected {
				t.Errorf("expected %v, got %v", test.expected, level)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("expected default level Info, got %v", cfg.Level)
	}
	if cfg.Format != FormatText {
		t.Errorf("expected default format Text, got %v", cfg.Format)
	}
	if cfg.Output != "stderr" {
		t.Errorf("expected default output stderr, got %s", cfg.Output)
	}
	if cfg.Component != "sketchd" {
		t.Errorf("expected component sketchd, got %s", cfg.Component)
	}
	if !strings.HasSuffix(cfg.Rotation.Path, filepath.Join("sketchd", "sketchd.log")) {
		t.Errorf("unexpected default log path %s", cfg.Rotation.Path)
	}
}

func TestFromSettings(t *testing.T) {
	cfg, err := FromSettings(config.LoggingConfig{
		Level:      "debug",
		Format:     "json",
		Output:     "FILE",
		FilePath:   "/var/log/sketchd.log",
		MaxSizeMB:  7,
		MaxBackups: 2,
	}, "pipeline")
	if err != nil {
		t.Fatalf("FromSettings failed: %v", err)
	}

	if cfg.Level != LevelDebug || cfg.Format != FormatJSON {
		t.Errorf("level/format not converted: %v %v", cfg.Level, cfg.Format)
	}
	if cfg.Output != "file" || cfg.Rotation.Path != "/var/log/sketchd.log" {
		t.Errorf("output not converted: %s %s", cfg.Output, cfg.Rotation.Path)
	}
	if cfg.Rotation.MaxSizeMB != 7 || cfg.Rotation.MaxBackups != 2 {
		t.Errorf("rotation not converted: %+v", cfg.Rotation)
	}
	if cfg.Component != "pipeline" {
		t.Errorf("expected component pipeline, got %s", cfg.Component)
	}

	if _, err := FromSettings(config.LoggingConfig{Level: "loud"}, ""); err == nil {
		t.Error("expected error for unknown level")
	}
}

func newBufferLogger(t *testing.T, format Format) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Format = format
	cfg.Output = "stdout"
	cfg.Writer = &buf
	cfg.Component = "test"

	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger, &buf
}

func TestJSONFormat(t *testing.T) {
	logger, buf := newBufferLogger(t, FormatJSON)

	logger.Info("session recorded", "subject", "alice", "anomaly_score", 1.5)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if entry["msg"] != "session recorded" {
		t.Errorf("unexpected msg %v", entry["msg"])
	}
	if entry["component"] != "test" {
		t.Errorf("expected component attribute, got %v", entry["component"])
	}
	if entry["subject"] != "alice" {
		t.Errorf("expected subject attribute, got %v", entry["subject"])
	}
}

func TestTextFormatRedacts(t *testing.T) {
	logger, buf := newBufferLogger(t, FormatText)

	logger.Warn("webhook failed", "api_key", "abc123", "fingerprint", "deadbeef")

	out := buf.String()
	if strings.Contains(out, "abc123") {
		t.Errorf("sensitive value leaked: %s", out)
	}
	if !strings.Contains(out, "api_key=[REDACTED]") {
		t.Errorf("expected redaction marker: %s", out)
	}
	if !strings.Contains(out, "fingerprint=deadbeef") {
		t.Errorf("non-sensitive value missing: %s", out)
	}
}

func TestLongValuesTruncated(t *testing.T) {
	logger, buf := newBufferLogger(t, FormatJSON)

	raw := strings.Repeat("p", 4*MaxValueLen)
	logger.Info("drawing rejected", "payload", raw)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	got, _ := entry["payload"].(string)
	if len(got) >= len(raw) {
		t.Errorf("payload not truncated: %d bytes", len(got))
	}
	if !strings.HasSuffix(got, "...(2048 bytes)") {
		t.Errorf("missing truncation suffix in %d-byte value", len(got))
	}
}

func TestLevelFiltering(t *testing.T) {
	logger, buf := newBufferLogger(t, FormatText)

	logger.Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug entry written at info level: %s", buf.String())
	}
}

func TestLoggerWithRequestID(t *testing.T) {
	logger, buf := newBufferLogger(t, FormatText)

	logger.WithRequestID("req-123").Info("hello")
	if !strings.Contains(buf.String(), "request_id=req-123") {
		t.Errorf("request id missing: %s", buf.String())
	}
}

func TestLoggerWithContext(t *testing.T) {
	logger, buf := newBufferLogger(t, FormatText)

	ctx := ContextWithRequestID(context.Background(), "test-req-789")
	logger.WithContext(ctx).Info("hello")
	if !strings.Contains(buf.String(), "request_id=test-req-789") {
		t.Errorf("request id missing: %s", buf.String())
	}

	if logger.WithContext(context.Background()) != logger {
		t.Error("context without request id should return the same logger")
	}
}

func TestLoggerWithComponent(t *testing.T) {
	logger, buf := newBufferLogger(t, FormatText)

	logger.WithComponent("watcher").With("file", "a.json").Info("queued")
	out := buf.String()
	if !strings.Contains(out, "component=watcher") || !strings.Contains(out, "file=a.json") {
		t.Errorf("attributes missing: %s", out)
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "test-request-456")
	if got := RequestIDFromContext(ctx); got != "test-request-456" {
		t.Errorf("expected %q, got %q", "test-request-456", got)
	}
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestIsSecret(t *testing.T) {
	tests := []struct {
		key      string
		expected bool
	}{
		{"password", true},
		{"PASSWORD", true},
		{"secret", true},
		{"api_key", true},
		{"auth_token", true},
		{"bearer", true},
		{"cookie", true},
		{"subject", false},
		{"session_id", false},
		{"feature", false},
		{"anomaly_score", false},
	}

	for _, test := range tests {
		t.Run(test.key, func(t *testing.T) {
			if got := isSecret(test.key); got != test.expected {
				t.Errorf("isSecret(%q) = %v, expected %v", test.key, got, test.expected)
			}
		})
	}
}

func TestNewRequestID(t *testing.T) {
	logger, _ := newBufferLogger(t, FormatText)

	id1 := logger.NewRequestID()
	id2 := logger.WithComponent("child").NewRequestID()

	if id1 == "" {
		t.Error("NewRequestID returned empty string")
	}
	if id1 == id2 {
		t.Error("NewRequestID returned duplicate IDs")
	}
	if !strings.HasPrefix(id1, "test-") {
		t.Errorf("NewRequestID should start with component name, got %q", id1)
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	l.Error("nothing to see")
	if err := l.Close(); err != nil {
		t.Errorf("close failed: %v", err)
	}
}

func TestFileOutput(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "sketchd.log")

	cfg := DefaultConfig()
	cfg.Output = "file"
	cfg.Rotation.Path = logPath

	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	logger.Info("to disk")
	if err := logger.Sync(); err != nil {
		t.Errorf("sync failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("close failed: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), "to disk") {
		t.Errorf("unexpected log contents: %s", data)
	}
}

func TestRotatingFileRotation(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	f, err := OpenRotatingFile(Rotation{Path: logPath, MaxSizeMB: 1, MaxBackups: 2})
	if err != nil {
		t.Fatalf("failed to open rotating file: %v", err)
	}

	line := []byte(strings.Repeat("x", 1023) + "\n")
	for i := 0; i < 4*1024; i++ {
		if _, err := f.Write(line); err != nil {
			t.Fatalf("write %d failed: %v", i, err)
		}
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	backups, err := f.Backups()
	if err != nil {
		t.Fatalf("failed to list backups: %v", err)
	}
	if len(backups) < 1 || len(backups) > 2 {
		t.Errorf("expected 1-2 backups, got %d: %v", len(backups), backups)
	}

	info, err := os.Stat(logPath)
	if err != nil {
		t.Fatalf("current log missing: %v", err)
	}
	if info.Size() > 1<<20 {
		t.Errorf("current log exceeds max size: %d", info.Size())
	}
}

func TestRotatingFileCompressesBackups(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "sketchd.log")

	f, err := OpenRotatingFile(Rotation{Path: logPath, MaxSizeMB: 1, Compress: true})
	if err != nil {
		t.Fatalf("failed to open rotating file: %v", err)
	}
	chunk := []byte(strings.Repeat("y", 700*1024))
	for i := 0; i < 2; i++ {
		if _, err := f.Write(chunk); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	backups, _ := f.Backups()
	if len(backups) != 1 || !strings.HasSuffix(backups[0], ".log.gz") {
		t.Errorf("expected one gzipped backup, got %v", backups)
	}
}

func TestPruneByAge(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "app.log")
	f, err := OpenRotatingFile(Rotation{Path: logPath, MaxAgeDays: 7})
	if err != nil {
		t.Fatalf("failed to open rotating file: %v", err)
	}
	defer f.Close()

	old := filepath.Join(dir, "app-20200101-000000.000000.log")
	fresh := filepath.Join(dir, "app-20991231-000000.000000.log")
	for _, p := range []string{old, fresh} {
		if err := os.WriteFile(p, []byte("x"), 0600); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().AddDate(0, 0, -30)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatal(err)
	}

	f.prune(time.Now())

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Errorf("expected %s to be pruned", old)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("expected %s to survive: %v", fresh, err)
	}
}

func TestRotatingFileRequiresPath(t *testing.T) {
	if _, err := OpenRotatingFile(Rotation{}); err == nil {
		t.Error("expected error for empty path")
	}
}
