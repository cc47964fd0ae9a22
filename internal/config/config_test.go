package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("SKETCHD_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("SKETCHD_CONFIG_DIR", filepath.Join(dir, "config"))
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	dir := isolate(t)

	cfg := DefaultConfig()
	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}

	if cfg.Baseline.Window != 30 {
		t.Errorf("expected window 30, got %d", cfg.Baseline.Window)
	}
	if cfg.Baseline.Trim != 0.2 {
		t.Errorf("expected trim 0.2, got %v", cfg.Baseline.Trim)
	}
	if cfg.Baseline.TopN != 5 {
		t.Errorf("expected top_n 5, got %d", cfg.Baseline.TopN)
	}
	if cfg.Extraction.CanvasWidth != 800 || cfg.Extraction.CanvasHeight != 600 {
		t.Errorf("expected 800x600 canvas, got %vx%v", cfg.Extraction.CanvasWidth, cfg.Extraction.CanvasHeight)
	}
	if cfg.Extraction.MinInkLength != 10 || cfg.Extraction.MinStrokes != 3 {
		t.Errorf("unexpected QC thresholds: %+v", cfg.Extraction.Thresholds())
	}
	if !strings.HasPrefix(cfg.Storage.Path, filepath.Join(dir, "data")) {
		t.Errorf("storage path should live in the data dir: %s", cfg.Storage.Path)
	}
}

func TestConfigPath(t *testing.T) {
	dir := isolate(t)

	path := ConfigPath()
	if path != filepath.Join(dir, "config", "config.toml") {
		t.Errorf("unexpected config path: %s", path)
	}
}

func TestDataDirFallsBackToXDG(t *testing.T) {
	t.Setenv("SKETCHD_DATA_DIR", "")
	dir := DataDir()
	if filepath.Base(dir) != AppName {
		t.Errorf("expected dir ending with %s, got %s", AppName, dir)
	}
}

func TestLoadNonexistent(t *testing.T) {
	isolate(t)

	cfg, err := Load("/nonexistent/path/config.toml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Baseline.Window != 30 {
		t.Errorf("expected default window, got %d", cfg.Baseline.Window)
	}
}

func TestLoadTOML(t *testing.T) {
	dir := isolate(t)
	configPath := filepath.Join(dir, "config.toml")

	writeFile(t, configPath, `
# Only some values; the rest come from defaults.
version = 1

[baseline]
window = 12
trim = 0.1

[extraction]
min_strokes = 5 # inline comment

[storage]
path = "/custom/path/sessions.db"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Baseline.Window != 12 {
		t.Errorf("expected window 12, got %d", cfg.Baseline.Window)
	}
	if cfg.Baseline.Trim != 0.1 {
		t.Errorf("expected trim 0.1, got %v", cfg.Baseline.Trim)
	}
	if cfg.Baseline.TopN != 5 {
		t.Errorf("expected default top_n, got %d", cfg.Baseline.TopN)
	}
	if cfg.Extraction.MinStrokes != 5 {
		t.Errorf("expected min_strokes 5, got %d", cfg.Extraction.MinStrokes)
	}
	if cfg.Extraction.MinInkLength != 10 {
		t.Errorf("expected default min_ink_length, got %v", cfg.Extraction.MinInkLength)
	}
	if cfg.Storage.Path != "/custom/path/sessions.db" {
		t.Errorf("unexpected storage path: %s", cfg.Storage.Path)
	}
}

func TestLoadJSONAndYAML(t *testing.T) {
	dir := isolate(t)

	jsonPath := filepath.Join(dir, "config.json")
	writeFile(t, jsonPath, `{"trend": {"alpha": 0.5}, "watch": {"subject": "alice"}}`)

	cfg, err := Load(jsonPath)
	if err != nil {
		t.Fatalf("Load JSON failed: %v", err)
	}
	if cfg.Trend.Alpha != 0.5 || cfg.Watch.Subject != "alice" {
		t.Errorf("JSON values not applied: %+v %+v", cfg.Trend, cfg.Watch)
	}

	yamlPath := filepath.Join(dir, "config.yaml")
	writeFile(t, yamlPath, "trend:\n  change_threshold: 3.5\nmetrics:\n  enabled: false\n")

	cfg, err = Load(yamlPath)
	if err != nil {
		t.Fatalf("Load YAML failed: %v", err)
	}
	if cfg.Trend.ChangeThreshold != 3.5 {
		t.Errorf("expected change threshold 3.5, got %v", cfg.Trend.ChangeThreshold)
	}
	if cfg.Metrics.Enabled {
		t.Error("expected metrics disabled")
	}
	if cfg.Trend.Alpha != 0.3 {
		t.Errorf("expected default alpha, got %v", cfg.Trend.Alpha)
	}
}

func TestLoadAutoDetect(t *testing.T) {
	dir := isolate(t)

	tests := []struct {
		name    string
		content string
	}{
		{name: "json", content: `{"baseline": {"window": 7}}`},
		{name: "yaml", content: "baseline:\n  window: 7\n"},
		{name: "toml", content: "[baseline]\nwindow = 7\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".conf")
			writeFile(t, path, tt.content)

			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if cfg.Baseline.Window != 7 {
				t.Errorf("expected window 7, got %d", cfg.Baseline.Window)
			}
		})
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	dir := isolate(t)
	configPath := filepath.Join(dir, "config.toml")
	writeFile(t, configPath, "this is not valid toml {{{\n")

	if _, err := Load(configPath); err == nil {
		t.Error("expected error for invalid TOML")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("SKETCHD_STORAGE_PATH", "/env/sessions.db")
	t.Setenv("SKETCHD_LOG_LEVEL", "debug")
	t.Setenv("SKETCHD_BASELINE_WINDOW", "10")
	t.Setenv("SKETCHD_BASELINE_TRIM", "not-a-number")
	t.Setenv("SKETCHD_SUBJECT", "bob")

	cfg := DefaultConfig()
	cfg.ApplyEnvOverrides()

	if cfg.Storage.Path != "/env/sessions.db" {
		t.Errorf("storage path override not applied: %s", cfg.Storage.Path)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level override not applied: %s", cfg.Logging.Level)
	}
	if cfg.Baseline.Window != 10 {
		t.Errorf("window override not applied: %d", cfg.Baseline.Window)
	}
	if cfg.Baseline.Trim != 0.2 {
		t.Errorf("unparseable trim should be ignored, got %v", cfg.Baseline.Trim)
	}
	if cfg.Watch.Subject != "bob" {
		t.Errorf("subject override not applied: %s", cfg.Watch.Subject)
	}
}

func TestValidate(t *testing.T) {
	isolate(t)
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	isolate(t)

	cfg := DefaultConfig()
	cfg.Baseline.Trim = 0.5
	cfg.Baseline.Window = 0
	cfg.Trend.Alpha = 0
	cfg.Logging.Output = "file"
	cfg.Logging.FilePath = ""
	cfg.Watch.Pattern = "[bad"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}

	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}

	want := []string{"baseline.window", "baseline.trim", "trend.alpha", "logging.file_path", "watch.pattern"}
	got := verrs.Fields()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("expected fields %v, got %v", want, got)
	}
	if !strings.Contains(err.Error(), "; ") {
		t.Errorf("expected joined messages, got %q", err.Error())
	}
}

func TestValidateVersion(t *testing.T) {
	isolate(t)
	cfg := DefaultConfig()
	cfg.Version = Version + 1
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for future version")
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := isolate(t)

	cfg := DefaultConfig()
	cfg.Storage.Path = filepath.Join(dir, "a", "b", "sessions.db")
	cfg.Watch.InboxDir = filepath.Join(dir, "inbox")
	cfg.Logging.Output = "file"
	cfg.Logging.FilePath = filepath.Join(dir, "logs", "sketchd.log")
	cfg.Metrics.TextfilePath = filepath.Join(dir, "prom", "sketchd.prom")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	for _, sub := range []string{"a/b", "inbox", "logs", "prom"} {
		if _, err := os.Stat(filepath.Join(dir, sub)); err != nil {
			t.Errorf("%s was not created: %v", sub, err)
		}
	}
}

func TestSaveAndReload(t *testing.T) {
	dir := isolate(t)

	for _, ext := range []string{".toml", ".json", ".yaml"} {
		t.Run(ext, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Baseline.Window = 21
			cfg.Trend.Alpha = 0.45
			cfg.Watch.Subject = "carol"

			path := filepath.Join(dir, "saved"+ext)
			if err := SaveConfig(cfg, path); err != nil {
				t.Fatalf("SaveConfig failed: %v", err)
			}

			loaded, err := Load(path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if loaded.Baseline.Window != 21 || loaded.Trend.Alpha != 0.45 || loaded.Watch.Subject != "carol" {
				t.Errorf("values lost in round trip: %+v %+v %+v", loaded.Baseline, loaded.Trend, loaded.Watch)
			}
			if loaded.Extraction != cfg.Extraction {
				t.Errorf("extraction section changed: %+v", loaded.Extraction)
			}
		})
	}
}

func TestLoadOrCreate(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "new", "config.toml")

	cfg, created, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}
	if !created {
		t.Error("expected config to be created")
	}
	if cfg.Version != Version {
		t.Errorf("unexpected version %d", cfg.Version)
	}

	_, created, err = LoadOrCreate(path)
	if err != nil {
		t.Fatalf("second LoadOrCreate failed: %v", err)
	}
	if created {
		t.Error("expected existing config to be loaded")
	}
}

func TestClone(t *testing.T) {
	isolate(t)
	cfg := DefaultConfig()
	clone := cfg.Clone()
	clone.Baseline.Window = 99

	if cfg.Baseline.Window == 99 {
		t.Error("clone shares state with original")
	}
	if clone.Storage != cfg.Storage {
		t.Error("clone lost storage section")
	}
}

func TestLoaderRejectsInvalidFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, "[baseline]\ntrim = 0.9\n")

	if _, err := NewLoader(path).Load(); err == nil {
		t.Error("expected validation failure")
	}
}

func TestLoaderWatchReloads(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, "[baseline]\nwindow = 10\n")

	loader := NewLoader(path)
	defer loader.Close()

	if _, err := loader.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	changed := make(chan *Config, 1)
	loader.OnChange(func(c *Config) {
		select {
		case changed <- c:
		default:
		}
	})

	if err := loader.Watch(); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	writeFile(t, path, "[baseline]\nwindow = 20\n")

	select {
	case c := <-changed:
		if c.Baseline.Window != 20 {
			t.Errorf("expected reloaded window 20, got %d", c.Baseline.Window)
		}
		if loader.Config().Baseline.Window != 20 {
			t.Error("loader did not swap in the new config")
		}
	case err := <-loader.Errors():
		t.Fatalf("watch error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestBaselineOptionsKeepsZeroTrim(t *testing.T) {
	isolate(t)

	cfg := DefaultConfig()
	cfg.Baseline.Trim = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("zero trim should be valid: %v", err)
	}

	opts := cfg.Baseline.Options()
	if opts.Trim == nil || *opts.Trim != 0 {
		t.Errorf("expected trim 0 to be passed through, got %v", opts.Trim)
	}
}
