package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"sketchd/internal/config"
	"sketchd/internal/logging"
	"sketchd/internal/metrics"
	"sketchd/internal/pipeline"
	"sketchd/internal/report"
	"sketchd/internal/store"
)

// app holds the wired components shared by the stateful commands.
type app struct {
	loader  *config.Loader
	cfg     *config.Config
	logger  *logging.Logger
	store   *store.Store
	metrics *metrics.SketchMetrics
	pipe    *pipeline.Pipeline
}

// loadConfig resolves, loads and validates the configuration, then applies
// the global flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Loader, *config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, nil, err
	}
	if path == "" {
		path = config.FindConfigFile()
	}

	loader := config.NewLoader(path)
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config %s: %w", loader.Path(), err)
	}

	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.Storage.Path = db
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.Logging.Level = "debug"
	}
	return loader, cfg, nil
}

// newLogger builds the process logger from the logging section.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	lcfg, err := logging.FromSettings(cfg.Logging, "sketchctl")
	if err != nil {
		return nil, fmt.Errorf("logging config: %w", err)
	}
	logger, err := logging.New(lcfg)
	if err != nil {
		return nil, err
	}
	logging.SetDefault(logger)
	return logger, nil
}

// openApp loads configuration and opens the store, metrics and pipeline.
func openApp(cmd *cobra.Command) (*app, error) {
	loader, cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Storage.Path,
		store.WithBusyTimeout(time.Duration(cfg.Storage.BusyTimeoutMs)*time.Millisecond))
	if err != nil {
		_ = logger.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}
	logger.Debug("store opened", "path", st.Path())

	var m *metrics.SketchMetrics
	if cfg.Metrics.Enabled {
		m = metrics.NewSketchMetrics(nil)
	}

	return &app{
		loader:  loader,
		cfg:     cfg,
		logger:  logger,
		store:   st,
		metrics: m,
		pipe:    pipeline.New(st, cfg, pipeline.WithLogger(logger), pipeline.WithMetrics(m)),
	}, nil
}

// flushMetrics writes the textfile when one is configured.
func (a *app) flushMetrics() {
	path := a.pipe.Config().Metrics.TextfilePath
	if a.metrics == nil || path == "" {
		return
	}
	if err := a.metrics.Registry().WriteTextfile(path); err != nil {
		a.logger.Warn("metrics textfile not written", "path", path, "error", err)
	}
}

// Close flushes metrics and releases the store and log files.
func (a *app) Close() error {
	a.flushMetrics()
	return errors.Join(a.store.Close(), a.loader.Close(), a.logger.Close())
}

// reportWriter returns the renderer selected by --format.
func reportWriter(cmd *cobra.Command) (report.Writer, report.Format, error) {
	name, err := cmd.Flags().GetString("format")
	if err != nil {
		return nil, "", err
	}
	format, err := report.ParseFormat(name)
	if err != nil {
		return nil, "", err
	}
	w, err := report.NewWriter(format, cmd.OutOrStdout())
	return w, format, err
}

// readInput reads a file argument, or stdin when it is absent or "-".
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return data, nil
}
