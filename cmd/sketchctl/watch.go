package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"sketchd/internal/config"
	"sketchd/internal/health"
	"sketchd/internal/watcher"
)

// NewWatchCmd creates the watch command.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Record drawings as they arrive in an inbox directory",
		Long: `Watch monitors watch.inbox_dir and records every drawing file matching
watch.pattern once it has stopped changing for watch.debounce_ms.
Files already in the inbox are processed on start; drawings that were
recorded before are skipped.

Edits to the configuration file are applied without a restart.

Examples:
  sketchctl watch --subject alice
  sketchctl watch --inbox ./inbox --http-addr :9464

With --http-addr, Prometheus metrics are served on /metrics and health
checks on /healthz, /readyz and /health.`,
		Args: cobra.NoArgs,
		RunE: runWatchCmd,
	}

	cmd.Flags().String("inbox", "", "Inbox directory (overrides watch.inbox_dir)")
	cmd.Flags().StringP("subject", "s", "", "Subject for new drawings (overrides watch.subject)")
	cmd.Flags().String("http-addr", "", "Serve metrics and health endpoints on this address")

	return cmd
}

func runWatchCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	wcfg := a.cfg.Watch
	if inbox, _ := cmd.Flags().GetString("inbox"); inbox != "" {
		wcfg.InboxDir = inbox
	}
	subjectFlag, _ := cmd.Flags().GetString("subject")
	subject := func() string {
		if subjectFlag != "" {
			return subjectFlag
		}
		return a.pipe.Config().Watch.Subject
	}

	if _, err := os.Stat(a.loader.Path()); err == nil {
		a.loader.OnChange(func(c *config.Config) {
			a.pipe.SetConfig(c)
			a.logger.Info("configuration reloaded", "path", a.loader.Path())
		})
		if err := a.loader.Watch(); err != nil {
			a.logger.Warn("config hot reload disabled", "error", err)
		}
	}

	w, err := watcher.New(wcfg)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	srv := watcher.NewServer(w, a.pipe, subject, a.logger)
	srv.OnOutcome = func(watcher.Outcome) { a.flushMetrics() }

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// The watcher stopping ends the other goroutines too.
		defer stop()
		return srv.Run(gctx)
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case err := <-a.loader.Errors():
				a.logger.Warn("configuration reload failed", "error", err)
			}
		}
	})

	checker := newChecker(a, w)
	checker.SetReady(true)
	defer checker.SetReady(false)

	addr, _ := cmd.Flags().GetString("http-addr")
	if addr != "" {
		mux := http.NewServeMux()
		if a.metrics != nil {
			mux.Handle("/metrics", a.metrics.Registry().HTTPHandler())
		}
		checker.Mount(mux)
		hs := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			a.logger.Info("serving metrics and health", "addr", addr)
			if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return hs.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

// maxBacklog is the number of pending inbox files above which the watcher
// reports itself degraded.
const maxBacklog = 100

func newChecker(a *app, w *watcher.Watcher) *health.Checker {
	c := health.NewChecker()
	c.RegisterFunc("store", true, health.StoreCheck(a.store.Ping))
	c.RegisterFunc("inbox", true, health.InboxCheck(w.Dir()))
	c.RegisterFunc("backlog", false, health.BacklogCheck(w.PendingFiles, maxBacklog))
	return c
}
