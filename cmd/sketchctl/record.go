package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"sketchd/internal/pipeline"
)

// NewRecordCmd creates the record command.
func NewRecordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record --subject NAME file...",
		Short: "Score drawings against a subject's history and store them",
		Long: `Record extracts each drawing, scores it against the subject's stored
sessions, stores it and prints a session report.

Several files are extracted concurrently (extraction.concurrency) and then
recorded in argument order, so each one is scored against those before it.
A drawing identical to one already stored for the subject is rejected.

Examples:
  sketchctl record --subject alice monday.json
  sketchctl record --subject alice --format markdown week/*.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: runRecordCmd,
	}

	cmd.Flags().StringP("subject", "s", "", "Subject the drawings belong to")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}

func runRecordCmd(cmd *cobra.Command, args []string) error {
	subject, err := cmd.Flags().GetString("subject")
	if err != nil {
		return err
	}

	w, _, err := reportWriter(cmd)
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(args) == 1 {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		res, err := a.pipe.Process(ctx, subject, raw)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		return w.WriteSession(res)
	}

	return recordBatch(ctx, cmd, a, subject, args)
}

func recordBatch(ctx context.Context, cmd *cobra.Command, a *app, subject string, paths []string) error {
	items := make([]pipeline.Item, 0, len(paths))
	failed := 0
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
			failed++
			continue
		}
		items = append(items, pipeline.Item{Name: filepath.Base(path), Subject: subject, Data: raw})
	}

	results, err := a.pipe.Batch(ctx, items)
	if err != nil {
		return err
	}

	w, _, err := reportWriter(cmd)
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", r.Name, r.Err)
			failed++
			continue
		}
		if err := w.WriteSession(r.Result); err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d drawings failed", failed, len(paths))
	}
	return nil
}
