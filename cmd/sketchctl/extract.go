package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"sketchd/internal/pipeline"
)

// NewExtractCmd creates the extract command.
func NewExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract [file]",
		Short: "Extract features and quality flags from one drawing",
		Long: `Extract validates a drawing and prints its feature vector and
quality-control flags as JSON. Nothing is stored.

Examples:
  sketchctl extract drawing.json
  cat drawing.json | sketchctl extract`,
		Args: cobra.MaximumNArgs(1),
		RunE: runExtractCmd,
	}
}

func runExtractCmd(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	raw, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	ex, err := pipeline.Extract(raw, cfg.Extraction)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), ex)
}

// NewBaselineCmd creates the baseline command.
func NewBaselineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "baseline [file]",
		Short: "Score a feature vector against a supplied history",
		Long: `Baseline reads {"current_features": {...}, "feature_history": [...]}
and prints the robust baseline, z-scores, anomaly score, top features and
interpretation as JSON. History is most recent first.

Example:
  sketchctl baseline request.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: runBaselineCmd,
	}
}

func runBaselineCmd(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	raw, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	rep, err := pipeline.Score(raw, cfg.Baseline.Options())
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), rep)
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
