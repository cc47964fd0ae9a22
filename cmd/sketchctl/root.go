package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for sketchctl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sketchctl",
		Short: "Extract, score and track drawing sessions",
		Long: `sketchctl turns drawing sessions into a fixed vocabulary of objective
features and scores each session against the subject's own recent history.

Stateless commands (extract, baseline, schema) read JSON from a file or stdin.
Stateful commands (record, history, trend, rescore, subjects, delete, verify,
watch) keep sessions in a local SQLite database.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file (default: ./config.toml or the user config directory)")
	cmd.PersistentFlags().String("db", "",
		"Session database path (overrides storage.path)")
	cmd.PersistentFlags().StringP("format", "f", "text",
		"Report format: text, markdown or json")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(NewExtractCmd())
	cmd.AddCommand(NewBaselineCmd())
	cmd.AddCommand(NewRecordCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewTrendCmd())
	cmd.AddCommand(NewRescoreCmd())
	cmd.AddCommand(NewSubjectsCmd())
	cmd.AddCommand(NewDeleteCmd())
	cmd.AddCommand(NewVerifyCmd())
	cmd.AddCommand(NewWatchCmd())
	cmd.AddCommand(NewConfigCmd())
	cmd.AddCommand(NewSchemaCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
