package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"sketchd/internal/pipeline"
	"sketchd/internal/report"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history SUBJECT",
		Short: "Show a subject's stored sessions and score trend",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryCmd,
	}
	cmd.Flags().IntP("limit", "n", 20, "Maximum sessions to list (0 lists all)")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	limit, err := cmd.Flags().GetInt("limit")
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

	subject := args[0]
	sessions, err := a.store.Sessions(subject, limit)
	if err != nil {
		return err
	}
	trend, err := a.pipe.Trend(subject)
	if err != nil {
		return err
	}
	return w.WriteHistory(report.NewHistory(subject, sessions, trend))
}

// NewTrendCmd creates the trend command.
func NewTrendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trend SUBJECT",
		Short: "Show a subject's smoothed anomaly scores and change points",
		Args:  cobra.ExactArgs(1),
		RunE:  runTrendCmd,
	}
}

func runTrendCmd(cmd *cobra.Command, args []string) error {
	_, format, err := reportWriter(cmd)
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	trend, err := a.pipe.Trend(args[0])
	if err != nil {
		return err
	}
	if format == report.FormatJSON {
		return writeJSON(cmd.OutOrStdout(), trend)
	}
	writeTrendTable(cmd, trend)
	return nil
}

func writeTrendTable(cmd *cobra.Command, trend *pipeline.Trend) {
	out := cmd.OutOrStdout()
	if trend.Len() == 0 {
		fmt.Fprintf(out, "No scored sessions for %s\n", trend.Subject)
		return
	}

	flagged := make(map[int]bool, len(trend.ChangePoints))
	for _, i := range trend.ChangePoints {
		flagged[i] = true
	}

	fmt.Fprintf(out, "%-8s %-20s %8s %8s\n", "SESSION", "RECORDED", "SCORE", "EMA")
	for i := range trend.Scores {
		mark := ""
		if flagged[i] {
			mark = "  <- change point"
		}
		fmt.Fprintf(out, "%-8d %-20s %8.3f %8.3f%s\n",
			trend.SessionIDs[i],
			trend.Times[i].Format("2006-01-02 15:04:05"),
			trend.Scores[i],
			trend.EMA[i],
			mark)
	}
}

// NewRescoreCmd creates the rescore command.
func NewRescoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rescore SUBJECT",
		Short: "Recompute every stored score with the current baseline settings",
		Long: `Rescore walks a subject's sessions oldest first and scores each one
against the sessions before it, using the configured window, trim and top-N.
Use it after changing baseline settings.`,
		Args: cobra.ExactArgs(1),
		RunE: runRescoreCmd,
	}
}

func runRescoreCmd(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	trend, err := a.pipe.Rescore(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Rescored %d sessions for %s\n", trend.Len(), args[0])
	if len(trend.ChangePoints) > 0 {
		ids := make([]string, len(trend.ChangePoints))
		for i, idx := range trend.ChangePoints {
			ids[i] = fmt.Sprintf("#%d", trend.SessionIDs[idx])
		}
		fmt.Fprintf(out, "Change points: %s\n", strings.Join(ids, ", "))
	}
	return nil
}

// NewSubjectsCmd creates the subjects command.
func NewSubjectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "subjects",
		Short: "List subjects and their session counts",
		Args:  cobra.NoArgs,
		RunE:  runSubjectsCmd,
	}
}

func runSubjectsCmd(cmd *cobra.Command, _ []string) error {
	_, format, err := reportWriter(cmd)
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	subjects, err := a.store.Subjects()
	if err != nil {
		return err
	}
	if format == report.FormatJSON {
		return writeJSON(cmd.OutOrStdout(), subjects)
	}

	out := cmd.OutOrStdout()
	if len(subjects) == 0 {
		fmt.Fprintln(out, "No subjects recorded")
		return nil
	}
	fmt.Fprintf(out, "%-24s %8s  %s\n", "SUBJECT", "SESSIONS", "SINCE")
	for _, s := range subjects {
		fmt.Fprintf(out, "%-24s %8d  %s\n",
			s.Name, s.SessionCount, time.Unix(0, s.CreatedAt).Format("2006-01-02"))
	}
	return nil
}

// NewDeleteCmd creates the delete command.
func NewDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete SUBJECT",
		Short: "Delete a subject and all of its sessions",
		Args:  cobra.ExactArgs(1),
		RunE:  runDeleteCmd,
	}
	cmd.Flags().Bool("force", false, "Confirm the deletion")
	return cmd
}

func runDeleteCmd(cmd *cobra.Command, args []string) error {
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}
	if !force {
		return fmt.Errorf("refusing to delete %s without --force", args[0])
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.store.DeleteSubject(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s (%d sessions)\n", args[0], n)
	return nil
}

// NewVerifyCmd creates the verify command.
func NewVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check the session database for schema and record corruption",
		Args:  cobra.NoArgs,
		RunE:  runVerifyCmd,
	}
}

func runVerifyCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()

	stats, err := a.store.Stats()
	if err != nil {
		return err
	}
	status, err := a.store.MigrationStatus()
	if err != nil {
		return err
	}
	if err := a.store.CheckSchema(); err != nil {
		return err
	}

	fmt.Fprintf(out, "Database:        %s\n", a.store.Path())
	fmt.Fprintf(out, "Schema version:  %d (latest %d)\n", status.CurrentVersion, status.LatestVersion)
	fmt.Fprintf(out, "Subjects:        %d\n", stats.SubjectCount)
	fmt.Fprintf(out, "Sessions:        %d (%d scored)\n", stats.SessionCount, stats.ScoredCount)
	if stats.SessionCount > 0 {
		fmt.Fprintf(out, "Span:            %s to %s\n",
			stats.OldestSession.Format(time.RFC3339), stats.NewestSession.Format(time.RFC3339))
	}

	bad, err := a.store.VerifySessions()
	if err != nil {
		return err
	}
	if len(bad) > 0 {
		return fmt.Errorf("%d corrupt sessions: %v", len(bad), bad)
	}
	fmt.Fprintln(out, "Verification:    OK")
	return nil
}
