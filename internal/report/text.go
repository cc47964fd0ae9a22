package report

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"sketchd/internal/baseline"
	"sketchd/internal/features"
	"sketchd/internal/pipeline"
)

const ruleWidth = 72

// Bars span this many absolute z units.
const barScale = 5.0

// TextWriter renders fixed-width reports for terminals.
type TextWriter struct {
	out io.Writer
}

// NewTextWriter creates a TextWriter.
func NewTextWriter(out io.Writer) *TextWriter {
	return &TextWriter{out: out}
}

func (t *TextWriter) heading(title string, rule string) {
	fmt.Fprintln(t.out, strings.Repeat(rule, ruleWidth))
	fmt.Fprintln(t.out, title)
	fmt.Fprintln(t.out, strings.Repeat(rule, ruleWidth))
	fmt.Fprintln(t.out)
}

// WriteSession writes formatted session analysis.
func (t *TextWriter) WriteSession(res *pipeline.Result) error {
	w := t.out
	if res == nil {
		_, err := fmt.Fprintln(w, "No session data available")
		return err
	}

	t.heading("                      SKETCH SESSION ANALYSIS", "=")

	fmt.Fprintf(w, "Subject:        %s\n", res.Subject)
	fmt.Fprintf(w, "Session:        %d\n", res.SessionID)
	if !res.RecordedAt.IsZero() {
		fmt.Fprintf(w, "Recorded:       %s\n", res.RecordedAt.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(w, "Fingerprint:    %s\n", res.Fingerprint)
	fmt.Fprintf(w, "History:        %d prior sessions\n", res.HistoryDepth)
	fmt.Fprintf(w, "Quality:        %s\n", qcText(res.QC))
	fmt.Fprintln(w)

	if res.Report != nil {
		t.heading("ANOMALY", "-")

		fmt.Fprintf(w, "Anomaly Score:  %.3f  %s\n",
			res.Report.AnomalyScore,
			FormatMetricBar(res.Report.AnomalyScore, 0, barScale, 20))
		fmt.Fprintf(w, "  -> %s\n\n", res.Report.Interpretation)

		if len(res.Report.TopFeatures) > 0 {
			fmt.Fprintln(w, "Top contributing features:")
			for i, c := range res.Report.TopFeatures {
				fmt.Fprintf(w, "%d. %-28s z=%+7.3f  %s  %s\n",
					i+1, c.Feature, c.Z,
					FormatMetricBar(math.Abs(c.Z), 0, barScale, 10),
					c.Direction())
			}
			fmt.Fprintln(w)
		}
	}

	t.writeFeatures(res.Features)
	t.writeTrend(res.Trend)

	fmt.Fprintln(w, strings.Repeat("=", ruleWidth))
	score := 0.0
	if res.Report != nil {
		score = res.Report.AnomalyScore
	}
	assessment := Assess(score, res.HistoryDepth)
	if res.Trend != nil && res.Trend.LatestIsChangePoint() {
		assessment += " (change point)"
	}
	fmt.Fprintf(w, "ASSESSMENT: %s\n", assessment)
	_, err := fmt.Fprintln(w, strings.Repeat("=", ruleWidth))
	return err
}

func (t *TextWriter) writeFeatures(v features.Vector) {
	t.heading("FEATURES", "-")

	m := v.Map()
	m.Range(func(name string, value float64) bool {
		fmt.Fprintf(t.out, "%-28s %12.4f   %s\n", name, value, baseline.Describe(name))
		return true
	})
	fmt.Fprintln(t.out)
}

func (t *TextWriter) writeTrend(tr *pipeline.Trend) {
	if tr == nil || tr.Len() == 0 {
		return
	}
	w := t.out
	t.heading("TREND", "-")

	last := tr.Len() - 1
	fmt.Fprintf(w, "Scored sessions:  %d\n", tr.Len())
	fmt.Fprintf(w, "Latest score:     %.3f\n", tr.Scores[last])
	fmt.Fprintf(w, "Smoothed (EMA):   %.3f\n", tr.EMA[last])
	if len(tr.ChangePoints) == 0 {
		fmt.Fprintln(w, "Change points:    none")
	} else {
		ids := make([]string, len(tr.ChangePoints))
		for i, idx := range tr.ChangePoints {
			ids[i] = fmt.Sprintf("#%d", tr.SessionIDs[idx])
		}
		fmt.Fprintf(w, "Change points:    %s\n", strings.Join(ids, ", "))
	}
	fmt.Fprintln(w)
}

// WriteHistory writes a subject's sessions, newest first, and its trend.
func (t *TextWriter) WriteHistory(h *History) error {
	w := t.out
	if h == nil {
		_, err := fmt.Fprintln(w, "No history available")
		return err
	}

	t.heading("                      SKETCH SUBJECT HISTORY", "=")
	fmt.Fprintf(w, "Subject:        %s\n", h.Subject)
	fmt.Fprintf(w, "Sessions:       %d\n", len(h.Sessions))
	fmt.Fprintln(w)

	if len(h.Sessions) == 0 {
		_, err := fmt.Fprintln(w, "No sessions recorded.")
		return err
	}

	t.heading("SESSIONS", "-")
	fmt.Fprintf(w, "%-6s %-20s %-8s %-22s %s\n", "ID", "RECORDED", "SCORE", "QC", "INTERPRETATION")
	for _, s := range h.Sessions {
		fmt.Fprintf(w, "%-6d %-20s %-8s %-22s %s\n",
			s.ID,
			s.RecordedAt.Format("2006-01-02 15:04:05"),
			formatScore(s.AnomalyScore),
			truncateString(qcText(s.QC), 22),
			s.Interpretation)
	}
	fmt.Fprintln(w)

	t.writeTrend(h.Trend)
	return nil
}
