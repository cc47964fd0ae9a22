// Package report renders processed sessions and subject histories as text,
// Markdown or JSON.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"sketchd/internal/features"
	"sketchd/internal/pipeline"
	"sketchd/internal/store"
)

// Format selects a renderer.
type Format string

// Supported formats.
const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// ParseFormat parses a format name. "md" is accepted for Markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "text", "txt":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown report format %q", s)
	}
}

// Writer renders reports to an output.
type Writer interface {
	// WriteSession renders one processed session.
	WriteSession(res *pipeline.Result) error

	// WriteHistory renders a subject's stored sessions and trend.
	WriteHistory(h *History) error
}

// NewWriter returns the renderer for format.
func NewWriter(format Format, out io.Writer) (Writer, error) {
	switch format {
	case FormatText:
		return NewTextWriter(out), nil
	case FormatMarkdown:
		return NewMarkdownWriter(out), nil
	case FormatJSON:
		return NewJSONWriter(out), nil
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
}

// SessionSummary is the stored view of one session.
type SessionSummary struct {
	ID             int64            `json:"id"`
	RecordedAt     time.Time        `json:"recorded_at"`
	Fingerprint    string           `json:"fingerprint"`
	AnomalyScore   *float64         `json:"anomaly_score"`
	QC             features.QCFlags `json:"qc"`
	Interpretation string           `json:"interpretation"`
}

// History is a subject's stored sessions, most recent first, with the
// trend over their scores.
type History struct {
	Subject  string           `json:"subject"`
	Sessions []SessionSummary `json:"sessions"`
	Trend    *pipeline.Trend  `json:"trend"`
}

// NewHistory builds a History from stored sessions.
func NewHistory(subject string, sessions []*store.Session, trend *pipeline.Trend) *History {
	h := &History{
		Subject:  subject,
		Sessions: make([]SessionSummary, 0, len(sessions)),
		Trend:    trend,
	}
	for _, s := range sessions {
		h.Sessions = append(h.Sessions, SessionSummary{
			ID:             s.ID,
			RecordedAt:     s.Time().UTC(),
			Fingerprint:    s.FingerprintHex(),
			AnomalyScore:   s.AnomalyScore,
			QC:             s.QC,
			Interpretation: s.Interpretation,
		})
	}
	return h
}

// QCCounts returns how many sessions raised each QC flag.
func (h *History) QCCounts() map[string]int {
	counts := map[string]int{}
	for _, s := range h.Sessions {
		for _, flag := range s.QC.Raised() {
			counts[flag]++
		}
	}
	return counts
}

// Assessment levels for an anomaly score.
const (
	AssessInsufficient = "INSUFFICIENT HISTORY"
	AssessTypical      = "TYPICAL"
	AssessMild         = "MILD DEVIATION"
	AssessNotable      = "NOTABLE DEVIATION"
	AssessStrong       = "STRONG DEVIATION"
)

// MinHistory is the number of prior sessions below which a baseline keeps
// zero spread and scores are not assessed.
const MinHistory = 3

// Assess classifies an anomaly score given how many prior sessions it was
// scored against.
func Assess(score float64, historyDepth int) string {
	switch {
	case historyDepth < MinHistory:
		return AssessInsufficient
	case score < 1:
		return AssessTypical
	case score < 2:
		return AssessMild
	case score < 3:
		return AssessNotable
	default:
		return AssessStrong
	}
}

// FormatMetricBar produces an ASCII bar for a value between min and max.
func FormatMetricBar(value, min, max float64, width int) string {
	if width <= 0 {
		return ""
	}
	if max <= min {
		return strings.Repeat("-", width)
	}

	normalized := (value - min) / (max - min)
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}

	filled := int(normalized * float64(width))
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}

func formatScore(score *float64) string {
	if score == nil {
		return "-"
	}
	return fmt.Sprintf("%.3f", *score)
}

func qcText(qc features.QCFlags) string {
	raised := qc.Raised()
	if len(raised) == 0 {
		return "ok"
	}
	return strings.Join(raised, ", ")
}

// sentence terminates s with a period.
func sentence(s string) string {
	if s == "" || strings.HasSuffix(s, ".") {
		return s
	}
	return s + "."
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
