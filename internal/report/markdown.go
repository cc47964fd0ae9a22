package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"sketchd/internal/baseline"
	"sketchd/internal/features"
	"sketchd/internal/pipeline"
)

// MarkdownWriter renders reports as GitHub-flavored Markdown.
type MarkdownWriter struct {
	out io.Writer
}

// NewMarkdownWriter creates a MarkdownWriter.
func NewMarkdownWriter(out io.Writer) *MarkdownWriter {
	return &MarkdownWriter{out: out}
}

// WriteSession writes one session report.
func (w *MarkdownWriter) WriteSession(res *pipeline.Result) error {
	md := markdown.NewMarkdown(w.out)
	if res == nil {
		md.PlainText("No session data available.")
		return md.Build()
	}

	md.H1("Sketch Session Report")
	md.PlainText("")

	score := 0.0
	interpretation := baseline.NoDeviationsText
	if res.Report != nil {
		score = res.Report.AnomalyScore
		interpretation = res.Report.Interpretation
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Subject", "`" + res.Subject + "`"},
			{"Session", strconv.FormatInt(res.SessionID, 10)},
			{"Recorded", res.RecordedAt.UTC().Format(time.RFC3339)},
			{"Fingerprint", "`" + res.Fingerprint + "`"},
			{"Prior sessions", strconv.Itoa(res.HistoryDepth)},
			{"Anomaly score", fmt.Sprintf("%.3f", score)},
			{"Quality", qcText(res.QC)},
		},
	})
	md.PlainText("")

	changePoint := res.Trend != nil && res.Trend.LatestIsChangePoint()
	w.writeAlert(md, Assess(score, res.HistoryDepth), interpretation, changePoint)

	if res.Report != nil && len(res.Report.TopFeatures) > 0 {
		md.H2("Top Contributing Features")
		md.PlainText("")
		rows := make([][]string, len(res.Report.TopFeatures))
		for i, c := range res.Report.TopFeatures {
			rows[i] = []string{
				"`" + c.Feature + "`",
				baseline.Describe(c.Feature),
				fmt.Sprintf("%+.3f", c.Z),
				c.Direction(),
			}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Feature", "Description", "z", "Direction"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	w.writeFeatures(md, res.Features)
	w.writeTrend(md, res.Trend)
	w.writeFooter(md)

	return md.Build()
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, assessment, interpretation string, changePoint bool) {
	suffix := ""
	if changePoint {
		suffix = " This session is a change point in the subject's score trend."
	}

	switch assessment {
	case AssessStrong:
		md.Cautionf("%s: %s%s", assessment, sentence(interpretation), suffix)
	case AssessNotable:
		md.Warningf("%s: %s%s", assessment, sentence(interpretation), suffix)
	case AssessMild:
		md.Importantf("%s: %s%s", assessment, sentence(interpretation), suffix)
	case AssessInsufficient:
		md.Note("Fewer than " + strconv.Itoa(MinHistory) + " prior sessions; the baseline is not yet reliable.")
	default:
		md.Tip(fmt.Sprintf("%s: %s%s", assessment, sentence(interpretation), suffix))
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeFeatures(md *markdown.Markdown, v features.Vector) {
	md.H2("Features")
	md.PlainText("")

	m := v.Map()
	rows := make([][]string, 0, m.Len())
	m.Range(func(name string, value float64) bool {
		rows = append(rows, []string{"`" + name + "`", baseline.Describe(name), strconv.FormatFloat(value, 'f', 4, 64)})
		return true
	})
	md.Table(markdown.TableSet{
		Header: []string{"Feature", "Description", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeTrend(md *markdown.Markdown, tr *pipeline.Trend) {
	if tr == nil || tr.Len() == 0 {
		return
	}

	md.H2("Trend")
	md.PlainText("")

	flagged := make(map[int]bool, len(tr.ChangePoints))
	for _, idx := range tr.ChangePoints {
		flagged[idx] = true
	}

	rows := make([][]string, tr.Len())
	for i := range tr.Scores {
		marker := ""
		if flagged[i] {
			marker = "change point"
		}
		rows[i] = []string{
			strconv.FormatInt(tr.SessionIDs[i], 10),
			tr.Times[i].UTC().Format("2006-01-02 15:04:05"),
			fmt.Sprintf("%.3f", tr.Scores[i]),
			fmt.Sprintf("%.3f", tr.EMA[i]),
			marker,
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Session", "Recorded", "Score", "EMA", "Flag"},
		Rows:   rows,
	})
	md.PlainText("")
}

// WriteHistory writes a subject history report.
func (w *MarkdownWriter) WriteHistory(h *History) error {
	md := markdown.NewMarkdown(w.out)
	if h == nil {
		md.PlainText("No history available.")
		return md.Build()
	}

	md.H1("Sketch Subject History: " + h.Subject)
	md.PlainText("")

	if len(h.Sessions) == 0 {
		md.PlainText("No sessions recorded.")
		md.PlainText("")
		w.writeFooter(md)
		return md.Build()
	}

	rows := make([][]string, len(h.Sessions))
	for i, s := range h.Sessions {
		rows[i] = []string{
			strconv.FormatInt(s.ID, 10),
			s.RecordedAt.Format("2006-01-02 15:04:05"),
			formatScore(s.AnomalyScore),
			qcText(s.QC),
			truncateString(s.Interpretation, 80),
		}
	}
	md.H2("Sessions")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"ID", "Recorded", "Score", "QC", "Interpretation"},
		Rows:   rows,
	})
	md.PlainText("")

	w.writeQCChart(md, h)
	w.writeTrend(md, h.Trend)
	w.writeFooter(md)

	return md.Build()
}

// writeQCChart writes a mermaid pie chart of raised QC flags.
func (w *MarkdownWriter) writeQCChart(md *markdown.Markdown, h *History) {
	counts := h.QCCounts()
	clean := 0
	for _, s := range h.Sessions {
		if !s.QC.Any() {
			clean++
		}
	}
	if len(counts) == 0 {
		return
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Quality Control Flags"),
		piechart.WithShowData(true),
	)
	for _, flag := range []string{"too_short", "missing_pressure", "too_few_strokes"} {
		if n := counts[flag]; n > 0 {
			chart.LabelAndIntValue(flag, uint64(n))
		}
	}
	if clean > 0 {
		chart.LabelAndIntValue("clean", uint64(clean))
	}

	md.H2("Quality Control")
	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by sketchd*")
}
