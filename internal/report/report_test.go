package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sketchd/internal/baseline"
	"sketchd/internal/features"
	"sketchd/internal/pipeline"
	"sketchd/internal/store"
)

func testResult() *pipeline.Result {
	var v features.Vector
	v.Geometry.TotalLength = 812.5
	v.Geometry.MeanCurvature = 0.42

	return &pipeline.Result{
		Subject:      "alice",
		SessionID:    7,
		RecordedAt:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Fingerprint:  strings.Repeat("ab", 32),
		Features:     v,
		QC:           features.QCFlags{MissingPressure: true},
		HistoryDepth: 5,
		Report: &baseline.Report{
			AnomalyScore: 3.4,
			TopFeatures: []baseline.Contribution{
				{Feature: features.KeyTotalLength, Z: 4.1},
				{Feature: features.KeyMeanCurvature, Z: -2.2},
			},
			Interpretation: "Top signals: higher total ink length, lower curvature",
		},
		Trend: &pipeline.Trend{
			Subject:      "alice",
			SessionIDs:   []int64{3, 5, 7},
			Times:        []time.Time{time.Unix(100, 0), time.Unix(200, 0), time.Unix(300, 0)},
			Scores:       []float64{0.5, 0.6, 3.4},
			EMA:          []float64{0.5, 0.53, 1.39},
			ChangePoints: []int{2},
		},
	}
}

func testHistory() *History {
	s1, s2 := 0.8, 2.5
	sessions := []*store.Session{
		{ID: 2, Subject: "alice", RecordedAt: time.Unix(200, 0).UnixNano(), AnomalyScore: &s2,
			QC: features.QCFlags{TooShort: true, MissingPressure: true}, Interpretation: "Top signals: lower pen lifts"},
		{ID: 1, Subject: "alice", RecordedAt: time.Unix(100, 0).UnixNano(), AnomalyScore: &s1,
			Interpretation: baseline.NoDeviationsText},
		{ID: 0, Subject: "alice", RecordedAt: time.Unix(50, 0).UnixNano(),
			QC: features.QCFlags{MissingPressure: true}},
	}
	trend := &pipeline.Trend{
		Subject:    "alice",
		SessionIDs: []int64{1, 2},
		Times:      []time.Time{time.Unix(100, 0), time.Unix(200, 0)},
		Scores:     []float64{s1, s2},
		EMA:        []float64{s1, 1.31},
	}
	return NewHistory("alice", sessions, trend)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatText, false},
		{"text", FormatText, false},
		{"TXT", FormatText, false},
		{"md", FormatMarkdown, false},
		{"markdown", FormatMarkdown, false},
		{"json", FormatJSON, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewWriter(t *testing.T) {
	var buf bytes.Buffer

	w, err := NewWriter(FormatText, &buf)
	require.NoError(t, err)
	assert.IsType(t, &TextWriter{}, w)

	w, err = NewWriter(FormatMarkdown, &buf)
	require.NoError(t, err)
	assert.IsType(t, &MarkdownWriter{}, w)

	w, err = NewWriter(FormatJSON, &buf)
	require.NoError(t, err)
	assert.IsType(t, &JSONWriter{}, w)

	_, err = NewWriter(Format("pdf"), &buf)
	assert.Error(t, err)
}

func TestAssess(t *testing.T) {
	assert.Equal(t, AssessInsufficient, Assess(9, 2))
	assert.Equal(t, AssessTypical, Assess(0.4, 3))
	assert.Equal(t, AssessMild, Assess(1.5, 10))
	assert.Equal(t, AssessNotable, Assess(2.0, 10))
	assert.Equal(t, AssessStrong, Assess(3.0, 10))
}

func TestFormatMetricBar(t *testing.T) {
	assert.Equal(t, "[#####-----]", FormatMetricBar(0.5, 0, 1, 10))
	assert.Equal(t, "[----------]", FormatMetricBar(-3, 0, 1, 10))
	assert.Equal(t, "[##########]", FormatMetricBar(7, 0, 1, 10))
	assert.Equal(t, "-----", FormatMetricBar(1, 1, 1, 5))
	assert.Equal(t, "", FormatMetricBar(1, 0, 1, 0))
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "-", formatScore(nil))
	v := 1.23456
	assert.Equal(t, "1.235", formatScore(&v))

	assert.Equal(t, "ok", qcText(features.QCFlags{}))
	assert.Equal(t, "too_short, too_few_strokes", qcText(features.QCFlags{TooShort: true, TooFewStrokes: true}))

	assert.Equal(t, "abc", truncateString("abc", 5))
	assert.Equal(t, "ab...", truncateString("abcdefgh", 5))
	assert.Equal(t, "ab", truncateString("abcdefgh", 2))

	assert.Equal(t, "", sentence(""))
	assert.Equal(t, "done.", sentence("done"))
	assert.Equal(t, "done.", sentence("done."))
}

func TestNewHistory(t *testing.T) {
	h := testHistory()

	require.Len(t, h.Sessions, 3)
	assert.Equal(t, int64(2), h.Sessions[0].ID)
	assert.Equal(t, time.Unix(200, 0).UTC(), h.Sessions[0].RecordedAt)
	assert.Len(t, h.Sessions[0].Fingerprint, 64)
	assert.Nil(t, h.Sessions[2].AnomalyScore)

	assert.Equal(t, map[string]int{"too_short": 1, "missing_pressure": 2}, h.QCCounts())
}

func TestTextWriterSession(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTextWriter(&buf).WriteSession(testResult()))

	out := buf.String()
	assert.Contains(t, out, "SKETCH SESSION ANALYSIS")
	assert.Contains(t, out, "Subject:        alice")
	assert.Contains(t, out, "Session:        7")
	assert.Contains(t, out, "2026-03-01T10:00:00Z")
	assert.Contains(t, out, "Quality:        missing_pressure")
	assert.Contains(t, out, "Anomaly Score:  3.400")
	assert.Contains(t, out, "Top signals: higher total ink length, lower curvature")
	assert.Contains(t, out, "geom.total_length")
	assert.Contains(t, out, "higher")
	assert.Contains(t, out, "lower")
	assert.Contains(t, out, "Change points:    #7")
	assert.Contains(t, out, "ASSESSMENT: STRONG DEVIATION (change point)")

	for _, key := range features.Names() {
		assert.Contains(t, out, key)
	}
}

func TestTextWriterSessionWithoutReport(t *testing.T) {
	res := testResult()
	res.Report = nil
	res.Trend = nil
	res.HistoryDepth = 0

	var buf bytes.Buffer
	require.NoError(t, NewTextWriter(&buf).WriteSession(res))

	out := buf.String()
	assert.NotContains(t, out, "ANOMALY")
	assert.NotContains(t, out, "TREND")
	assert.Contains(t, out, "ASSESSMENT: "+AssessInsufficient)
}

func TestTextWriterNil(t *testing.T) {
	var buf bytes.Buffer
	w := NewTextWriter(&buf)
	require.NoError(t, w.WriteSession(nil))
	require.NoError(t, w.WriteHistory(nil))
	assert.Contains(t, buf.String(), "No session data available")
	assert.Contains(t, buf.String(), "No history available")
}

func TestTextWriterHistory(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTextWriter(&buf).WriteHistory(testHistory()))

	out := buf.String()
	assert.Contains(t, out, "SKETCH SUBJECT HISTORY")
	assert.Contains(t, out, "Sessions:       3")
	assert.Contains(t, out, "2.500")
	assert.Contains(t, out, "Top signals: lower pen lifts")
	assert.Contains(t, out, "Change points:    none")

	// Newest first.
	assert.Less(t, strings.Index(out, "2.500"), strings.Index(out, "0.800"))
}

func TestTextWriterEmptyHistory(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTextWriter(&buf).WriteHistory(NewHistory("bob", nil, nil)))
	assert.Contains(t, buf.String(), "No sessions recorded.")
}

func TestMarkdownWriterSession(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewMarkdownWriter(&buf).WriteSession(testResult()))

	out := buf.String()
	assert.Contains(t, out, "# Sketch Session Report")
	assert.Contains(t, out, "`alice`")
	assert.Contains(t, out, "## Top Contributing Features")
	assert.Contains(t, out, "total ink length")
	assert.Contains(t, out, "+4.100")
	assert.Contains(t, out, "## Features")
	assert.Contains(t, out, "## Trend")
	assert.Contains(t, out, "change point")
	assert.Contains(t, out, "[!CAUTION]")
	assert.Contains(t, out, "STRONG DEVIATION")
	assert.Contains(t, out, "Report generated by sketchd")
}

func TestMarkdownWriterAlerts(t *testing.T) {
	tests := []struct {
		name   string
		score  float64
		depth  int
		marker string
	}{
		{"insufficient", 5, 1, "[!NOTE]"},
		{"typical", 0.2, 5, "[!TIP]"},
		{"mild", 1.2, 5, "[!IMPORTANT]"},
		{"notable", 2.2, 5, "[!WARNING]"},
		{"strong", 4, 5, "[!CAUTION]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := testResult()
			res.Report.AnomalyScore = tt.score
			res.HistoryDepth = tt.depth

			var buf bytes.Buffer
			require.NoError(t, NewMarkdownWriter(&buf).WriteSession(res))
			assert.Contains(t, buf.String(), tt.marker)
		})
	}
}

func TestMarkdownWriterHistory(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewMarkdownWriter(&buf).WriteHistory(testHistory()))

	out := buf.String()
	assert.Contains(t, out, "# Sketch Subject History: alice")
	assert.Contains(t, out, "## Sessions")
	assert.Contains(t, out, "## Quality Control")
	assert.Contains(t, out, "```mermaid")
	assert.Contains(t, out, "pie")
	assert.Contains(t, out, "missing_pressure")
	assert.Contains(t, out, "clean")
	assert.Contains(t, out, "## Trend")
}

func TestMarkdownWriterHistoryWithoutFlags(t *testing.T) {
	h := testHistory()
	for i := range h.Sessions {
		h.Sessions[i].QC = features.QCFlags{}
	}

	var buf bytes.Buffer
	require.NoError(t, NewMarkdownWriter(&buf).WriteHistory(h))
	assert.NotContains(t, buf.String(), "mermaid")
}

func TestJSONWriterSession(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONWriter(&buf).WriteSession(testResult()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "alice", decoded["subject"])
	assert.Equal(t, float64(7), decoded["session_id"])

	report, ok := decoded["report"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 3.4, report["anomaly_score"], 1e-9)

	assert.Contains(t, buf.String(), "\n  \"")
}

func TestJSONWriterCompactHistory(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONWriter(&buf, WithCompact()).WriteHistory(testHistory()))

	out := strings.TrimSpace(buf.String())
	assert.NotContains(t, out, "\n")

	var decoded History
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "alice", decoded.Subject)
	require.Len(t, decoded.Sessions, 3)
	assert.Equal(t, int64(2), decoded.Sessions[0].ID)
	require.NotNil(t, decoded.Trend)
	assert.Equal(t, 2, decoded.Trend.Len())
}
