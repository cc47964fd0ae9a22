package pipeline

import (
	"fmt"
	"time"

	"sketchd/internal/baseline"
)

// Trend is the smoothed anomaly-score series of one subject.
type Trend struct {
	Subject      string      `json:"subject"`
	SessionIDs   []int64     `json:"session_ids"`
	Times        []time.Time `json:"times"`
	Scores       []float64   `json:"scores"`
	EMA          []float64   `json:"ema"`
	ChangePoints []int       `json:"change_points"`
}

// Len returns the number of scored sessions.
func (t *Trend) Len() int {
	return len(t.Scores)
}

// LatestIsChangePoint reports whether the most recent score was flagged.
func (t *Trend) LatestIsChangePoint() bool {
	n := len(t.ChangePoints)
	return n > 0 && t.ChangePoints[n-1] == len(t.Scores)-1
}

// ComputeTrend smooths a chronological score series and flags change
// points.
func ComputeTrend(scores []float64, alpha, threshold float64) ([]float64, []int) {
	if alpha <= 0 || alpha > 1 {
		alpha = baseline.DefaultAlpha
	}
	if threshold <= 0 {
		threshold = baseline.DefaultChangeThreshold
	}
	return baseline.EMA(scores, alpha), baseline.DetectChangePoints(scores, threshold)
}

// Trend loads the subject's scored sessions and computes its trend.
func (p *Pipeline) Trend(subject string) (*Trend, error) {
	stored, err := p.store.Scores(subject)
	if err != nil {
		return nil, fmt.Errorf("load scores: %w", err)
	}

	t := &Trend{
		Subject:    subject,
		SessionIDs: make([]int64, len(stored)),
		Times:      make([]time.Time, len(stored)),
		Scores:     make([]float64, len(stored)),
	}
	for i, s := range stored {
		t.SessionIDs[i] = s.SessionID
		t.Times[i] = time.Unix(0, s.RecordedAt)
		t.Scores[i] = s.Value
	}

	tc := p.Config().Trend
	t.EMA, t.ChangePoints = ComputeTrend(t.Scores, tc.Alpha, tc.ChangeThreshold)
	return t, nil
}
