// Package baseline computes person-specific robust baselines over a history
// of feature vectors and scores how far a new session deviates from them.
//
// Every function is pure: the caller supplies the full history on each call
// and owns any long-term storage.
package baseline

import (
	"math"

	"sketchd/internal/stats"
	"sketchd/internal/vector"
)

// Defaults for the scoring parameters.
const (
	DefaultWindow = 30
	DefaultTrim   = 0.2
	DefaultTopN   = 5
)

// Scale floors applied when a feature's history is degenerate.
const (
	// MinObservations is the number of values a feature needs in the window
	// before it is judged at all.
	MinObservations = 3

	// MADEpsilon is the scale below which MAD is treated as degenerate.
	MADEpsilon = 1e-6

	// StdToMAD converts a standard deviation into a normal-consistent MAD
	// estimate.
	StdToMAD = 1.253

	// FallbackMAD is used when both MAD and the stddev estimate collapse.
	FallbackMAD = 0.1
)

// Stat is the robust location and scale of one feature.
type Stat struct {
	Median float64 `json:"median"`
	MAD    float64 `json:"mad"`
}

// Baseline maps feature names to their robust statistics. Keys are the union
// of keys seen in the history window.
type Baseline map[string]Stat

// ComputeBaseline derives a Baseline from the most recent window entries of
// history. history must be ordered most-recent-first. A non-positive window
// selects DefaultWindow.
//
// Features observed fewer than MinObservations times get MAD 0, which later
// resolves their z-score to 0. A near-zero MAD is replaced by
// stddev/StdToMAD, and then by FallbackMAD if that is also near zero.
func ComputeBaseline(history []*vector.Vector, window int) Baseline {
	if window <= 0 {
		window = DefaultWindow
	}
	if len(history) > window {
		history = history[:window]
	}

	values := make(map[string][]float64)
	for _, entry := range history {
		entry.Range(func(key string, v float64) bool {
			values[key] = append(values[key], v)
			return true
		})
	}

	b := make(Baseline, len(values))
	for key, vals := range values {
		b[key] = robustStat(vals)
	}
	return b
}

func robustStat(vals []float64) Stat {
	med := stats.Median(vals)
	if len(vals) < MinObservations {
		return Stat{Median: med, MAD: 0}
	}

	mad := stats.MAD(vals, med)
	if mad < MADEpsilon {
		mad = stats.StdDev(vals) / StdToMAD
		if mad < MADEpsilon {
			mad = FallbackMAD
		}
	}
	return Stat{Median: med, MAD: mad}
}

// ZScores computes the robust z-score of every feature in current, in
// current's key order. Features missing from the baseline, or whose MAD is
// zero, score 0.
// Formula: z = (x - median) / MAD
func ZScores(current *vector.Vector, b Baseline) *vector.Vector {
	z := vector.New(current.Len())
	current.Range(func(key string, v float64) bool {
		st, ok := b[key]
		if !ok || st.MAD <= 0 {
			z.Set(key, 0)
			return true
		}
		z.Set(key, (v-st.Median)/st.MAD)
		return true
	})
	return z
}

// AnomalyScore is the trimmed mean of absolute z-scores: trim is the
// proportion cut from each end of the sorted values. An empty map scores 0.
func AnomalyScore(z *vector.Vector, trim float64) float64 {
	if z.Len() == 0 {
		return 0
	}
	abs := z.Values()
	for i, v := range abs {
		abs[i] = math.Abs(v)
	}
	return stats.TrimmedMean(abs, trim)
}
