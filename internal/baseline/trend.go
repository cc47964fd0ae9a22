package baseline

import (
	"math"

	"sketchd/internal/stats"
)

// Trend defaults.
const (
	DefaultAlpha           = 0.3
	DefaultChangeThreshold = 2.5

	// MinChangePointScores is the shortest series on which change points
	// are attempted.
	MinChangePointScores = 5
)

// EMA returns the exponential moving average of values seeded by the first
// value.
// Formula: ema[i] = alpha*v[i] + (1-alpha)*ema[i-1]
func EMA(values []float64, alpha float64) []float64 {
	if len(values) == 0 {
		return []float64{}
	}
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// DetectChangePoints flags the indices of a chronological score series that
// deviate from the series median by more than threshold*MAD. Series shorter
// than MinChangePointScores, or with a degenerate MAD, yield no flags.
func DetectChangePoints(scores []float64, threshold float64) []int {
	out := []int{}
	if len(scores) < MinChangePointScores {
		return out
	}

	med := stats.Median(scores)
	mad := stats.MAD(scores, med)
	if mad < MADEpsilon {
		return out
	}

	limit := threshold * mad
	for i, s := range scores {
		if math.Abs(s-med) > limit {
			out = append(out, i)
		}
	}
	return out
}
