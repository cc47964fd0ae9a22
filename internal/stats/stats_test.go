package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMedian(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected float64
	}{
		{name: "empty slice", values: []float64{}, expected: 0},
		{name: "single value", values: []float64{5}, expected: 5},
		{name: "two values", values: []float64{1, 3}, expected: 2},
		{name: "odd count", values: []float64{1, 2, 3}, expected: 2},
		{name: "even count", values: []float64{1, 2, 3, 4}, expected: 2.5},
		{name: "unsorted input", values: []float64{5, 1, 3, 2, 4}, expected: 3},
		{name: "negative values", values: []float64{-5, -1, 0, 1, 5}, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Median(tt.values), 1e-12)
		})
	}
}

func TestMedianDoesNotReorderInput(t *testing.T) {
	values := []float64{3, 1, 2}
	Median(values)
	assert.Equal(t, []float64{3, 1, 2}, values)
}

func TestMAD(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	assert.InDelta(t, 1.0, MAD(values, Median(values)), 1e-12)
	assert.Equal(t, 0.0, MAD(nil, 0))
	assert.Equal(t, 0.0, MAD([]float64{7, 7, 7}, 7))
}

func TestMeanVarianceStdDev(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	assert.InDelta(t, 5.0, Mean(values), 1e-12)
	assert.InDelta(t, 4.0, Variance(values), 1e-12)
	assert.InDelta(t, 2.0, StdDev(values), 1e-12)

	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 0.0, Variance(nil))
	assert.Equal(t, 0.0, StdDev([]float64{42}))
}

func TestMax(t *testing.T) {
	assert.Equal(t, 0.0, Max(nil))
	assert.Equal(t, 9.0, Max([]float64{-1, 9, 3}))
	assert.Equal(t, -1.0, Max([]float64{-3, -1, -2}))
}

func TestTrimmedMean(t *testing.T) {
	tests := []struct {
		name       string
		values     []float64
		proportion float64
		expected   float64
	}{
		{name: "empty", values: nil, proportion: 0.2, expected: 0},
		{name: "five values trims one each side", values: []float64{5, 1, 4, 2, 3}, proportion: 0.2, expected: 3},
		{name: "outlier suppressed", values: []float64{1, 1, 1, 1, 100}, proportion: 0.2, expected: 1},
		{name: "no trim", values: []float64{1, 2, 3, 10}, proportion: 0, expected: 4},
		{name: "too few to cut", values: []float64{1, 9}, proportion: 0.2, expected: 5},
		{name: "ten values cut two", values: []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 100}, proportion: 0.2, expected: 4.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, TrimmedMean(tt.values, tt.proportion), 1e-12)
		})
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 1.0, Clamp(1.0000001, -1, 1))
	assert.Equal(t, -1.0, Clamp(-3, -1, 1))
	assert.Equal(t, 0.5, Clamp(0.5, -1, 1))
}

func TestShannonEntropy(t *testing.T) {
	// Property: a single occupied bin has ~zero entropy.
	assert.InDelta(t, 0, ShannonEntropy([]int{10, 0, 0, 0}, 1e-10), 1e-8)

	// Property: uniform over k bins approaches ln(k).
	assert.InDelta(t, math.Log(4), ShannonEntropy([]int{25, 25, 25, 25}, 1e-10), 1e-6)

	// Property: an empty histogram never yields NaN.
	h := ShannonEntropy(make([]int, 100), 1e-10)
	assert.False(t, math.IsNaN(h))
	assert.InDelta(t, 0, h, 1e-12)
}
