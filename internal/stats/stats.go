// Package stats provides the small set of descriptive and robust statistics
// shared by the extraction and baseline engines.
//
// All functions treat their input as read-only and use population (not
// sample) estimators, so a single value has zero variance.
package stats

import (
	"math"
	"sort"
)

// Mean returns the arithmetic mean of values, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Variance returns the population variance of values.
// Formula: sum((v - mean)^2) / n
func Variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := Mean(values)
	var acc float64
	for _, v := range values {
		d := v - m
		acc += d * d
	}
	return acc / float64(len(values))
}

// StdDev returns the population standard deviation of values.
func StdDev(values []float64) float64 {
	return math.Sqrt(Variance(values))
}

// Max returns the largest value, or 0 for an empty slice.
func Max(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// Median returns the median of values. Even-length input averages the two
// middle elements.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// MAD returns the median absolute deviation of values around center.
// Formula: median(|v - center|)
func MAD(values []float64, center float64) float64 {
	if len(values) == 0 {
		return 0
	}
	dev := make([]float64, len(values))
	for i, v := range values {
		dev[i] = math.Abs(v - center)
	}
	return Median(dev)
}

// TrimmedMean sorts values, removes floor(proportion*n) elements from each
// end and averages the remainder. proportion is clamped to [0, 0.5); when
// trimming would leave nothing the plain median is returned.
func TrimmedMean(values []float64, proportion float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	if proportion < 0 {
		proportion = 0
	}

	cut := int(proportion * float64(n))
	if 2*cut >= n {
		return Median(values)
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	return Mean(sorted[cut : n-cut])
}

// Clamp limits v to the closed interval [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ShannonEntropy returns the natural-log entropy of a histogram after
// normalizing it to a probability mass. eps guards both the normalizing
// denominator and the logarithm, so empty bins contribute ~0 rather than NaN.
// Formula: H = -sum p_j * ln(p_j + eps), p_j = c_j / (n + eps)
func ShannonEntropy(histogram []int, eps float64) float64 {
	n := 0
	for _, c := range histogram {
		n += c
	}

	total := float64(n) + eps
	var h float64
	for _, c := range histogram {
		p := float64(c) / total
		h -= p * math.Log(p+eps)
	}
	return h
}
