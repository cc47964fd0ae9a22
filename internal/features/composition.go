package features

import (
	"math"

	"sketchd/internal/drawing"
	"sketchd/internal/stats"
)

// EntropyGridSize is the number of cells per axis of the spatial entropy grid.
const EntropyGridSize = 10

// entropyEps guards the probability normalization, the logarithm and the
// symmetry denominator against empty input.
const entropyEps = 1e-10

// ExtractComposition computes centroid, spatial entropy, rule-of-thirds
// occupancy and vertical symmetry over every point of the drawing.
// A drawing whose strokes carry no points keeps the composition defaults.
func ExtractComposition(strokes []drawing.Stroke, canvasW, canvasH float64) Composition {
	var xs, ys []float64
	for _, s := range strokes {
		for _, p := range s.Points {
			xs = append(xs, p.X)
			ys = append(ys, p.Y)
		}
	}
	if len(xs) == 0 {
		return defaultComposition()
	}

	return Composition{
		CentroidX:        stats.Mean(xs) / canvasW,
		CentroidY:        stats.Mean(ys) / canvasH,
		SpatialEntropy:   SpatialEntropy(xs, ys, canvasW, canvasH, EntropyGridSize),
		ThirdsOccupied:   float64(ThirdsOccupied(xs, ys, canvasW, canvasH)),
		VerticalSymmetry: VerticalSymmetry(xs, canvasW),
	}
}

// SpatialEntropy bins points into a size x size grid spanning the canvas and
// returns the natural-log Shannon entropy of the occupancy distribution.
// Off-canvas points are clamped into the border cells.
func SpatialEntropy(xs, ys []float64, canvasW, canvasH float64, size int) float64 {
	if size <= 0 {
		return 0
	}
	histogram := make([]int, size*size)
	for i := range xs {
		col := gridIndex(xs[i]/canvasW, size)
		row := gridIndex(ys[i]/canvasH, size)
		histogram[row*size+col]++
	}
	return stats.ShannonEntropy(histogram, entropyEps)
}

// ThirdsOccupied counts the cells of the 3x3 rule-of-thirds grid that
// contain at least one point.
func ThirdsOccupied(xs, ys []float64, canvasW, canvasH float64) int {
	var cells [9]bool
	for i := range xs {
		col := gridIndex(xs[i]/canvasW, 3)
		row := gridIndex(ys[i]/canvasH, 3)
		cells[row*3+col] = true
	}

	n := 0
	for _, occupied := range cells {
		if occupied {
			n++
		}
	}
	return n
}

// VerticalSymmetry compares the point counts left and right of the canvas
// midline. Points exactly on the midline count as right.
// Formula: 1 - |L - R| / (L + R + eps)
func VerticalSymmetry(xs []float64, canvasW float64) float64 {
	mid := canvasW / 2
	left, right := 0, 0
	for _, x := range xs {
		if x < mid {
			left++
		} else {
			right++
		}
	}
	diff := math.Abs(float64(left - right))
	return 1.0 - diff/(float64(left+right)+entropyEps)
}

// gridIndex maps a canvas fraction to a cell index in [0, size-1].
func gridIndex(frac float64, size int) int {
	idx := int(math.Floor(frac * float64(size)))
	if idx < 0 {
		return 0
	}
	if idx > size-1 {
		return size - 1
	}
	return idx
}
