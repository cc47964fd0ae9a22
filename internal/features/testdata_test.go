package features

import (
	"math"
	"math/rand"

	"sketchd/internal/drawing"
)

// =============================================================================
// Test Data Generators for Features Package
// =============================================================================

// TestDataGenerator produces reproducible synthetic drawings.
type TestDataGenerator struct {
	rng *rand.Rand
}

// NewTestDataGenerator creates a generator with a seed.
func NewTestDataGenerator(seed int64) *TestDataGenerator {
	return &TestDataGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

var testPalette = []string{"#FF0000", "#00FF00", "#0000FF", "#FFAA00", "#222222", "#AA00FF"}

// GenerateDrawing creates a drawing with n strokes of random walks.
// pointsPerStroke may be 0 or 1 to exercise degenerate strokes.
func (g *TestDataGenerator) GenerateDrawing(n, pointsPerStroke int, withPressure bool) drawing.Drawing {
	d := drawing.Drawing{CanvasW: 800, CanvasH: 600}
	t := 0.0
	for i := 0; i < n; i++ {
		s := drawing.Stroke{
			Color:   testPalette[g.rng.Intn(len(testPalette))],
			Opacity: 0.5 + g.rng.Float64()/2,
			Width:   2,
			Tool:    "pen",
			Layer:   float64(g.rng.Intn(3)),
		}
		if g.rng.Intn(5) == 0 {
			s.Tool = drawing.ToolEraser
		}
		x, y := g.rng.Float64()*800, g.rng.Float64()*600
		for j := 0; j < pointsPerStroke; j++ {
			p := drawing.Point{X: x, Y: y, T: t}
			if withPressure {
				pr := g.rng.Float64()
				p.Pressure = &pr
			}
			s.Points = append(s.Points, p)
			x += g.rng.NormFloat64() * 15
			y += g.rng.NormFloat64() * 15
			t += 5 + g.rng.Float64()*20
		}
		t += 250
		d.Strokes = append(d.Strokes, s)
	}
	return d
}

// pt builds a point without pressure.
func pt(x, y, t float64) drawing.Point {
	return drawing.Point{X: x, Y: y, T: t}
}

// ptp builds a point with pressure.
func ptp(x, y, t, pressure float64) drawing.Point {
	return drawing.Point{X: x, Y: y, T: t, Pressure: &pressure}
}

// IsApproximatelyEqual checks if two floats are within tolerance.
func IsApproximatelyEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}
