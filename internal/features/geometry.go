package features

import (
	"math"

	"sketchd/internal/drawing"
	"sketchd/internal/stats"
)

// HighCurvatureRad is the turning angle above which a vertex counts as a
// sharp turn.
const HighCurvatureRad = 1.0

// segmentEps keeps zero-length segments from dividing by zero when computing
// turning angles.
const segmentEps = 1e-10

// ExtractGeometry computes ink length, curvature, velocity, pressure and
// pen-lift statistics. Strokes with fewer than two points contribute no
// segments but still count as pen lifts.
func ExtractGeometry(strokes []drawing.Stroke) Geometry {
	var (
		lengths    []float64
		curvatures []float64
		velocities []float64
		pressures  []float64
		total      float64
		maxT       float64
	)

	for _, s := range strokes {
		pts := s.Points
		for _, p := range pts {
			if p.Pressure != nil {
				pressures = append(pressures, *p.Pressure)
			}
			if p.T > maxT {
				maxT = p.T
			}
		}
		if len(pts) < 2 {
			continue
		}

		length := PolylineLength(pts)
		total += length
		lengths = append(lengths, length)
		curvatures = append(curvatures, TurningAngles(pts)...)
		velocities = append(velocities, SegmentVelocities(pts)...)
	}

	g := defaultGeometry()
	g.TotalLength = total
	g.MeanStrokeLength = stats.Mean(lengths)
	g.StdStrokeLength = stats.StdDev(lengths)

	if len(curvatures) > 0 {
		g.MeanCurvature = stats.Mean(curvatures)
		g.MaxCurvature = stats.Max(curvatures)
		high := 0
		for _, c := range curvatures {
			if c > HighCurvatureRad {
				high++
			}
		}
		g.HighCurvaturePct = float64(high) / float64(len(curvatures))
	}

	g.MeanVelocity = stats.Mean(velocities)
	g.StdVelocity = stats.StdDev(velocities)

	if len(pressures) > 0 {
		g.MeanPressure = stats.Mean(pressures)
		g.StdPressure = stats.StdDev(pressures)
	}

	if maxT > 0 {
		g.PenLiftRate = float64(len(strokes)) / (maxT / 1000.0)
	}

	return g
}

// PolylineLength sums the Euclidean lengths of consecutive segments.
func PolylineLength(pts []drawing.Point) float64 {
	var length float64
	for i := 1; i < len(pts); i++ {
		length += math.Hypot(pts[i].X-pts[i-1].X, pts[i].Y-pts[i-1].Y)
	}
	return length
}

// TurningAngles returns the angle in radians between the incoming and
// outgoing segments at each interior point.
// Formula: acos(clamp(v1.v2 / (|v1||v2|), -1, 1))
func TurningAngles(pts []drawing.Point) []float64 {
	if len(pts) < 3 {
		return nil
	}
	angles := make([]float64, 0, len(pts)-2)
	for i := 1; i < len(pts)-1; i++ {
		v1x, v1y := pts[i].X-pts[i-1].X, pts[i].Y-pts[i-1].Y
		v2x, v2y := pts[i+1].X-pts[i].X, pts[i+1].Y-pts[i].Y

		len1 := math.Hypot(v1x, v1y) + segmentEps
		len2 := math.Hypot(v2x, v2y) + segmentEps

		cos := (v1x*v2x + v1y*v2y) / (len1 * len2)
		angles = append(angles, math.Acos(stats.Clamp(cos, -1, 1)))
	}
	return angles
}

// SegmentVelocities returns distance per second for each segment with a
// strictly positive time delta. Timestamps are in milliseconds.
func SegmentVelocities(pts []drawing.Point) []float64 {
	var out []float64
	for i := 1; i < len(pts); i++ {
		dt := (pts[i].T - pts[i-1].T) / 1000.0
		if dt <= 0 {
			continue
		}
		dist := math.Hypot(pts[i].X-pts[i-1].X, pts[i].Y-pts[i-1].Y)
		out = append(out, dist/dt)
	}
	return out
}
