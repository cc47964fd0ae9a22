package features

import (
	"sketchd/internal/drawing"
	"sketchd/internal/stats"
)

// ExtractLayering computes layer index statistics and the eraser ratio.
func ExtractLayering(strokes []drawing.Stroke) Layering {
	if len(strokes) == 0 {
		return Layering{}
	}

	layers := make([]float64, len(strokes))
	erasers := 0
	for i, s := range strokes {
		layers[i] = s.Layer
		if s.IsEraser() {
			erasers++
		}
	}

	return Layering{
		Mean:        stats.Mean(layers),
		Std:         stats.StdDev(layers),
		EraserRatio: float64(erasers) / float64(len(strokes)),
	}
}
