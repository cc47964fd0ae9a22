package features

import (
	"fmt"

	"sketchd/internal/drawing"
)

// Extract computes the full feature vector for one drawing.
//
// A drawing with no strokes yields Default(). The only failure is malformed
// input, such as a stroke color that is not hex; no partial vector is
// returned in that case.
func Extract(d drawing.Drawing) (Vector, error) {
	d = d.WithDefaults()
	if len(d.Strokes) == 0 {
		return Default(), nil
	}

	color, err := ExtractColor(d.Strokes)
	if err != nil {
		return Vector{}, fmt.Errorf("extract color features: %w", err)
	}

	return Vector{
		Composition: ExtractComposition(d.Strokes, d.CanvasW, d.CanvasH),
		Geometry:    ExtractGeometry(d.Strokes),
		Color:       color,
		Layering:    ExtractLayering(d.Strokes),
	}, nil
}
