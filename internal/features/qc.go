package features

import "sketchd/internal/drawing"

// Default quality-control thresholds. Both are heuristic and overridable
// through Thresholds.
const (
	DefaultMinInkLength = 10.0
	DefaultMinStrokes   = 3
)

// Thresholds configures the quality-control checks.
type Thresholds struct {
	// MinInkLength is the total ink length below which a session is too short.
	MinInkLength float64 `json:"min_ink_length" toml:"min_ink_length" yaml:"min_ink_length"`

	// MinStrokes is the stroke count below which a session has too few strokes.
	MinStrokes int `json:"min_strokes" toml:"min_strokes" yaml:"min_strokes"`
}

// DefaultThresholds returns the stock QC thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinInkLength: DefaultMinInkLength,
		MinStrokes:   DefaultMinStrokes,
	}
}

// QCFlags are independent quality-control signals for one session.
type QCFlags struct {
	TooShort        bool `json:"too_short"`
	MissingPressure bool `json:"missing_pressure"`
	TooFewStrokes   bool `json:"too_few_strokes"`
}

// Any reports whether at least one flag is raised.
func (q QCFlags) Any() bool {
	return q.TooShort || q.MissingPressure || q.TooFewStrokes
}

// Raised returns the names of the raised flags in a fixed order.
func (q QCFlags) Raised() []string {
	var out []string
	if q.TooShort {
		out = append(out, "too_short")
	}
	if q.MissingPressure {
		out = append(out, "missing_pressure")
	}
	if q.TooFewStrokes {
		out = append(out, "too_few_strokes")
	}
	return out
}

// QC derives quality-control flags from an extracted vector and the raw
// strokes it came from.
func QC(v Vector, strokes []drawing.Stroke, th Thresholds) QCFlags {
	return QCFlags{
		TooShort:        v.Geometry.TotalLength < th.MinInkLength,
		MissingPressure: !hasPressure(strokes),
		TooFewStrokes:   len(strokes) < th.MinStrokes,
	}
}

func hasPressure(strokes []drawing.Stroke) bool {
	for _, s := range strokes {
		for _, p := range s.Points {
			if p.HasPressure() {
				return true
			}
		}
	}
	return false
}
