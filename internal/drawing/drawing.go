// Package drawing defines the freehand-drawing telemetry model: timestamped
// points grouped into strokes on a canvas.
package drawing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Default canvas dimensions used when a payload omits them.
const (
	DefaultCanvasW = 800
	DefaultCanvasH = 600
)

// DefaultColor is assigned to strokes that carry no color.
const DefaultColor = "#000000"

// ToolEraser is the tool name that marks an erasing stroke.
const ToolEraser = "eraser"

var (
	// ErrInvalidColor is returned when a stroke color is not "#RRGGBB" hex.
	ErrInvalidColor = errors.New("invalid stroke color")

	// ErrMissingField is returned when a point lacks x, y or t.
	ErrMissingField = errors.New("missing required field")
)

// Point is one sample of the pen. T is milliseconds since session start.
// Pressure is nil when the input device did not report it.
type Point struct {
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	T        float64  `json:"t"`
	Pressure *float64 `json:"pressure,omitempty"`
}

// HasPressure reports whether the point carries a pressure reading.
func (p Point) HasPressure() bool {
	return p.Pressure != nil
}

// UnmarshalJSON decodes a point, rejecting samples without coordinates or a
// timestamp.
func (p *Point) UnmarshalJSON(data []byte) error {
	var raw struct {
		X        *float64 `json:"x"`
		Y        *float64 `json:"y"`
		T        *float64 `json:"t"`
		Pressure *float64 `json:"pressure"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch {
	case raw.X == nil:
		return fmt.Errorf("point: %w: x", ErrMissingField)
	case raw.Y == nil:
		return fmt.Errorf("point: %w: y", ErrMissingField)
	case raw.T == nil:
		return fmt.Errorf("point: %w: t", ErrMissingField)
	}
	*p = Point{X: *raw.X, Y: *raw.Y, T: *raw.T, Pressure: raw.Pressure}
	return nil
}

// Stroke is one continuous pen-down to pen-up action.
type Stroke struct {
	ID      string  `json:"id,omitempty"`
	Points  []Point `json:"points"`
	Color   string  `json:"color"`
	Opacity float64 `json:"opacity"`
	Width   float64 `json:"width"`
	Tool    string  `json:"tool"`
	Layer   float64 `json:"layer"`
	Closed  bool    `json:"closed"`
}

// UnmarshalJSON decodes a stroke and fills the documented defaults for
// color, opacity and layer.
func (s *Stroke) UnmarshalJSON(data []byte) error {
	type plain Stroke
	raw := struct {
		*plain
		Color   *string  `json:"color"`
		Opacity *float64 `json:"opacity"`
	}{plain: (*plain)(s)}

	*s = Stroke{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.Color = DefaultColor
	if raw.Color != nil {
		s.Color = *raw.Color
	}
	s.Opacity = 1.0
	if raw.Opacity != nil {
		s.Opacity = *raw.Opacity
	}
	return nil
}

// IsEraser reports whether the stroke was drawn with the eraser tool.
func (s Stroke) IsEraser() bool {
	return s.Tool == ToolEraser
}

// Drawing is one session: a canvas and the strokes drawn on it in order.
type Drawing struct {
	CanvasW float64  `json:"canvas_w"`
	CanvasH float64  `json:"canvas_h"`
	Strokes []Stroke `json:"strokes"`
}

// Parse decodes a drawing payload and applies canvas defaults.
func Parse(data []byte) (Drawing, error) {
	d, err := Decode(data)
	if err != nil {
		return Drawing{}, err
	}
	return d.WithDefaults(), nil
}

// Decode decodes a drawing payload as-is. Absent canvas dimensions stay
// zero so the caller can choose its own defaults.
func Decode(data []byte) (Drawing, error) {
	var d Drawing
	if err := json.Unmarshal(data, &d); err != nil {
		return Drawing{}, fmt.Errorf("decode drawing: %w", err)
	}
	return d, nil
}

// WithDefaults returns a copy with non-positive canvas dimensions replaced
// by the 800x600 default.
func (d Drawing) WithDefaults() Drawing {
	return d.WithCanvas(DefaultCanvasW, DefaultCanvasH)
}

// WithCanvas returns a copy whose non-positive canvas dimensions are
// replaced by w and h. Dimensions already present are kept.
func (d Drawing) WithCanvas(w, h float64) Drawing {
	if d.CanvasW <= 0 {
		d.CanvasW = w
	}
	if d.CanvasH <= 0 {
		d.CanvasH = h
	}
	return d
}

// PointCount returns the total number of points across all strokes.
func (d Drawing) PointCount() int {
	n := 0
	for _, s := range d.Strokes {
		n += len(s.Points)
	}
	return n
}

// RGB is a color with channels normalized to [0, 1].
type RGB struct {
	R, G, B float64
}

// ParseHexColor parses "#RRGGBB" into normalized channels.
func ParseHexColor(s string) (RGB, error) {
	if len(s) != 7 || !strings.HasPrefix(s, "#") {
		return RGB{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}

	var ch [3]float64
	for i := range ch {
		v, err := strconv.ParseUint(s[1+2*i:3+2*i], 16, 8)
		if err != nil {
			return RGB{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
		}
		ch[i] = float64(v) / 255.0
	}
	return RGB{R: ch[0], G: ch[1], B: ch[2]}, nil
}
