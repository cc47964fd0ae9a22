package drawing

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	d, err := Parse([]byte(`{"strokes":[{"points":[{"x":1,"y":2,"t":0}]}]}`))
	require.NoError(t, err)

	assert.Equal(t, float64(DefaultCanvasW), d.CanvasW)
	assert.Equal(t, float64(DefaultCanvasH), d.CanvasH)
	require.Len(t, d.Strokes, 1)

	s := d.Strokes[0]
	assert.Equal(t, DefaultColor, s.Color)
	assert.Equal(t, 1.0, s.Opacity)
	assert.Equal(t, 0.0, s.Layer)
	assert.False(t, s.Points[0].HasPressure())
}

func TestParseKeepsExplicitValues(t *testing.T) {
	payload := `{
		"canvas_w": 1024, "canvas_h": 768,
		"strokes": [{
			"id": "s1", "tool": "eraser", "color": "#FF8800", "width": 3,
			"opacity": 0, "layer": 2, "closed": true,
			"points": [{"x": 1, "y": 2, "t": 3, "pressure": 0.4}]
		}]
	}`
	d, err := Parse([]byte(payload))
	require.NoError(t, err)

	assert.Equal(t, 1024.0, d.CanvasW)
	assert.Equal(t, 768.0, d.CanvasH)
	s := d.Strokes[0]
	assert.Equal(t, "s1", s.ID)
	assert.True(t, s.IsEraser())
	assert.Equal(t, "#FF8800", s.Color)
	assert.Equal(t, 0.0, s.Opacity, "explicit zero opacity must survive defaults")
	assert.Equal(t, 2.0, s.Layer)
	assert.True(t, s.Closed)
	require.True(t, s.Points[0].HasPressure())
	assert.Equal(t, 0.4, *s.Points[0].Pressure)
}

func TestParseNullPressureIsAbsent(t *testing.T) {
	d, err := Parse([]byte(`{"strokes":[{"points":[{"x":1,"y":2,"t":3,"pressure":null}]}]}`))
	require.NoError(t, err)

	p := d.Strokes[0].Points[0]
	assert.False(t, p.HasPressure())
	assert.Nil(t, p.Pressure)
}

func TestParseStrokeWithoutPoints(t *testing.T) {
	d, err := Parse([]byte(`{"strokes":[{"color":"#FF0000"}]}`))
	require.NoError(t, err)

	require.Len(t, d.Strokes, 1)
	assert.Empty(t, d.Strokes[0].Points)
	assert.Equal(t, "#FF0000", d.Strokes[0].Color)
	assert.Equal(t, 0, d.PointCount())
}

func TestParseRejectsIncompletePoints(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "missing x", payload: `{"strokes":[{"points":[{"y":2,"t":0}]}]}`},
		{name: "missing y", payload: `{"strokes":[{"points":[{"x":2,"t":0}]}]}`},
		{name: "missing t", payload: `{"strokes":[{"points":[{"x":1,"y":2}]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.payload))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMissingField), "got %v", err)
		})
	}
}

func TestParseRejectsMalformedJSON(t *testing.T) {
	_, err := Parse([]byte(`{"strokes": [`))
	assert.Error(t, err)
}

func TestPointCount(t *testing.T) {
	d := Drawing{Strokes: []Stroke{
		{Points: make([]Point, 3)},
		{},
		{Points: make([]Point, 2)},
	}}
	assert.Equal(t, 5, d.PointCount())
}

func TestPointMarshalOmitsAbsentPressure(t *testing.T) {
	data, err := json.Marshal(Point{X: 1, Y: 2, T: 3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1,"y":2,"t":3}`, string(data))
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		input string
		want  RGB
	}{
		{"#FF0000", RGB{R: 1}},
		{"#00ff00", RGB{G: 1}},
		{"#0000FF", RGB{B: 1}},
		{"#000000", RGB{}},
		{"#FFFFFF", RGB{R: 1, G: 1, B: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseHexColor(tt.input)
			require.NoError(t, err)
			assert.InDelta(t, tt.want.R, got.R, 1e-12)
			assert.InDelta(t, tt.want.G, got.G, 1e-12)
			assert.InDelta(t, tt.want.B, got.B, 1e-12)
		})
	}
}

func TestParseHexColorInvalid(t *testing.T) {
	for _, input := range []string{"", "red", "#FFF", "FF0000", "#GG0000", "#FF00001"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseHexColor(input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidColor))
		})
	}
}

func TestWithCanvasKeepsExplicitDimensions(t *testing.T) {
	d := Drawing{CanvasW: 320}.WithCanvas(1000, 500)
	assert.Equal(t, 320.0, d.CanvasW)
	assert.Equal(t, 500.0, d.CanvasH)

	d = Drawing{CanvasW: -1, CanvasH: 0}.WithCanvas(1000, 500)
	assert.Equal(t, 1000.0, d.CanvasW)
	assert.Equal(t, 500.0, d.CanvasH)
}

func TestDecodeLeavesCanvasUnset(t *testing.T) {
	d, err := Decode([]byte(`{"strokes":[]}`))
	require.NoError(t, err)
	assert.Zero(t, d.CanvasW)
	assert.Zero(t, d.CanvasH)
	assert.Empty(t, d.Strokes)
}
