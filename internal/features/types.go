// Package features extracts a fixed vocabulary of objective, non-interpretive
// features from one drawing session.
//
// The vocabulary is an explicit struct rather than an open map: every
// extraction, including the empty-drawing case, yields every key.
package features

import (
	"encoding/json"

	"sketchd/internal/vector"
)

// Feature names, grouped by namespace.
const (
	KeyCentroidX        = "comp.centroid_x"
	KeyCentroidY        = "comp.centroid_y"
	KeySpatialEntropy   = "comp.spatial_entropy"
	KeyThirdsOccupied   = "comp.thirds_occupied"
	KeyVerticalSymmetry = "comp.vertical_symmetry"

	KeyTotalLength      = "geom.total_length"
	KeyMeanStrokeLength = "geom.mean_stroke_length"
	KeyStdStrokeLength  = "geom.std_stroke_length"
	KeyMeanCurvature    = "geom.mean_curvature"
	KeyMaxCurvature     = "geom.max_curvature"
	KeyHighCurvaturePct = "geom.high_curvature_pct"
	KeyMeanVelocity     = "geom.mean_velocity"
	KeyStdVelocity      = "geom.std_velocity"
	KeyMeanPressure     = "geom.mean_pressure"
	KeyStdPressure      = "geom.std_pressure"
	KeyPenLiftRate      = "geom.pen_lift_rate"
	KeyPaletteSize      = "color.palette_size"
	KeyHueVariance      = "color.hue_variance"
	KeyMeanSaturation   = "color.mean_saturation"
	KeyMeanValue        = "color.mean_value"
	KeyWarmProportion   = "color.warm_proportion"
	KeyMeanOpacity      = "color.mean_opacity"
	KeyStdOpacity       = "color.std_opacity"
	KeyLayerMean        = "layer.mean"
	KeyLayerStd         = "layer.std"
	KeyEraserRatio      = "layer.eraser_ratio"
)

// Composition describes where ink sits on the canvas.
type Composition struct {
	CentroidX        float64 // Mean point x as a fraction of canvas width
	CentroidY        float64 // Mean point y as a fraction of canvas height
	SpatialEntropy   float64 // Shannon entropy (nats) of a 10x10 occupancy grid
	ThirdsOccupied   float64 // Non-empty cells of the 3x3 rule-of-thirds grid
	VerticalSymmetry float64 // 1 - |left-right|/total about the vertical midline
}

// Geometry describes stroke shape and dynamics.
type Geometry struct {
	TotalLength      float64
	MeanStrokeLength float64
	StdStrokeLength  float64
	MeanCurvature    float64 // Radians
	MaxCurvature     float64 // Radians
	HighCurvaturePct float64 // Fraction of turning angles above 1 rad
	MeanVelocity     float64 // Canvas units per second
	StdVelocity      float64
	MeanPressure     float64
	StdPressure      float64
	PenLiftRate      float64 // Strokes per second of session
}

// Color describes palette and opacity usage.
type Color struct {
	PaletteSize    float64
	HueVariance    float64
	MeanSaturation float64
	MeanValue      float64
	WarmProportion float64
	MeanOpacity    float64
	StdOpacity     float64
}

// Layering describes layer usage and erasing.
type Layering struct {
	Mean        float64
	Std         float64
	EraserRatio float64
}

// Vector is the complete feature vector for one drawing.
type Vector struct {
	Composition Composition
	Geometry    Geometry
	Color       Color
	Layering    Layering
}

// field binds a vocabulary key to its slot in Vector.
type field struct {
	name string
	ref  func(v *Vector) *float64
}

// schema lists the vocabulary in emission order.
var schema = []field{
	{KeyCentroidX, func(v *Vector) *float64 { return &v.Composition.CentroidX }},
	{KeyCentroidY, func(v *Vector) *float64 { return &v.Composition.CentroidY }},
	{KeySpatialEntropy, func(v *Vector) *float64 { return &v.Composition.SpatialEntropy }},
	{KeyThirdsOccupied, func(v *Vector) *float64 { return &v.Composition.ThirdsOccupied }},
	{KeyVerticalSymmetry, func(v *Vector) *float64 { return &v.Composition.VerticalSymmetry }},
	{KeyTotalLength, func(v *Vector) *float64 { return &v.Geometry.TotalLength }},
	{KeyMeanStrokeLength, func(v *Vector) *float64 { return &v.Geometry.MeanStrokeLength }},
	{KeyStdStrokeLength, func(v *Vector) *float64 { return &v.Geometry.StdStrokeLength }},
	{KeyMeanCurvature, func(v *Vector) *float64 { return &v.Geometry.MeanCurvature }},
	{KeyMaxCurvature, func(v *Vector) *float64 { return &v.Geometry.MaxCurvature }},
	{KeyHighCurvaturePct, func(v *Vector) *float64 { return &v.Geometry.HighCurvaturePct }},
	{KeyMeanVelocity, func(v *Vector) *float64 { return &v.Geometry.MeanVelocity }},
	{KeyStdVelocity, func(v *Vector) *float64 { return &v.Geometry.StdVelocity }},
	{KeyMeanPressure, func(v *Vector) *float64 { return &v.Geometry.MeanPressure }},
	{KeyStdPressure, func(v *Vector) *float64 { return &v.Geometry.StdPressure }},
	{KeyPenLiftRate, func(v *Vector) *float64 { return &v.Geometry.PenLiftRate }},
	{KeyPaletteSize, func(v *Vector) *float64 { return &v.Color.PaletteSize }},
	{KeyHueVariance, func(v *Vector) *float64 { return &v.Color.HueVariance }},
	{KeyMeanSaturation, func(v *Vector) *float64 { return &v.Color.MeanSaturation }},
	{KeyMeanValue, func(v *Vector) *float64 { return &v.Color.MeanValue }},
	{KeyWarmProportion, func(v *Vector) *float64 { return &v.Color.WarmProportion }},
	{KeyMeanOpacity, func(v *Vector) *float64 { return &v.Color.MeanOpacity }},
	{KeyStdOpacity, func(v *Vector) *float64 { return &v.Color.StdOpacity }},
	{KeyLayerMean, func(v *Vector) *float64 { return &v.Layering.Mean }},
	{KeyLayerStd, func(v *Vector) *float64 { return &v.Layering.Std }},
	{KeyEraserRatio, func(v *Vector) *float64 { return &v.Layering.EraserRatio }},
}

// Names returns the full vocabulary in emission order.
func Names() []string {
	names := make([]string, len(schema))
	for i, f := range schema {
		names[i] = f.name
	}
	return names
}

// Map returns the vector as an ordered feature map carrying every
// vocabulary key.
func (v Vector) Map() *vector.Vector {
	out := vector.New(len(schema))
	for _, f := range schema {
		out.Set(f.name, *f.ref(&v))
	}
	return out
}

// Get returns the value of a vocabulary key.
func (v Vector) Get(name string) (float64, bool) {
	for _, f := range schema {
		if f.name == name {
			return *f.ref(&v), true
		}
	}
	return 0, false
}

// FromMap fills a Vector from a feature map. Keys outside the vocabulary are
// ignored; vocabulary keys missing from m keep their Default value.
func FromMap(m *vector.Vector) Vector {
	v := Default()
	for _, f := range schema {
		if val, ok := m.Get(f.name); ok {
			*f.ref(&v) = val
		}
	}
	return v
}

// MarshalJSON encodes the vector as a flat object of dotted feature names.
func (v Vector) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Map())
}

// UnmarshalJSON decodes a flat feature object.
func (v *Vector) UnmarshalJSON(data []byte) error {
	var m vector.Vector
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*v = FromMap(&m)
	return nil
}

// Default returns the vector reported for a drawing without strokes.
func Default() Vector {
	return Vector{
		Composition: defaultComposition(),
		Geometry:    defaultGeometry(),
		Color:       defaultColor(),
		Layering:    Layering{},
	}
}

func defaultComposition() Composition {
	return Composition{
		CentroidX:        0.5,
		CentroidY:        0.5,
		VerticalSymmetry: 1.0,
	}
}

func defaultGeometry() Geometry {
	return Geometry{MeanPressure: 1.0}
}

func defaultColor() Color {
	return Color{
		PaletteSize: 1,
		MeanOpacity: 1.0,
	}
}
