package features

import (
	"fmt"
	"math"

	"sketchd/internal/drawing"
	"sketchd/internal/stats"
)

// HueBins is the number of equal-width hue bins used to count palette size.
const HueBins = 12

// Warm hue band: red through yellow, wrapping past magenta.
const (
	warmHueLow  = 0.17
	warmHueHigh = 0.83
)

// HSV is a color in hue/saturation/value space, each in [0, 1].
type HSV struct {
	H, S, V float64
}

// RGBToHSV converts normalized RGB to HSV using the six-way piecewise hue
// formula. Achromatic colors report hue 0.
func RGBToHSV(c drawing.RGB) HSV {
	maxC := math.Max(c.R, math.Max(c.G, c.B))
	minC := math.Min(c.R, math.Min(c.G, c.B))
	delta := maxC - minC

	var s float64
	if maxC != 0 {
		s = delta / maxC
	}

	var h float64
	switch {
	case delta == 0:
		h = 0
	case maxC == c.R:
		h = math.Mod((c.G-c.B)/delta, 6)
		if h < 0 {
			h += 6
		}
	case maxC == c.G:
		h = (c.B-c.R)/delta + 2
	default:
		h = (c.R-c.G)/delta + 4
	}

	return HSV{H: h / 6.0, S: s, V: maxC}
}

// HexToHSV parses "#RRGGBB" and converts it to HSV.
func HexToHSV(hex string) (HSV, error) {
	rgb, err := drawing.ParseHexColor(hex)
	if err != nil {
		return HSV{}, err
	}
	return RGBToHSV(rgb), nil
}

// HueBin quantizes a hue in [0, 1] into one of HueBins bins.
func HueBin(h float64) int {
	bin := int(math.Floor(h * HueBins))
	if bin < 0 {
		return 0
	}
	if bin >= HueBins {
		return HueBins - 1
	}
	return bin
}

// IsWarmHue reports whether h lies in the red-orange-yellow band
// [0, 0.17) or (0.83, 1].
func IsWarmHue(h float64) bool {
	return (h >= 0 && h < warmHueLow) || h > warmHueHigh
}

// ExtractColor computes palette, hue, saturation, value and opacity
// statistics across strokes. Any stroke color that is not "#RRGGBB" fails
// the whole extraction.
func ExtractColor(strokes []drawing.Stroke) (Color, error) {
	if len(strokes) == 0 {
		return defaultColor(), nil
	}

	hues := make([]float64, 0, len(strokes))
	sats := make([]float64, 0, len(strokes))
	vals := make([]float64, 0, len(strokes))
	opacities := make([]float64, 0, len(strokes))
	bins := make(map[int]struct{})
	warm := 0

	for i, s := range strokes {
		hsv, err := HexToHSV(s.Color)
		if err != nil {
			return Color{}, fmt.Errorf("stroke %d: %w", i, err)
		}
		hues = append(hues, hsv.H)
		sats = append(sats, hsv.S)
		vals = append(vals, hsv.V)
		opacities = append(opacities, s.Opacity)
		bins[HueBin(hsv.H)] = struct{}{}
		if IsWarmHue(hsv.H) {
			warm++
		}
	}

	return Color{
		PaletteSize:    float64(len(bins)),
		HueVariance:    stats.Variance(hues),
		MeanSaturation: stats.Mean(sats),
		MeanValue:      stats.Mean(vals),
		WarmProportion: float64(warm) / float64(len(hues)),
		MeanOpacity:    stats.Mean(opacities),
		StdOpacity:     stats.StdDev(opacities),
	}, nil
}
