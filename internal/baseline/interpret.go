package baseline

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"sketchd/internal/vector"
)

// NoDeviationsText is the interpretation reported when nothing ranks.
const NoDeviationsText = "No significant deviations detected."

// InterpretTop is the number of ranked features phrased in an interpretation.
const InterpretTop = 3

// lexicon maps feature names to the phrase used in interpretations.
var lexicon = map[string]string{
	"geom.mean_curvature":    "curvature",
	"geom.total_length":      "total ink length",
	"geom.pen_lift_rate":     "pen lifts",
	"color.hue_variance":     "color diversity",
	"color.palette_size":     "number of colors",
	"comp.spatial_entropy":   "spatial distribution",
	"geom.mean_velocity":     "drawing speed",
	"geom.std_velocity":      "speed variation",
	"comp.vertical_symmetry": "symmetry",
	"layer.eraser_ratio":     "eraser usage",
}

// Describe returns the human-readable phrase for a feature, or the feature
// name itself when it has none.
func Describe(feature string) string {
	if d, ok := lexicon[feature]; ok {
		return d
	}
	return feature
}

// Contribution is one feature's share of an anomaly.
type Contribution struct {
	Feature string  `json:"feature"`
	Z       float64 `json:"z"`
}

// Direction is "higher" for positive z and "lower" otherwise.
func (c Contribution) Direction() string {
	if c.Z > 0 {
		return "higher"
	}
	return "lower"
}

// TopContributingFeatures ranks features by descending |z| and keeps the
// first n. Ties keep the z-map's key order. A non-positive n selects
// DefaultTopN.
func TopContributingFeatures(z *vector.Vector, n int) []Contribution {
	if n <= 0 {
		n = DefaultTopN
	}

	ranked := make([]Contribution, 0, z.Len())
	z.Range(func(key string, v float64) bool {
		ranked = append(ranked, Contribution{Feature: key, Z: v})
		return true
	})

	sort.SliceStable(ranked, func(i, j int) bool {
		return math.Abs(ranked[i].Z) > math.Abs(ranked[j].Z)
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// Interpretation phrases the leading contributions as one sentence, e.g.
// "Top signals: higher drawing speed, lower symmetry".
func Interpretation(top []Contribution) string {
	if len(top) == 0 {
		return NoDeviationsText
	}
	if len(top) > InterpretTop {
		top = top[:InterpretTop]
	}

	parts := make([]string, len(top))
	for i, c := range top {
		parts[i] = fmt.Sprintf("%s %s", c.Direction(), Describe(c.Feature))
	}
	return "Top signals: " + strings.Join(parts, ", ")
}
