package baseline

import "sketchd/internal/vector"

// Options tunes Analyze. Zero Window and TopN and a nil Trim select the
// package defaults. A Trim of 0 averages every |z| without trimming.
type Options struct {
	Window int      `json:"window" toml:"window" yaml:"window"`
	Trim   *float64 `json:"trim,omitempty" toml:"trim,omitempty" yaml:"trim,omitempty"`
	TopN   int      `json:"top_n" toml:"top_n" yaml:"top_n"`
}

// DefaultOptions returns the stock scoring parameters.
func DefaultOptions() Options {
	return Options{
		Window: DefaultWindow,
		Trim:   TrimProportion(DefaultTrim),
		TopN:   DefaultTopN,
	}
}

// TrimProportion returns p as an Options.Trim value.
func TrimProportion(p float64) *float64 {
	return &p
}

func (o Options) withDefaults() Options {
	if o.Window <= 0 {
		o.Window = DefaultWindow
	}
	if o.Trim == nil || *o.Trim < 0 {
		o.Trim = TrimProportion(DefaultTrim)
	}
	if o.TopN <= 0 {
		o.TopN = DefaultTopN
	}
	return o
}

// Report is the diagnostic bundle for one session against its history.
type Report struct {
	Baseline       Baseline       `json:"baseline"`
	ZMap           *vector.Vector `json:"zmap"`
	AnomalyScore   float64        `json:"anomaly_score"`
	TopFeatures    []Contribution `json:"top_features"`
	Interpretation string         `json:"interpretation"`
}

// Analyze runs the full chain: baseline, z-scores, anomaly score, ranking
// and interpretation. history is most-recent-first.
func Analyze(current *vector.Vector, history []*vector.Vector, opts Options) *Report {
	opts = opts.withDefaults()
	if current == nil {
		current = vector.New(0)
	}

	b := ComputeBaseline(history, opts.Window)
	z := ZScores(current, b)
	top := TopContributingFeatures(z, opts.TopN)

	return &Report{
		Baseline:       b,
		ZMap:           z,
		AnomalyScore:   AnomalyScore(z, *opts.Trim),
		TopFeatures:    top,
		Interpretation: Interpretation(top),
	}
}
