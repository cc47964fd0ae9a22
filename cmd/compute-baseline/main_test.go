package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestRunNoInput(t *testing.T) {
	var buf bytes.Buffer
	if code := run(nil, &buf); code != 1 {
		t.Errorf("expected exit 1, got %d", code)
	}
	if got := buf.String(); got != "{\"error\":\"No input data provided\"}\n" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestRunScores(t *testing.T) {
	input := `{
		"current_features": {"geom.total_length": 900, "geom.mean_curvature": 0.3},
		"feature_history": [
			{"geom.total_length": 500, "geom.mean_curvature": 0.3},
			{"geom.total_length": 520, "geom.mean_curvature": 0.3},
			{"geom.total_length": 480, "geom.mean_curvature": 0.3}
		]
	}`

	var buf bytes.Buffer
	if code := run([]string{input}, &buf); code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, buf.String())
	}

	var out struct {
		Baseline     map[string]map[string]float64 `json:"baseline"`
		ZMap         map[string]float64            `json:"zmap"`
		AnomalyScore float64                       `json:"anomaly_score"`
		TopFeatures  []struct {
			Feature string  `json:"feature"`
			Z       float64 `json:"z"`
		} `json:"top_features"`
		Interpretation string `json:"interpretation"`
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}

	if out.Baseline["geom.total_length"]["median"] != 500 {
		t.Errorf("expected median 500, got %v", out.Baseline["geom.total_length"])
	}
	if out.ZMap["geom.total_length"] <= 0 {
		t.Errorf("expected positive z, got %v", out.ZMap["geom.total_length"])
	}
	if out.AnomalyScore <= 0 {
		t.Errorf("expected positive anomaly score, got %v", out.AnomalyScore)
	}
	if len(out.TopFeatures) == 0 || out.TopFeatures[0].Feature != "geom.total_length" {
		t.Errorf("expected total length to rank first, got %+v", out.TopFeatures)
	}
	if !strings.Contains(out.Interpretation, "higher total ink length") {
		t.Errorf("unexpected interpretation %q", out.Interpretation)
	}
}

func TestRunEmptyRequest(t *testing.T) {
	var buf bytes.Buffer
	if code := run([]string{`{}`}, &buf); code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, buf.String())
	}
	if !strings.Contains(buf.String(), `"anomaly_score":0`) {
		t.Errorf("expected zero score, got %s", buf.String())
	}
}

func TestRunErrors(t *testing.T) {
	for _, input := range []string{`[1,2]`, `{"current_features":{"a":"x"}}`, `{`} {
		var buf bytes.Buffer
		if code := run([]string{input}, &buf); code != 1 {
			t.Errorf("input %s: expected exit 1, got %d", input, code)
		}
		if !strings.HasPrefix(buf.String(), `{"error":`) {
			t.Errorf("input %s: unexpected output %s", input, buf.String())
		}
	}
}
