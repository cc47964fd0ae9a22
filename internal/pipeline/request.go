package pipeline

import (
	"encoding/json"
	"fmt"

	"sketchd/internal/vector"
)

// BaselineRequest is the payload accepted by the compute-baseline tool.
// FeatureHistory is most-recent-first.
type BaselineRequest struct {
	CurrentFeatures *vector.Vector   `json:"current_features"`
	FeatureHistory  []*vector.Vector `json:"feature_history"`
}

// DecodeBaselineRequest decodes a baseline request. Missing fields decode
// as an empty map and an empty history.
func DecodeBaselineRequest(raw []byte) (*BaselineRequest, error) {
	var req BaselineRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("decode baseline request: %w", err)
	}
	if req.CurrentFeatures == nil {
		req.CurrentFeatures = vector.New(0)
	}
	if req.FeatureHistory == nil {
		req.FeatureHistory = []*vector.Vector{}
	}
	return &req, nil
}
