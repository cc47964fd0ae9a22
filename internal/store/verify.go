package store

import (
	"encoding/json"
	"fmt"
	"math"

	"sketchd/internal/features"
	"sketchd/internal/vector"
)

// VerifySessionRecord checks one stored row: the fingerprint must be a full
// SHA3-256 digest, the feature payload must carry every vocabulary key with
// a finite value, and a present score must be finite and non-negative.
func VerifySessionRecord(fingerprint []byte, featuresJSON string, score *float64) error {
	if len(fingerprint) != 32 {
		return fmt.Errorf("fingerprint has %d bytes, expected 32", len(fingerprint))
	}

	var m vector.Vector
	if err := json.Unmarshal([]byte(featuresJSON), &m); err != nil {
		return fmt.Errorf("decode features: %w", err)
	}
	for _, name := range features.Names() {
		v, ok := m.Get(name)
		if !ok {
			return fmt.Errorf("feature %s missing", name)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("feature %s is not finite", name)
		}
	}

	if score != nil && (math.IsNaN(*score) || math.IsInf(*score, 0) || *score < 0) {
		return fmt.Errorf("anomaly score %v out of range", *score)
	}
	return nil
}

// VerifySessions checks every stored session and returns the IDs of rows
// that fail VerifySessionRecord.
func (s *Store) VerifySessions() ([]int64, error) {
	rows, err := s.db.Query(`
		SELECT id, fingerprint, features, anomaly_score
		FROM sessions
		ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query all sessions: %w", err)
	}
	defer rows.Close()

	var corrupted []int64
	for rows.Next() {
		var id int64
		var fingerprint []byte
		var featuresJSON string
		var score *float64

		if err := rows.Scan(&id, &fingerprint, &featuresJSON, &score); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if err := VerifySessionRecord(fingerprint, featuresJSON, score); err != nil {
			corrupted = append(corrupted, id)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return corrupted, nil
}
