// Package store provides SQLite-based session storage for sketchd.
package store

import (
	"encoding/hex"
	"time"

	"sketchd/internal/features"
)

// Subject is a person whose drawing sessions are tracked.
type Subject struct {
	Name         string `json:"name"`
	CreatedAt    int64  `json:"created_at"`
	SessionCount int64  `json:"session_count"`
}

// Session is one recorded drawing extraction.
type Session struct {
	ID          int64
	Subject     string
	RecordedAt  int64
	Fingerprint [32]byte
	Features    features.Vector
	QC          features.QCFlags
	// AnomalyScore is nil until the session has been scored.
	AnomalyScore   *float64
	Interpretation string
}

// Scored reports whether the session carries an anomaly score.
func (s *Session) Scored() bool {
	return s.AnomalyScore != nil
}

// Time returns RecordedAt as a time.Time.
func (s *Session) Time() time.Time {
	return time.Unix(0, s.RecordedAt)
}

// FingerprintHex returns the fingerprint as lowercase hex.
func (s *Session) FingerprintHex() string {
	return hex.EncodeToString(s.Fingerprint[:])
}

// Score is one point of a subject's anomaly-score series.
type Score struct {
	SessionID  int64
	RecordedAt int64
	Value      float64
}

// Stats summarizes the database contents.
type Stats struct {
	SubjectCount  int64
	SessionCount  int64
	ScoredCount   int64
	OldestSession time.Time
	NewestSession time.Time
	SchemaVersion int
}
