package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/sha3"

	"sketchd/internal/drawing"
	"sketchd/internal/vector"
)

// DefaultBusyTimeout is how long a writer waits on a locked database.
const DefaultBusyTimeout = 5 * time.Second

var (
	// ErrDuplicateSession is returned when a subject records the same
	// drawing twice.
	ErrDuplicateSession = errors.New("session already recorded for subject")

	// ErrSessionNotFound is returned when an update targets a missing row.
	ErrSessionNotFound = errors.New("session not found")
)

// Store represents the SQLite session store.
type Store struct {
	db   *sql.DB
	path string
}

// Option customizes Open.
type Option func(*openOptions)

type openOptions struct {
	busyTimeout time.Duration
}

// WithBusyTimeout sets how long SQLite waits for a lock before failing.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *openOptions) {
		if d > 0 {
			o.busyTimeout = d
		}
	}
}

// Open opens or creates the SQLite database at the given path and runs migrations.
func Open(path string, opts ...Option) (*Store, error) {
	o := openOptions{busyTimeout: DefaultBusyTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=%d",
		path, o.busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := migrate(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Fingerprint returns the SHA3-256 digest of the drawing's canonical JSON
// encoding. Two payloads that decode to the same drawing share a
// fingerprint regardless of key order or whitespace.
func Fingerprint(d drawing.Drawing) ([32]byte, error) {
	canonical, err := json.Marshal(d)
	if err != nil {
		return [32]byte{}, fmt.Errorf("encode drawing: %w", err)
	}
	return sha3.Sum256(canonical), nil
}

// RecordSession inserts a session, creating its subject on first use, and
// sets sess.ID. A zero RecordedAt is stamped with the current time.
func (s *Store) RecordSession(sess *Session) (int64, error) {
	if sess.Subject == "" {
		return 0, fmt.Errorf("record session: subject is empty")
	}
	if sess.RecordedAt == 0 {
		sess.RecordedAt = time.Now().UnixNano()
	}

	featuresJSON, err := json.Marshal(sess.Features)
	if err != nil {
		return 0, fmt.Errorf("encode features: %w", err)
	}
	qcJSON, err := json.Marshal(sess.QC)
	if err != nil {
		return 0, fmt.Errorf("encode qc: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT OR IGNORE INTO subjects (name, created_at) VALUES (?, ?)`,
		sess.Subject, sess.RecordedAt,
	); err != nil {
		return 0, fmt.Errorf("insert subject: %w", err)
	}

	var score sql.NullFloat64
	if sess.AnomalyScore != nil {
		score = sql.NullFloat64{Float64: *sess.AnomalyScore, Valid: true}
	}

	result, err := tx.Exec(`
		INSERT INTO sessions (subject, recorded_at, fingerprint, features, qc, anomaly_score, interpretation)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.Subject, sess.RecordedAt, sess.Fingerprint[:], string(featuresJSON), string(qcJSON), score, sess.Interpretation,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s %x", ErrDuplicateSession, sess.Subject, sess.Fingerprint[:8])
		}
		return 0, fmt.Errorf("insert session: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	sess.ID = id
	return id, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// SetAnomaly stores the anomaly score and interpretation of a session.
func (s *Store) SetAnomaly(id int64, score float64, interpretation string) error {
	result, err := s.db.Exec(
		`UPDATE sessions SET anomaly_score = ?, interpretation = ? WHERE id = ?`,
		score, interpretation, id,
	)
	if err != nil {
		return fmt.Errorf("update anomaly: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrSessionNotFound, id)
	}
	return nil
}

// History returns up to limit feature maps for the subject, most recent
// first. A non-positive limit returns every session.
func (s *Store) History(subject string, limit int) ([]*vector.Vector, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.Query(`
		SELECT features FROM sessions
		WHERE subject = ?
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?`, subject, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var history []*vector.Vector
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		v := vector.New(0)
		if err := json.Unmarshal([]byte(raw), v); err != nil {
			return nil, fmt.Errorf("decode history features: %w", err)
		}
		history = append(history, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}

	return history, nil
}

const sessionColumns = `id, subject, recorded_at, fingerprint, features, qc, anomaly_score, interpretation`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var sess Session
	var fingerprint []byte
	var featuresJSON, qcJSON string
	var score sql.NullFloat64

	if err := row.Scan(&sess.ID, &sess.Subject, &sess.RecordedAt, &fingerprint,
		&featuresJSON, &qcJSON, &score, &sess.Interpretation); err != nil {
		return nil, err
	}

	copy(sess.Fingerprint[:], fingerprint)
	if err := json.Unmarshal([]byte(featuresJSON), &sess.Features); err != nil {
		return nil, fmt.Errorf("decode features of session %d: %w", sess.ID, err)
	}
	if err := json.Unmarshal([]byte(qcJSON), &sess.QC); err != nil {
		return nil, fmt.Errorf("decode qc of session %d: %w", sess.ID, err)
	}
	if score.Valid {
		v := score.Float64
		sess.AnomalyScore = &v
	}

	return &sess, nil
}

// GetSession retrieves a session by ID. It returns nil, nil when the
// session does not exist.
func (s *Store) GetSession(id int64) (*Session, error) {
	row := s.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// Sessions returns up to limit sessions for the subject, most recent
// first. A non-positive limit returns every session.
func (s *Store) Sessions(subject string, limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.Query(`
		SELECT `+sessionColumns+` FROM sessions
		WHERE subject = ?
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?`, subject, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

// Scores returns the scored sessions of a subject in chronological order.
func (s *Store) Scores(subject string) ([]Score, error) {
	rows, err := s.db.Query(`
		SELECT id, recorded_at, anomaly_score FROM sessions
		WHERE subject = ? AND anomaly_score IS NOT NULL
		ORDER BY recorded_at ASC, id ASC`, subject)
	if err != nil {
		return nil, fmt.Errorf("query scores: %w", err)
	}
	defer rows.Close()

	var scores []Score
	for rows.Next() {
		var sc Score
		if err := rows.Scan(&sc.SessionID, &sc.RecordedAt, &sc.Value); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		scores = append(scores, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scores: %w", err)
	}

	return scores, nil
}

// Subjects returns every subject with its session count, ordered by name.
func (s *Store) Subjects() ([]Subject, error) {
	rows, err := s.db.Query(`
		SELECT sub.name, sub.created_at, COUNT(sess.id)
		FROM subjects sub
		LEFT JOIN sessions sess ON sess.subject = sub.name
		GROUP BY sub.name
		ORDER BY sub.name`)
	if err != nil {
		return nil, fmt.Errorf("query subjects: %w", err)
	}
	defer rows.Close()

	var subjects []Subject
	for rows.Next() {
		var sub Subject
		if err := rows.Scan(&sub.Name, &sub.CreatedAt, &sub.SessionCount); err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		subjects = append(subjects, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subjects: %w", err)
	}

	return subjects, nil
}

// DeleteSubject removes a subject and all of its sessions, returning the
// number of sessions deleted.
func (s *Store) DeleteSubject(name string) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`DELETE FROM sessions WHERE subject = ?`, name)
	if err != nil {
		return 0, fmt.Errorf("delete sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM subjects WHERE name = ?`, name); err != nil {
		return 0, fmt.Errorf("delete subject: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return n, nil
}

// SchemaVersion returns the highest applied migration.
func (s *Store) SchemaVersion() (int, error) {
	return schemaVersion(s.db)
}

// Stats returns database statistics.
func (s *Store) Stats() (*Stats, error) {
	stats := &Stats{}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM subjects`).Scan(&stats.SubjectCount); err != nil {
		return nil, fmt.Errorf("count subjects: %w", err)
	}

	var oldestNs, newestNs sql.NullInt64
	err := s.db.QueryRow(`
		SELECT COUNT(*), COUNT(anomaly_score), MIN(recorded_at), MAX(recorded_at)
		FROM sessions`).Scan(&stats.SessionCount, &stats.ScoredCount, &oldestNs, &newestNs)
	if err != nil {
		return nil, fmt.Errorf("count sessions: %w", err)
	}
	if oldestNs.Valid {
		stats.OldestSession = time.Unix(0, oldestNs.Int64)
		stats.NewestSession = time.Unix(0, newestNs.Int64)
	}

	v, err := s.SchemaVersion()
	if err != nil {
		return nil, err
	}
	stats.SchemaVersion = v

	return stats, nil
}
