// Package pipeline ties extraction, the session store and anomaly scoring
// together. The feature and baseline engines stay pure; everything with a
// side effect (persistence, metrics, logs) happens here.
package pipeline

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"sketchd/internal/baseline"
	"sketchd/internal/config"
	"sketchd/internal/drawing"
	"sketchd/internal/features"
	"sketchd/internal/logging"
	"sketchd/internal/metrics"
	"sketchd/internal/schemavalidation"
	"sketchd/internal/store"
	"sketchd/internal/vector"
)

// ErrNoSubject is returned when a session is submitted without a subject.
var ErrNoSubject = errors.New("subject is required")

// SessionStore is the persistence the pipeline needs.
type SessionStore interface {
	RecordSession(sess *store.Session) (int64, error)
	SetAnomaly(id int64, score float64, interpretation string) error
	History(subject string, limit int) ([]*vector.Vector, error)
	Sessions(subject string, limit int) ([]*store.Session, error)
	Scores(subject string) ([]store.Score, error)
}

// Extraction is the result of running the feature engine on one drawing.
type Extraction struct {
	Drawing     drawing.Drawing  `json:"-"`
	Fingerprint [32]byte         `json:"-"`
	Features    features.Vector  `json:"features"`
	QC          features.QCFlags `json:"qc"`
	Duration    time.Duration    `json:"-"`
}

// Result describes one processed session.
type Result struct {
	Subject      string           `json:"subject"`
	SessionID    int64            `json:"session_id"`
	RecordedAt   time.Time        `json:"recorded_at"`
	Fingerprint  string           `json:"fingerprint"`
	Features     features.Vector  `json:"features"`
	QC           features.QCFlags `json:"qc"`
	HistoryDepth int              `json:"history_depth"`
	Report       *baseline.Report `json:"report"`
	Trend        *Trend           `json:"trend"`
}

// Pipeline processes drawings for subjects against a session store.
type Pipeline struct {
	store   SessionStore
	cfg     atomic.Pointer[config.Config]
	logger  *logging.Logger
	metrics *metrics.SketchMetrics
	now     func() time.Time
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *logging.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMetrics sets the metrics sink. Nil disables metrics.
func WithMetrics(m *metrics.SketchMetrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithClock overrides the time source used to stamp sessions.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// New creates a pipeline. A nil cfg uses config.DefaultConfig.
func New(st SessionStore, cfg *config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:  st,
		logger: logging.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.WithComponent("pipeline")
	p.SetConfig(cfg)
	return p
}

// SetConfig swaps the configuration used for subsequent sessions. It is
// safe to call while sessions are being processed.
func (p *Pipeline) SetConfig(cfg *config.Config) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	p.cfg.Store(cfg.Clone())
}

// Config returns the active configuration.
func (p *Pipeline) Config() *config.Config {
	return p.cfg.Load()
}

// Extract validates, decodes and extracts one drawing payload without
// touching the store.
func Extract(raw []byte, ex config.ExtractionConfig) (*Extraction, error) {
	if err := schemavalidation.ValidateDrawing(raw); err != nil {
		return nil, err
	}

	d, err := drawing.Decode(raw)
	if err != nil {
		return nil, err
	}
	d = d.WithCanvas(ex.CanvasWidth, ex.CanvasHeight).WithDefaults()

	start := time.Now()
	v, err := features.Extract(d)
	if err != nil {
		return nil, err
	}
	qc := features.QC(v, d.Strokes, ex.Thresholds())
	elapsed := time.Since(start)

	fp, err := store.Fingerprint(d)
	if err != nil {
		return nil, err
	}

	return &Extraction{
		Drawing:     d,
		Fingerprint: fp,
		Features:    v,
		QC:          qc,
		Duration:    elapsed,
	}, nil
}

// Extract runs Extract with the pipeline's extraction settings and records
// the outcome in metrics.
func (p *Pipeline) Extract(raw []byte) (*Extraction, error) {
	ex, err := Extract(raw, p.Config().Extraction)
	if err != nil {
		p.metrics.ObserveExtraction(metrics.ResultInvalid, 0)
		return nil, err
	}
	return ex, nil
}

// Process validates and extracts one drawing, scores it against the
// subject's stored history, records it and recomputes the subject's trend.
func (p *Pipeline) Process(ctx context.Context, subject string, raw []byte) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if subject == "" {
		return nil, ErrNoSubject
	}

	ex, err := p.Extract(raw)
	if err != nil {
		p.log(ctx).Warn("drawing rejected", "subject", subject, "error", err)
		return nil, fmt.Errorf("extract: %w", err)
	}
	return p.Record(ctx, subject, ex)
}

// Record scores an extraction against the subject's history (loaded before
// the new session is inserted), stores it and recomputes the trend.
func (p *Pipeline) Record(ctx context.Context, subject string, ex *Extraction) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if subject == "" {
		return nil, ErrNoSubject
	}

	cfg := p.Config()
	log := p.log(ctx).With("subject", subject)

	history, err := p.store.History(subject, cfg.Baseline.Options().Window)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	report := baseline.Analyze(ex.Features.Map(), history, cfg.Baseline.Options())

	score := report.AnomalyScore
	sess := &store.Session{
		Subject:        subject,
		RecordedAt:     p.now().UnixNano(),
		Fingerprint:    ex.Fingerprint,
		Features:       ex.Features,
		QC:             ex.QC,
		AnomalyScore:   &score,
		Interpretation: report.Interpretation,
	}
	if _, err := p.store.RecordSession(sess); err != nil {
		if errors.Is(err, store.ErrDuplicateSession) {
			p.metrics.Duplicate()
			p.metrics.ObserveExtraction(metrics.ResultRejected, ex.Duration)
			log.Info("duplicate drawing ignored", "fingerprint", hex.EncodeToString(ex.Fingerprint[:8]))
		}
		return nil, fmt.Errorf("record session: %w", err)
	}

	p.metrics.ObserveExtraction(metrics.ResultOK, ex.Duration)
	p.metrics.ObserveQC(ex.QC)
	p.metrics.ObserveScore(score, len(history))
	p.metrics.SessionRecorded()

	trend, err := p.Trend(subject)
	if err != nil {
		return nil, err
	}
	if trend.LatestIsChangePoint() {
		p.metrics.ChangePoint()
		log.Warn("change point detected", "session_id", sess.ID, "anomaly_score", score)
	}

	log.Info("session recorded",
		"session_id", sess.ID,
		"history_depth", len(history),
		"anomaly_score", score,
		"qc", ex.QC.Raised(),
	)

	return &Result{
		Subject:      subject,
		SessionID:    sess.ID,
		RecordedAt:   sess.Time(),
		Fingerprint:  sess.FingerprintHex(),
		Features:     ex.Features,
		QC:           ex.QC,
		HistoryDepth: len(history),
		Report:       report,
		Trend:        trend,
	}, nil
}

// Rescore recomputes every stored score of a subject in chronological
// order, each session against the sessions that preceded it, using the
// active baseline settings. It returns the refreshed trend.
func (p *Pipeline) Rescore(ctx context.Context, subject string) (*Trend, error) {
	sessions, err := p.store.Sessions(subject, 0)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}

	opts := p.Config().Baseline.Options()
	window := opts.Window
	if window <= 0 {
		window = baseline.DefaultWindow
	}

	// sessions is most-recent-first: the history of sessions[i] is
	// sessions[i+1:], already in the order Analyze expects.
	for i := len(sessions) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		prior := sessions[i+1:]
		if len(prior) > window {
			prior = prior[:window]
		}
		history := make([]*vector.Vector, len(prior))
		for j, s := range prior {
			history[j] = s.Features.Map()
		}

		report := baseline.Analyze(sessions[i].Features.Map(), history, opts)
		if err := p.store.SetAnomaly(sessions[i].ID, report.AnomalyScore, report.Interpretation); err != nil {
			return nil, err
		}
	}

	p.log(ctx).Info("subject rescored", "subject", subject, "sessions", len(sessions))
	return p.Trend(subject)
}

// Score validates a baseline request payload and analyzes it. It never
// touches the store.
func Score(raw []byte, opts baseline.Options) (*baseline.Report, error) {
	if err := schemavalidation.ValidateBaselineRequest(raw); err != nil {
		return nil, err
	}
	req, err := DecodeBaselineRequest(raw)
	if err != nil {
		return nil, err
	}
	return baseline.Analyze(req.CurrentFeatures, req.FeatureHistory, opts), nil
}

func (p *Pipeline) log(ctx context.Context) *logging.Logger {
	return p.logger.WithContext(ctx)
}
