package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"sketchd/internal/logging"
	"sketchd/internal/pipeline"
	"sketchd/internal/store"
)

// Processor records one drawing for a subject.
type Processor interface {
	Process(ctx context.Context, subject string, raw []byte) (*pipeline.Result, error)
}

// Outcome is the result of processing one inbox file.
type Outcome struct {
	Event  Event
	Result *pipeline.Result
	Err    error
}

// Duplicate reports whether the file's drawing was already recorded.
func (o Outcome) Duplicate() bool {
	return errors.Is(o.Err, store.ErrDuplicateSession)
}

// Server feeds settled inbox files to a Processor.
type Server struct {
	watcher *Watcher
	proc    Processor
	subject func() string
	logger  *logging.Logger

	// OnOutcome, when set, is called after every processed file.
	OnOutcome func(Outcome)
}

// NewServer creates a Server. subject is consulted for every file so a
// reloaded configuration takes effect without a restart.
func NewServer(w *Watcher, proc Processor, subject func() string, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Server{
		watcher: w,
		proc:    proc,
		subject: subject,
		logger:  logger.WithComponent("watcher"),
	}
}

// Run processes events until ctx is cancelled or the watcher stops.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("watching inbox", "dir", s.watcher.Dir(), "pattern", s.watcher.Pattern())

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-s.watcher.Events():
			if !ok {
				return nil
			}
			out := s.handle(ctx, ev)
			if s.OnOutcome != nil {
				s.OnOutcome(out)
			}

		case err, ok := <-s.watcher.Errors():
			if !ok {
				return nil
			}
			s.logger.Warn("watch error", "error", err)
		}
	}
}

func (s *Server) handle(ctx context.Context, ev Event) Outcome {
	out := Outcome{Event: ev}
	log := s.logger.With("file", filepath.Base(ev.Path))

	raw, err := os.ReadFile(ev.Path)
	if err != nil {
		out.Err = fmt.Errorf("read %s: %w", ev.Path, err)
		log.Error("read failed", "error", err)
		return out
	}

	subject := s.subject()
	reqCtx := logging.ContextWithRequestID(ctx, s.logger.NewRequestID())
	out.Result, out.Err = s.proc.Process(reqCtx, subject, raw)

	switch {
	case out.Err == nil:
		score := 0.0
		if out.Result.Report != nil {
			score = out.Result.Report.AnomalyScore
		}
		log.Info("drawing processed", "subject", subject, "session_id", out.Result.SessionID, "anomaly_score", score)
	case out.Duplicate():
		log.Info("drawing already recorded", "subject", subject)
	default:
		log.Warn("drawing failed", "subject", subject, "error", out.Err)
	}
	return out
}
