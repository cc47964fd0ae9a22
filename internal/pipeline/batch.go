package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds batch extraction when the config leaves it unset.
const DefaultConcurrency = 4

// Item is one drawing submitted in a batch.
type Item struct {
	// Name identifies the item in results and logs, usually a file name.
	Name    string
	Subject string
	Data    []byte
}

// BatchResult is the outcome of one batch item. Exactly one of Result and
// Err is set.
type BatchResult struct {
	Name   string
	Result *Result
	Err    error
}

// Batch extracts every item concurrently, then records and scores them one
// at a time in input order, so each session is scored against the ones
// submitted before it. A failing item does not stop the batch; the
// returned error is non-nil only when ctx is cancelled.
func (p *Pipeline) Batch(ctx context.Context, items []Item) ([]BatchResult, error) {
	concurrency := p.Config().Extraction.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	log := p.log(ctx)
	log.Info("starting batch", "items", len(items), "concurrency", concurrency)
	start := time.Now()

	results := make([]BatchResult, len(items))
	extractions := make([]*Extraction, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, item := range items {
		results[i].Name = item.Name
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			ex, err := p.Extract(item.Data)
			if err != nil {
				// Recorded per item; the rest of the batch continues.
				results[i].Err = err
				return nil
			}
			extractions[i] = ex
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}

	for i, item := range items {
		if results[i].Err != nil {
			log.Warn("batch item rejected", "item", item.Name, "error", results[i].Err)
			continue
		}
		if item.Subject == "" {
			results[i].Err = ErrNoSubject
			continue
		}
		res, err := p.Record(ctx, item.Subject, extractions[i])
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return results, ctxErr
			}
			results[i].Err = err
			continue
		}
		results[i].Result = res
	}

	log.Info("batch complete", "items", len(items), "elapsed", time.Since(start))
	return results, nil
}
