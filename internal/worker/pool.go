package worker

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/jmylchreest/transcribecore/internal/models"
)

// Pool bounds concurrent Segment Worker execution. The pool size may
// exceed the ASR Adapter's effective parallelism (its internal mutex
// serializes transcription calls anyway); that is fine.
type Pool struct {
	worker *Worker
	sem    *semaphore.Weighted
}

// NewPool creates a Pool that runs at most size segments concurrently.
func NewPool(w *Worker, size int64) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{worker: w, sem: semaphore.NewWeighted(size)}
}

// RunAll submits segmentIDs to the pool in order and waits for every
// outcome. A segment-level rejection (validation/precondition) or
// unexpected infrastructure error is captured in its Result rather than
// aborting the other in-flight segments — only a context cancellation
// that predates submission short-circuits the batch.
func (p *Pool) RunAll(ctx context.Context, segmentIDs []models.ULID) ([]Result, error) {
	results := make([]Result, len(segmentIDs))

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range segmentIDs {
		i, id := i, id
		if err := p.sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("acquiring worker slot: %w", err)
		}
		g.Go(func() error {
			defer p.sem.Release(1)
			res, err := p.worker.RunSegment(gctx, id)
			if err != nil {
				results[i] = Result{SegmentID: id, Cause: err}
				return nil
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, fmt.Errorf("running segment pool: %w", err)
	}
	return results, nil
}

// RunOne submits exactly one segment and blocks until it completes,
// honoring the pool's concurrency bound. Used by the on-demand
// single-segment re-drive; recovery dispatch goes through RunAll.
func (p *Pool) RunOne(ctx context.Context, segmentID models.ULID) (Result, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return Result{}, fmt.Errorf("acquiring worker slot: %w", err)
	}
	defer p.sem.Release(1)
	return p.worker.RunSegment(ctx, segmentID)
}
