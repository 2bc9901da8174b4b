// Package worker runs the polling worker pool: it pulls pending sessions
// from the store, dispatches each to the pipeline, and periodically sweeps
// sessions whose worker stopped heartbeating.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/resume-tailor/internal/pipeline"
	"github.com/jonathan/resume-tailor/internal/session"
	"github.com/jonathan/resume-tailor/internal/store"
	"github.com/jonathan/resume-tailor/internal/types"
)

// DefaultSweepInterval is how often stuck sessions are swept.
const DefaultSweepInterval = time.Minute

// Options tunes the pool. Zero values select defaults.
type Options struct {
	Workers       int
	PollInterval  time.Duration
	SweepInterval time.Duration

	// WorkerID prefixes the per-goroutine claim identity. Defaults to the
	// hostname so claims are attributable across deployments.
	WorkerID string
}

// Pool polls for pending sessions and processes them concurrently.
type Pool struct {
	runner    *pipeline.Runner
	lifecycle *session.Lifecycle
	store     store.Store
	logger    *zap.Logger
	opts      Options

	mu       sync.Mutex
	inFlight map[uuid.UUID]bool
}

// NewPool builds a Pool.
func NewPool(runner *pipeline.Runner, lc *session.Lifecycle, st store.Store, logger *zap.Logger, opts Options) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.WorkerID == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "tailor"
		}
		opts.WorkerID = host
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		runner:    runner,
		lifecycle: lc,
		store:     st,
		logger:    logger,
		opts:      opts,
		inFlight:  make(map[uuid.UUID]bool),
	}
}

// Run blocks until ctx is canceled. Workers finish their current session
// before exiting; a canceled context is a clean shutdown, not an error.
func (p *Pool) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	// Buffered so the dispatcher can stay ahead of the workers by one
	// poll batch without blocking.
	queue := make(chan uuid.UUID, p.opts.Workers*2)

	g.Go(func() error {
		defer close(queue)
		return p.dispatch(gCtx, queue)
	})

	for i := 0; i < p.opts.Workers; i++ {
		workerID := fmt.Sprintf("%s-%d", p.opts.WorkerID, i)
		g.Go(func() error {
			return p.work(gCtx, workerID, queue)
		})
	}

	g.Go(func() error {
		return p.sweep(gCtx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// dispatch polls the pending queue and feeds session ids to the workers.
func (p *Pool) dispatch(ctx context.Context, queue chan<- uuid.UUID) error {
	ticker := time.NewTicker(p.opts.PollInterval)
	defer ticker.Stop()

	for {
		sessions, err := p.store.ListByStatus(ctx, types.StatusPending, p.opts.Workers*2)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Warn("poll failed", zap.Error(err))
		}
		for _, sess := range sessions {
			if !p.markInFlight(sess.ID) {
				continue
			}
			select {
			case queue <- sess.ID:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// work processes queued sessions until the queue closes or ctx ends.
func (p *Pool) work(ctx context.Context, workerID string, queue <-chan uuid.UUID) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case id, ok := <-queue:
			if !ok {
				return nil
			}
			p.process(ctx, workerID, id)
		}
	}
}

func (p *Pool) process(ctx context.Context, workerID string, id uuid.UUID) {
	defer p.clearInFlight(id)

	err := p.runner.Process(ctx, id, workerID)
	switch {
	case err == nil:
	case errors.As(err, new(*types.ConcurrencyConflict)):
		// Another worker won the claim; nothing to do.
	case errors.Is(err, context.Canceled):
		// Shutdown mid-session; the sweeper will reclaim it.
		p.logger.Info("session interrupted by shutdown",
			zap.String("session_id", id.String()))
	default:
		// The runner already finalized the session as failed; the error
		// is logged here only for worker-level visibility.
		p.logger.Warn("session processing failed",
			zap.String("session_id", id.String()),
			zap.String("worker_id", workerID),
			zap.Error(err))
	}
}

// sweep periodically fails sessions whose worker stopped heartbeating.
func (p *Pool) sweep(ctx context.Context) error {
	ticker := time.NewTicker(p.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			swept, err := p.lifecycle.SweepStuck(ctx)
			if err != nil {
				p.logger.Warn("stuck sweep failed", zap.Error(err))
				continue
			}
			if swept > 0 {
				p.logger.Info("swept stuck sessions", zap.Int("count", swept))
			}
		}
	}
}

func (p *Pool) markInFlight(id uuid.UUID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inFlight[id] {
		return false
	}
	p.inFlight[id] = true
	return true
}

func (p *Pool) clearInFlight(id uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, id)
}
