// Package dispatch runs matching asynchronously, off the submitter's request path.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/lostlink/matcher/internal/logger"
	"github.com/lostlink/matcher/internal/metrics"
	"github.com/lostlink/matcher/internal/usecase/matching"
)

// ErrClosed is returned for submissions after Close.
var ErrClosed = errors.New("dispatcher closed")

// Runner executes one matching run.
type Runner interface {
	Run(ctx context.Context, itemID string) (matching.Result, error)
}

// Outcome is delivered once per submission.
type Outcome struct {
	ItemID string
	Result matching.Result
	Err    error
	// Shared is true when the run was joined with a concurrent submission for the same item.
	Shared bool
}

// Dispatcher bounds concurrent runs and collapses duplicate submissions for one item.
type Dispatcher struct {
	runner  Runner
	sem     *semaphore.Weighted
	group   singleflight.Group
	timeout time.Duration
	logger  *zap.Logger

	base   context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New creates a dispatcher running at most workers runs at once, each bounded by timeout.
func New(runner Runner, workers int, timeout time.Duration, log *zap.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	base, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		runner:  runner,
		sem:     semaphore.NewWeighted(int64(workers)),
		timeout: timeout,
		logger:  log,
		base:    logger.ContextWithLogger(base, log),
		cancel:  cancel,
	}
}

// Submit schedules a run for itemID and returns immediately.
// The returned channel receives exactly one Outcome and is never closed early;
// callers that do not care may drop it.
func (d *Dispatcher) Submit(itemID string) <-chan Outcome {
	out := make(chan Outcome, 1)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		out <- Outcome{ItemID: itemID, Err: ErrClosed}
		return out
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		v, err, shared := d.group.Do(itemID, func() (any, error) {
			return d.run(itemID)
		})
		res, _ := v.(matching.Result)
		out <- Outcome{ItemID: itemID, Result: res, Err: err, Shared: shared}
	}()
	return out
}

func (d *Dispatcher) run(itemID string) (matching.Result, error) {
	if err := d.sem.Acquire(d.base, 1); err != nil {
		return matching.Result{}, fmt.Errorf("acquire worker for %s: %w", itemID, err)
	}
	defer d.sem.Release(1)

	metrics.MatchQueueInFlight.Inc()
	defer metrics.MatchQueueInFlight.Dec()

	ctx := d.base
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	res, err := d.runner.Run(ctx, itemID)
	if err != nil {
		d.logger.Error("Async match run failed", zap.String("item_id", itemID), zap.Error(err))
	}
	return res, err
}

// Close stops accepting submissions and waits for in-flight runs.
// If ctx expires first, remaining runs are cancelled and ctx.Err() is returned.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return fmt.Errorf("dispatcher close: %w", ctx.Err())
	}
}
