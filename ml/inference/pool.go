package inference

import (
	"context"
	"sync"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

var (
	// ErrPoolClosed is returned by Acquire once Close has begun.
	ErrPoolClosed = errors.New("predictor pool is closed")

	// ErrPoolExhausted is returned by Acquire when every predictor in the
	// pool has been discarded as broken.
	ErrPoolExhausted = errors.New("predictor pool has no live predictors left")
)

// Pool is a fixed-size pool of warm predictors. Workers borrow a predictor
// with Acquire, run inference, and hand it back with Release; a handle has
// exactly one borrower at a time. The pool bounds concurrent calls into the
// model runtime to its capacity no matter how many workers ask.
type Pool struct {
	logger golog.Logger
	free   chan Predictor

	mu        sync.Mutex
	live      int
	closed    bool
	exhausted chan struct{}
}

// NewPool builds size warm predictors from the runtime up front. If any
// predictor fails to construct, the ones already built are closed and the
// error is returned; a pool that cannot be constructed is fatal to the run
// that wanted it. A size of zero or less falls back to one predictor.
func NewPool(ctx context.Context, runtime ModelRuntime, size int, logger golog.Logger) (*Pool, error) {
	if size <= 0 {
		size = 1
	}
	p := &Pool{
		logger:    logger,
		free:      make(chan Predictor, size),
		live:      size,
		exhausted: make(chan struct{}),
	}
	for i := 0; i < size; i++ {
		pred, err := runtime.NewPredictor(ctx)
		if err != nil {
			err = errors.Wrapf(err, "failed to build predictor %d of %d", i+1, size)
			for j := 0; j < i; j++ {
				err = multierr.Combine(err, (<-p.free).Close())
			}
			return nil, err
		}
		p.free <- pred
	}
	logger.Debugw("predictor pool ready", "size", size)
	return p, nil
}

// Acquire borrows a predictor, blocking until one is free or ctx is done.
// The borrower must hand the predictor back with Release or Discard.
func (p *Pool) Acquire(ctx context.Context) (Predictor, error) {
	p.mu.Lock()
	closed, live := p.closed, p.live
	p.mu.Unlock()
	if closed {
		return nil, ErrPoolClosed
	}
	if live <= 0 {
		return nil, ErrPoolExhausted
	}

	select {
	case pred := <-p.free:
		return pred, nil
	case <-p.exhausted:
		return nil, ErrPoolExhausted
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a borrowed predictor to the pool.
func (p *Pool) Release(pred Predictor) {
	if pred == nil {
		return
	}
	p.free <- pred
}

// Discard removes a broken predictor from the pool instead of returning it,
// shrinking capacity. If a drain is already underway the handle is passed to
// it untouched so teardown accounting stays exact.
func (p *Pool) Discard(pred Predictor) {
	if pred == nil {
		return
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.free <- pred
		return
	}
	p.live--
	if p.live == 0 {
		close(p.exhausted)
	}
	live := p.live
	p.mu.Unlock()

	if err := pred.Close(); err != nil {
		p.logger.Errorw("failed to close discarded predictor", "error", err)
	}
	p.logger.Debugw("discarded broken predictor", "live", live)
}

// Close drains the pool and closes every predictor. Borrowed handles are
// waited for, not interrupted; in-flight borrowers finish and hand their
// handles back before Close returns. Close is idempotent and must run on
// every exit path of a run. If ctx ends mid-drain the remaining handles are
// abandoned and ctx's error is returned alongside any close errors.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	live := p.live
	p.mu.Unlock()

	var err error
	for i := 0; i < live; i++ {
		select {
		case pred := <-p.free:
			err = multierr.Combine(err, pred.Close())
		case <-ctx.Done():
			p.logger.Warnw("abandoning predictor pool drain", "waiting", live-i)
			return multierr.Combine(err, ctx.Err())
		}
	}
	p.logger.Debugw("predictor pool drained", "closed", live)
	return err
}
