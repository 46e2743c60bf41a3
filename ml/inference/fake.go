package inference

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/instanseg/instanseg-go/ml"
)

// FakeRuntime is a ModelRuntime for tests and demos. Predictors it mints
// answer Infer by calling InferFn, so callers can script model behavior
// without a real inference backend. The zero value is usable; unset, minted
// predictors echo their input tensors back.
type FakeRuntime struct {
	// InferFn supplies the answer for every Infer call on minted predictors.
	InferFn func(ctx context.Context, tensors ml.Tensors) (ml.Tensors, error)

	// MintErrFn, when set, is consulted with the 1-based ordinal of each
	// NewPredictor call; a non-nil return fails that mint.
	MintErrFn func(n int) error

	mu     sync.Mutex
	minted int
	open   int
	closed bool
}

// NewPredictor mints a scripted predictor session.
func (f *FakeRuntime) NewPredictor(ctx context.Context) (Predictor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, errors.New("fake runtime is closed")
	}
	f.minted++
	if f.MintErrFn != nil {
		if err := f.MintErrFn(f.minted); err != nil {
			return nil, err
		}
	}
	f.open++
	return &fakePredictor{runtime: f}, nil
}

// Close unloads the fake runtime. It errors if predictors are still open,
// which makes leaked handles visible in tests.
func (f *FakeRuntime) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.open != 0 {
		return errors.Errorf("fake runtime closed with %d predictors still open", f.open)
	}
	f.closed = true
	return nil
}

// MintedCount reports how many NewPredictor calls were attempted.
func (f *FakeRuntime) MintedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.minted
}

// OpenCount reports how many minted predictors have not been closed yet.
func (f *FakeRuntime) OpenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

type fakePredictor struct {
	runtime *FakeRuntime

	mu     sync.Mutex
	closed bool
}

func (p *fakePredictor) Infer(ctx context.Context, tensors ml.Tensors) (ml.Tensors, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, errors.New("inference on a closed fake predictor")
	}
	p.mu.Unlock()
	if fn := p.runtime.InferFn; fn != nil {
		return fn(ctx, tensors)
	}
	out := make(ml.Tensors, len(tensors))
	for name, t := range tensors {
		out[name] = t
	}
	return out, nil
}

func (p *fakePredictor) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("fake predictor closed twice")
	}
	p.closed = true
	p.runtime.mu.Lock()
	p.runtime.open--
	p.runtime.mu.Unlock()
	return nil
}
