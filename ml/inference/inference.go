// Package inference defines the predictor capability interface and the warm
// predictor pool that bounds concurrent calls into a model runtime.
package inference

import (
	"context"

	"github.com/instanseg/instanseg-go/ml"
)

// A Predictor is one warmed-up inference session over a loaded model. A
// predictor holds mutable session state, so it has exactly one borrower at a
// time; the Pool enforces that discipline.
type Predictor interface {
	// Infer runs the model on the named input tensors and returns the named
	// output tensors.
	Infer(ctx context.Context, tensors ml.Tensors) (ml.Tensors, error)

	// Close releases the session and any device memory behind it.
	Close() error
}

// A ModelRuntime is a model loaded into an inference backend on some device.
// It mints independent predictor sessions; construction cost lives here, so
// runtimes should be built once per run and shared through a Pool.
type ModelRuntime interface {
	// NewPredictor builds one warm predictor session.
	NewPredictor(ctx context.Context) (Predictor, error)

	// Close unloads the model. All predictors minted from the runtime must be
	// closed first.
	Close() error
}
