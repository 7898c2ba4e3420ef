package inference

import (
	"context"
	"errors"
	"image"
	"io"
	"sync"

	"github.com/nvr-ai/go-pose/models"
	"github.com/nvr-ai/go-pose/models/model"
	"github.com/nvr-ai/go-pose/models/model/preprocess"
)

// Engine estimates the poses in frames.
type Engine interface {
	// Predict estimates the poses in the whole frame.
	Predict(ctx context.Context, img image.Image) ([]Result, error)
	// PredictRegions estimates the poses inside each region of the frame.
	PredictRegions(ctx context.Context, img image.Image, rois []image.Rectangle) ([]Result, error)
	Close() error
}

// EngineBuilder assembles an Engine with a fluent API.
type EngineBuilder struct {
	runner       Runner
	closer       io.Closer
	model        model.Model
	preprocessor *preprocess.Preprocessor
	options      []EstimatorOption
	err          error
}

// NewEngineBuilder creates a new engine builder.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func NewEngineBuilder() *EngineBuilder {
	return &EngineBuilder{}
}

// WithSession loads an onnxruntime session as the engine's runner. The
// engine closes it.
//
// Arguments:
//   - args: The session arguments.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func (b *EngineBuilder) WithSession(args SessionArgs) *EngineBuilder {
	if b.HasError() {
		return b
	}

	session, err := NewSession(args)
	if err != nil {
		b.err = err
		return b
	}
	b.runner = session
	b.closer = session
	return b
}

// WithRunner sets a caller-owned runner.
func (b *EngineBuilder) WithRunner(runner Runner) *EngineBuilder {
	if b.HasError() {
		return b
	}
	b.runner = runner
	return b
}

// WithModel sets the model decoding the network output.
//
// Arguments:
//   - args: The model arguments.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func (b *EngineBuilder) WithModel(args model.NewModelArgs) *EngineBuilder {
	if b.HasError() {
		return b
	}
	m, err := models.NewModel(args)
	if err != nil {
		b.err = err
		return b
	}
	b.model = m
	return b
}

// WithPreprocessor sets the network input layout.
func (b *EngineBuilder) WithPreprocessor(cfg preprocess.Config) *EngineBuilder {
	if b.HasError() {
		return b
	}
	p, err := preprocess.NewPreprocessor(cfg)
	if err != nil {
		b.err = err
		return b
	}
	b.preprocessor = p
	return b
}

// WithEstimatorOptions passes options to the underlying Estimator.
func (b *EngineBuilder) WithEstimatorOptions(opts ...EstimatorOption) *EngineBuilder {
	b.options = append(b.options, opts...)
	return b
}

// HasError checks if the engine builder has errors.
//
// Returns:
//   - bool: True if there are errors, false otherwise.
func (b *EngineBuilder) HasError() bool {
	return b.err != nil
}

// engine implements the Engine interface.
type engine struct {
	mu        sync.Mutex
	estimator *Estimator
	closer    io.Closer
}

// Predict estimates the poses in the whole frame.
//
// Arguments:
//   - ctx: The context for the prediction.
//   - img: The frame.
//
// Returns:
//   - []Result: One pose result per person, in frame pixels.
//   - error: The error if any.
func (e *engine) Predict(ctx context.Context, img image.Image) ([]Result, error) {
	return e.PredictRegions(ctx, img, nil)
}

// PredictRegions estimates the poses inside each region; no regions selects
// the whole frame. Results of the regions that succeeded are returned along
// with the combined errors of those that failed.
func (e *engine) PredictRegions(ctx context.Context, img image.Image, rois []image.Rectangle) ([]Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(rois) == 0 {
		rois = []image.Rectangle{{}}
	}
	for _, roi := range rois {
		if err := e.estimator.Enqueue(img, roi); err != nil {
			e.estimator.Discard()
			return nil, err
		}
	}
	err := e.estimator.Submit(ctx)
	return e.estimator.Results(), err
}

func (e *engine) Close() error {
	if e.closer == nil {
		return nil
	}
	return e.closer.Close()
}

// MustBuild builds the engine and panics if there is an error.
//
// Returns:
//   - Engine: The engine.
func (b *EngineBuilder) MustBuild() Engine {
	e, err := b.Build()
	if err != nil {
		panic(err)
	}
	return e
}

// Build builds the engine.
//
// Returns:
//   - Engine: The engine.
//   - error: The error if any.
func (b *EngineBuilder) Build() (Engine, error) {
	if b.HasError() {
		return nil, b.err
	}
	if b.runner == nil {
		return nil, errors.New("runner not configured")
	}
	if b.model == nil {
		return nil, errors.New("model not configured")
	}
	if b.preprocessor == nil {
		return nil, errors.New("preprocessor not configured")
	}

	estimator, err := NewEstimator(b.runner, b.model, b.preprocessor, b.options...)
	if err != nil {
		return nil, err
	}
	return &engine{estimator: estimator, closer: b.closer}, nil
}
