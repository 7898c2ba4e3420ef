package inference

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-pose/images"
	"github.com/nvr-ai/go-pose/models/model"
	"github.com/nvr-ai/go-pose/models/model/preprocess"
	"github.com/nvr-ai/go-pose/models/postprocess"
	"github.com/nvr-ai/go-pose/profiler"
)

// Runner executes the network on one preprocessed input. *Session is the
// onnxruntime implementation.
type Runner interface {
	Run(input []float32) (model.Features, error)
}

// ErrBatchFull is returned by Enqueue once MaxBatch regions are pending.
var ErrBatchFull = errors.New("estimator batch is full")

type request struct {
	crop image.Image
	roi  image.Rectangle
}

// Estimator runs pose estimation over regions of interest of a frame. Regions
// are queued with Enqueue, processed by Submit and read back through Results
// until the next Submit replaces them.
type Estimator struct {
	runner       Runner
	model        model.PostProcessor
	preprocessor *preprocess.Preprocessor
	logger       *zap.Logger
	profiler     *profiler.RuntimeProfiler
	maxBatch     int

	mu      sync.Mutex
	queue   []request
	results []Result
}

// EstimatorOption configures an Estimator.
type EstimatorOption func(*Estimator)

// WithLogger sets the logger receiving per-region failures.
func WithLogger(logger *zap.Logger) EstimatorOption {
	return func(e *Estimator) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithProfiler times the preprocess, inference and decode stages.
func WithProfiler(p *profiler.RuntimeProfiler) EstimatorOption {
	return func(e *Estimator) {
		e.profiler = p
	}
}

// WithMaxBatch bounds the number of pending regions (0 = unbounded).
func WithMaxBatch(n int) EstimatorOption {
	return func(e *Estimator) {
		e.maxBatch = n
	}
}

// NewEstimator creates an estimator.
//
// Arguments:
//   - runner: Executes the network.
//   - pp: Decodes the network output into poses.
//   - pre: Converts regions into network input.
//   - opts: Optional logger, profiler and batch bound.
//
// Returns:
//   - *Estimator: The estimator.
//   - error: An error if a collaborator is missing.
func NewEstimator(runner Runner, pp model.PostProcessor, pre *preprocess.Preprocessor, opts ...EstimatorOption) (*Estimator, error) {
	switch {
	case runner == nil:
		return nil, errors.New("runner not configured")
	case pp == nil:
		return nil, errors.New("post-processor not configured")
	case pre == nil:
		return nil, errors.New("preprocessor not configured")
	}

	e := &Estimator{
		runner:       runner,
		model:        pp,
		preprocessor: pre,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Enqueue adds a region of a frame to the pending batch.
//
// Arguments:
//   - frame: The full frame.
//   - roi: The region to estimate poses in; the empty rectangle selects the whole frame.
//
// Returns:
//   - error: ErrBatchFull, or an error if the region misses the frame.
func (e *Estimator) Enqueue(frame image.Image, roi image.Rectangle) error {
	crop, clipped, err := PrepareInput(frame, roi)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.maxBatch > 0 && len(e.queue) >= e.maxBatch {
		return ErrBatchFull
	}
	e.queue = append(e.queue, request{crop: crop, roi: clipped})
	return nil
}

// Pending returns the number of queued regions.
func (e *Estimator) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// Discard drops the pending regions.
func (e *Estimator) Discard() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queue = nil
}

// Submit processes every pending region and replaces the previous results.
// A failing region is skipped; its error is combined into the returned error
// and the remaining regions are still processed.
//
// Arguments:
//   - ctx: Cancels the batch between regions.
//
// Returns:
//   - error: The combined per-region errors, or the context error.
func (e *Estimator) Submit(ctx context.Context) error {
	e.mu.Lock()
	queue := e.queue
	e.queue = nil
	e.mu.Unlock()

	batch := uuid.New()
	var (
		results []Result
		errs    error
	)
	for i, req := range queue {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}

		poses, geometry, err := e.estimate(req.crop)
		if err != nil {
			e.logger.Warn("pose estimation failed",
				zap.Stringer("batch", batch),
				zap.Int("request", i),
				zap.Stringer("roi", req.roi),
				zap.Error(err),
			)
			errs = multierr.Append(errs, fmt.Errorf("roi %d %v: %w", i, req.roi, err))
			continue
		}

		for _, pose := range poses {
			framed := ToFrame(pose, geometry, req.roi.Min)
			results = append(results, Result{
				Kind:     KindPose,
				Batch:    batch,
				Request:  i,
				ROI:      req.roi,
				Location: framed.Box.ToRectangle(),
				Pose:     framed,
			})
		}
	}

	e.mu.Lock()
	e.results = results
	e.mu.Unlock()

	e.logger.Debug("pose batch complete",
		zap.Stringer("batch", batch),
		zap.Int("requests", len(queue)),
		zap.Int("results", len(results)),
	)
	return errs
}

func (e *Estimator) estimate(crop image.Image) ([]postprocess.Pose, preprocess.Geometry, error) {
	done := e.stage("preprocess")
	input, err := e.preprocessor.Preprocess(crop)
	done()
	if err != nil {
		return nil, preprocess.Geometry{}, err
	}

	done = e.stage("inference")
	features, err := e.runner.Run(input.Data)
	done()
	if err != nil {
		return nil, preprocess.Geometry{}, err
	}

	done = e.stage("decode")
	poses, err := e.model.PostProcess(features)
	done()
	if err != nil {
		return nil, preprocess.Geometry{}, err
	}
	return poses, input.Geometry, nil
}

func (e *Estimator) stage(name string) func() {
	if e.profiler == nil {
		return func() {}
	}
	return e.profiler.StartOperation(name)
}

// Results returns a copy of the results of the last Submit.
func (e *Estimator) Results() []Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Result(nil), e.results...)
}

// ResultsLength returns the number of results of the last Submit.
func (e *Estimator) ResultsLength() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.results)
}

// Result returns the result at idx.
func (e *Estimator) Result(idx int) (Result, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if idx < 0 || idx >= len(e.results) {
		return Result{}, false
	}
	return e.results[idx], true
}

// FilteredROIs returns the locations of the poses scoring at least minScore,
// in result order. They can be enqueued into a downstream estimator.
func (e *Estimator) FilteredROIs(minScore float32) []image.Rectangle {
	e.mu.Lock()
	defer e.mu.Unlock()

	var rois []image.Rectangle
	for _, r := range e.results {
		if r.Kind == KindPose && r.Pose.Score >= minScore && !r.Location.Empty() {
			rois = append(rois, r.Location)
		}
	}
	return rois
}

// ToFrame maps a pose from network-input pixels into frame pixels.
//
// Arguments:
//   - pose: The decoded pose.
//   - g: The geometry the region was preprocessed with.
//   - origin: The top-left corner of the region in the frame.
//
// Returns:
//   - The pose with keypoints and box in frame pixels.
func ToFrame(pose postprocess.Pose, g preprocess.Geometry, origin image.Point) postprocess.Pose {
	out := pose
	out.Keypoints = make([]postprocess.Keypoint, len(pose.Keypoints))

	xs := make([]float32, 0, pose.Joints)
	ys := make([]float32, 0, pose.Joints)
	for i, kp := range pose.Keypoints {
		if kp.Present {
			x, y := g.ToSource(kp.X, kp.Y)
			kp.X = x + float32(origin.X)
			kp.Y = y + float32(origin.Y)
			xs = append(xs, kp.X)
			ys = append(ys, kp.Y)
		}
		out.Keypoints[i] = kp
	}
	out.Box = images.BoundingRect(xs, ys)
	return out
}
