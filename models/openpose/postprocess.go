package openpose

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-pose/common"
	"github.com/nvr-ai/go-pose/images"
	"github.com/nvr-ai/go-pose/models/model"
	"github.com/nvr-ai/go-pose/models/postprocess"
	"github.com/nvr-ai/go-pose/profiler"
)

// Decoder turns heatmaps and part-affinity fields into poses. It holds no
// per-inference state and is safe for concurrent use.
type Decoder struct {
	params  Params
	limbs   []Limb
	logger  *zap.Logger
	metrics *profiler.Metrics
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithLogger sets the logger receiving decode diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Decoder) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics sets the metrics receiving decode observations.
func WithMetrics(metrics *profiler.Metrics) Option {
	return func(d *Decoder) {
		d.metrics = metrics
	}
}

// NewDecoder validates the parameters and limb table and returns a decoder.
//
// Arguments:
//   - params: The decoding parameters.
//   - limbs: The limb table.
//   - opts: Optional logger and metrics.
//
// Returns:
//   - The decoder, or a *model.ConfigurationError.
func NewDecoder(params Params, limbs []Limb, opts ...Option) (*Decoder, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateLimbs(limbs, params.KeypointCount); err != nil {
		return nil, err
	}

	d := &Decoder{
		params: params,
		limbs:  append([]Limb(nil), limbs...),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Params returns the decoder's parameters.
func (d *Decoder) Params() Params {
	return d.params
}

// Limbs returns a copy of the decoder's limb table.
func (d *Decoder) Limbs() []Limb {
	return append([]Limb(nil), d.limbs...)
}

// Resample upsamples every channel of the features by an integer ratio,
// one channel per worker. The input is not modified.
//
// Arguments:
//   - features: The raw network output.
//   - ratio: The upsample ratio.
//   - workers: The maximum number of goroutines (0 = GOMAXPROCS).
//
// Returns:
//   - The working-resolution features.
func Resample(features model.Features, ratio, workers int) model.Features {
	upsample := func(in []model.FeatureTensor) []model.FeatureTensor {
		if in == nil {
			return nil
		}
		out := make([]model.FeatureTensor, len(in))
		common.ForEach(len(in), workers, func(i int) {
			data, w, h := images.UpsamplePlane(in[i].Data, in[i].Width, in[i].Height, ratio)
			out[i] = model.FeatureTensor{Name: in[i].Name, Width: w, Height: h, Data: data}
		})
		return out
	}

	return model.Features{
		Heatmaps: upsample(features.Heatmaps),
		PAFs:     upsample(features.PAFs),
	}
}

// Decode runs the full pipeline on one inference output.
//
// Empty features decode to no poses and no error. Channels beyond
// KeypointCount (the background channel) are ignored.
//
// Arguments:
//   - features: The raw network output.
//
// Returns:
//   - The poses in network-input pixels, or an error wrapping a
//     *model.ShapeMismatchError.
//
// @example
// poses, err := decoder.Decode(model.Features{Heatmaps: heat, PAFs: pafs})
func (d *Decoder) Decode(features model.Features) ([]postprocess.Pose, error) {
	if features.Empty() {
		return nil, nil
	}

	start := time.Now()
	poses, peaks, err := d.decode(features)
	if err != nil {
		d.logger.Warn("pose decode failed", zap.Error(err))
		d.metrics.ObserveFailure()
		return nil, err
	}

	elapsed := time.Since(start)
	d.metrics.ObserveDecode(elapsed, peaks, len(poses))
	d.logger.Debug("pose decode complete",
		zap.Int("peaks", peaks),
		zap.Int("poses", len(poses)),
		zap.Duration("elapsed", elapsed),
	)
	return poses, nil
}

func (d *Decoder) decode(features model.Features) ([]postprocess.Pose, int, error) {
	if err := d.checkShapes(features); err != nil {
		return nil, 0, err
	}

	p := d.params
	source := model.Features{
		Heatmaps: features.Heatmaps[:p.KeypointCount],
		PAFs:     features.PAFs,
	}
	working := Resample(source, p.UpsampleRatio, p.Workers)

	table := AssignPeakIDs(FindPeaks(working.Heatmaps, p.MinPeakDistance, p.ConfidenceThreshold, p.Workers))
	if table.Len() == 0 {
		return nil, 0, nil
	}

	connections := ScoreLimbs(working.PAFs, table, d.limbs, p)
	subsets := Assemble(connections, table.All, d.limbs, p.KeypointCount, p.MinJoints, p.MinSubsetScore)
	return Materialize(subsets, table.All, p.Stride, p.UpsampleRatio), table.Len(), nil
}

func (d *Decoder) checkShapes(features model.Features) error {
	if err := features.Validate(); err != nil {
		return errors.Wrap(err, "decode")
	}

	if len(features.Heatmaps) < d.params.KeypointCount {
		return errors.Wrap(&model.ShapeMismatchError{
			Tensor: "heatmaps",
			Reason: fmt.Sprintf("%d channels, expected at least %d", len(features.Heatmaps), d.params.KeypointCount),
		}, "decode")
	}

	for k, l := range d.limbs {
		if l.PAFX >= len(features.PAFs) || l.PAFY >= len(features.PAFs) {
			return errors.Wrap(&model.ShapeMismatchError{
				Tensor: "pafs",
				Reason: fmt.Sprintf("%d channels, limb %d needs channels %d and %d", len(features.PAFs), k, l.PAFX, l.PAFY),
			}, "decode")
		}
	}
	return nil
}
