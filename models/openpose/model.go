// Package openpose - OpenPose-style multi-person pose model (keypoint heatmaps
// plus part-affinity fields).
package openpose

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/nvr-ai/go-pose/models/model"
	"github.com/nvr-ai/go-pose/models/postprocess"
)

// Params is the set of decoding thresholds consumed by the post-processor.
// They are owned by the configuration layer.
type Params struct {
	// KeypointCount is the number of keypoint types (heatmap channels searched for peaks).
	KeypointCount int `json:"keypoint_count" yaml:"keypoint_count" koanf:"keypointcount"`
	// ConfidenceThreshold is the minimum heatmap value of a peak.
	ConfidenceThreshold float32 `json:"confidence_threshold" yaml:"confidence_threshold" koanf:"confidencethreshold"`
	// MinPeakDistance is the radius, in working pixels, within which weaker peaks are suppressed.
	MinPeakDistance float32 `json:"min_peak_distance" yaml:"min_peak_distance" koanf:"minpeakdistance"`
	// MidPointScoreThreshold is the minimum PAF projection for a sample point to count.
	MidPointScoreThreshold float32 `json:"mid_point_score_threshold" yaml:"mid_point_score_threshold" koanf:"midpointscorethreshold"`
	// FoundMidPointsRatioThreshold is the minimum fraction of counting sample points.
	FoundMidPointsRatioThreshold float32 `json:"found_mid_points_ratio_threshold" yaml:"found_mid_points_ratio_threshold" koanf:"foundmidpointsratiothreshold"`
	// MidPointSamples is the number of PAF samples taken along each candidate limb.
	MidPointSamples int `json:"mid_point_samples" yaml:"mid_point_samples" koanf:"midpointsamples"`
	// MinSubsetScore is the minimum mean score per joint of an emitted pose.
	MinSubsetScore float32 `json:"min_subset_score" yaml:"min_subset_score" koanf:"minsubsetscore"`
	// MinJoints is the minimum number of joints of an emitted pose.
	MinJoints int `json:"min_joints" yaml:"min_joints" koanf:"minjoints"`
	// UpsampleRatio is the integer factor the feature maps are upsampled by.
	UpsampleRatio int `json:"upsample_ratio" yaml:"upsample_ratio" koanf:"upsampleratio"`
	// Stride is the network's output stride relative to its input.
	Stride int `json:"stride" yaml:"stride" koanf:"stride"`
	// Workers bounds the goroutines used by the parallel stages (0 = GOMAXPROCS).
	Workers int `json:"workers" yaml:"workers" koanf:"workers"`
}

// IsOptions marks Params as model options.
func (Params) IsOptions() {}

// DefaultParams returns the thresholds the COCO-18 OpenPose model was tuned with.
//
// Returns:
//   - Params: The default decoding parameters.
//
// @example
// p := DefaultParams()
// p.MinJoints = 5
func DefaultParams() Params {
	return Params{
		KeypointCount:                18,
		ConfidenceThreshold:          0.5,
		MinPeakDistance:              3,
		MidPointScoreThreshold:       0.05,
		FoundMidPointsRatioThreshold: 0.8,
		MidPointSamples:              10,
		MinSubsetScore:               0.2,
		MinJoints:                    3,
		UpsampleRatio:                4,
		Stride:                       8,
		Workers:                      0,
	}
}

// Validate checks every parameter against its valid range.
//
// Returns:
//   - A *model.ConfigurationError naming the first invalid field, or nil.
func (p Params) Validate() error {
	invalid := func(field, reason string) error {
		return &model.ConfigurationError{Field: field, Reason: reason}
	}

	switch {
	case p.KeypointCount < 1:
		return invalid("keypointcount", "must be at least 1")
	case !within(p.ConfidenceThreshold, 0, 1):
		return invalid("confidencethreshold", "must be within [0, 1]")
	case !within(p.MinPeakDistance, 0, math32.MaxFloat32):
		return invalid("minpeakdistance", "must be a non-negative finite distance")
	case !within(p.MidPointScoreThreshold, -math32.MaxFloat32, math32.MaxFloat32):
		return invalid("midpointscorethreshold", "must be finite")
	case !within(p.FoundMidPointsRatioThreshold, 0, 1):
		return invalid("foundmidpointsratiothreshold", "must be within [0, 1]")
	case p.MidPointSamples < 2:
		return invalid("midpointsamples", "must be at least 2")
	case !within(p.MinSubsetScore, 0, math32.MaxFloat32):
		return invalid("minsubsetscore", "must be a non-negative finite score")
	case p.MinJoints < 1 || p.MinJoints > p.KeypointCount:
		return invalid("minjoints", fmt.Sprintf("must be within [1, %d]", p.KeypointCount))
	case p.UpsampleRatio < 1:
		return invalid("upsampleratio", "must be at least 1")
	case p.Stride < 1:
		return invalid("stride", "must be at least 1")
	case p.Workers < 0:
		return invalid("workers", "must not be negative")
	}

	return nil
}

// within reports lo <= v <= hi; NaN is never within.
func within(v, lo, hi float32) bool {
	return v >= lo && v <= hi
}

// OpenPose is the instance of the OpenPose model.
type OpenPose struct {
	options model.BaseModel
	decoder *Decoder
}

// New creates an OpenPose post-processor from explicit parameters and limb table.
//
// Arguments:
//   - params: The decoding parameters.
//   - limbs: The model's limb table.
//   - opts: Optional logger and metrics.
//
// Returns:
//   - The model, or a *model.ConfigurationError.
func New(params Params, limbs []Limb, opts ...Option) (*OpenPose, error) {
	decoder, err := NewDecoder(params, limbs, opts...)
	if err != nil {
		return nil, err
	}
	return &OpenPose{
		options: model.BaseModel{Name: model.ModelNameOpenPose},
		decoder: decoder,
	}, nil
}

// NewModel creates a COCO-18 OpenPose model.
//
// Arguments:
//   - args: The arguments for creating a new model; args.Options may carry Params.
//
// Returns:
//   - The model.
func NewModel(args model.NewModelArgs) (*OpenPose, error) {
	params := DefaultParams()
	if args.Options != nil {
		p, ok := args.Options.(Params)
		if !ok {
			return nil, fmt.Errorf("NewModel requires openpose.Params options, got %T", args.Options)
		}
		params = p
	}

	m, err := New(params, COCOLimbs, WithLogger(args.Logger), WithMetrics(args.Metrics))
	if err != nil {
		return nil, err
	}
	m.options = model.BaseModel{
		Name:    model.ModelNameOpenPose,
		Path:    args.Path,
		Inputs:  args.Inputs,
		Outputs: args.Outputs,
	}
	return m, nil
}

// Options returns the options for the OpenPose model.
func (m *OpenPose) Options() model.BaseModel {
	return m.options
}

// Decoder returns the underlying decoder.
func (m *OpenPose) Decoder() *Decoder {
	return m.decoder
}

// PostProcess decodes one inference output into poses.
func (m *OpenPose) PostProcess(features model.Features) ([]postprocess.Pose, error) {
	return m.decoder.Decode(features)
}
