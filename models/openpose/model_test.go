package openpose

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-pose/models/model"
)

type otherOptions struct{}

func (otherOptions) IsOptions() {}

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Params)
		field  string
	}{
		{name: "defaults", mutate: func(p *Params) {}},
		{name: "zero keypoints", mutate: func(p *Params) { p.KeypointCount = 0 }, field: "keypointcount"},
		{name: "confidence above one", mutate: func(p *Params) { p.ConfidenceThreshold = 1.5 }, field: "confidencethreshold"},
		{name: "confidence NaN", mutate: func(p *Params) { p.ConfidenceThreshold = math32.NaN() }, field: "confidencethreshold"},
		{name: "negative peak distance", mutate: func(p *Params) { p.MinPeakDistance = -1 }, field: "minpeakdistance"},
		{name: "infinite mid point score", mutate: func(p *Params) { p.MidPointScoreThreshold = math32.Inf(1) }, field: "midpointscorethreshold"},
		{name: "ratio above one", mutate: func(p *Params) { p.FoundMidPointsRatioThreshold = 1.01 }, field: "foundmidpointsratiothreshold"},
		{name: "one sample", mutate: func(p *Params) { p.MidPointSamples = 1 }, field: "midpointsamples"},
		{name: "negative subset score", mutate: func(p *Params) { p.MinSubsetScore = -0.1 }, field: "minsubsetscore"},
		{name: "zero joints", mutate: func(p *Params) { p.MinJoints = 0 }, field: "minjoints"},
		{name: "more joints than keypoints", mutate: func(p *Params) { p.MinJoints = 19 }, field: "minjoints"},
		{name: "zero upsample", mutate: func(p *Params) { p.UpsampleRatio = 0 }, field: "upsampleratio"},
		{name: "zero stride", mutate: func(p *Params) { p.Stride = 0 }, field: "stride"},
		{name: "negative workers", mutate: func(p *Params) { p.Workers = -2 }, field: "workers"},
		{name: "zero ratio threshold is valid", mutate: func(p *Params) { p.FoundMidPointsRatioThreshold = 0 }},
		{name: "negative mid point score is valid", mutate: func(p *Params) { p.MidPointScoreThreshold = -0.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			err := p.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var cfgErr *model.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestNewDecoder_RejectsInvalidConfiguration(t *testing.T) {
	p := DefaultParams()
	p.Stride = 0
	_, err := NewDecoder(p, COCOLimbs)
	var cfgErr *model.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)

	p = DefaultParams()
	p.KeypointCount = 10
	_, err = NewDecoder(p, COCOLimbs)
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Field, "limbs[")
}

func TestNewModel(t *testing.T) {
	m, err := NewModel(model.NewModelArgs{
		Name:    model.ModelNameOpenPose,
		Path:    "models/openpose.onnx",
		Inputs:  []string{"data"},
		Outputs: []string{"heatmaps", "pafs"},
	})
	require.NoError(t, err)

	assert.Equal(t, model.ModelNameOpenPose, m.Options().Name)
	assert.Equal(t, "models/openpose.onnx", m.Options().Path)
	assert.Equal(t, DefaultParams(), m.Decoder().Params())
	assert.Equal(t, COCOLimbs, m.Decoder().Limbs())

	var _ model.Model = m
}

func TestNewModel_Options(t *testing.T) {
	p := DefaultParams()
	p.MinJoints = 2
	p.UpsampleRatio = 1
	p.Stride = 1

	m, err := NewModel(model.NewModelArgs{Name: model.ModelNameOpenPose, Options: p})
	require.NoError(t, err)

	poses, err := m.PostProcess(singlePerson())
	require.NoError(t, err)
	assert.Len(t, poses, 1)

	_, err = NewModel(model.NewModelArgs{Name: model.ModelNameOpenPose, Options: otherOptions{}})
	assert.Error(t, err)
}
