// Package model - Definitions shared by every pose model.
package model

import (
	"go.uber.org/zap"

	"github.com/nvr-ai/go-pose/models/postprocess"
	"github.com/nvr-ai/go-pose/profiler"
)

// Name is the unique identifier of a model.
type Name string

const (
	// ModelNameOpenPose is the name of the OpenPose (heatmap + PAF) model.
	ModelNameOpenPose Name = "openpose"
)

// BaseModel is the base model for all models.
type BaseModel struct {
	Name    Name
	Path    string
	Inputs  []string
	Outputs []string
}

// Options is a marker interface for model-specific options.
type Options interface {
	IsOptions()
}

// PostProcessor turns the raw network output of one inference into poses
// expressed in network-input pixels.
type PostProcessor interface {
	PostProcess(features Features) ([]postprocess.Pose, error)
}

// Model is a model with a name and path for loading.
type Model interface {
	PostProcessor
	Options() BaseModel
}

// NewModelArgs is the arguments for creating a new model.
type NewModelArgs struct {
	Name    Name     `json:"name" yaml:"name"`
	Path    string   `json:"path" yaml:"path"`
	Inputs  []string `json:"inputs" yaml:"inputs"`
	Outputs []string `json:"outputs" yaml:"outputs"`
	// Options carries the model-specific decoding parameters; nil selects defaults.
	Options Options `json:"-" yaml:"-"`
	// Logger receives decode diagnostics; nil disables logging.
	Logger *zap.Logger `json:"-" yaml:"-"`
	// Metrics receives decode observations; nil disables metrics.
	Metrics *profiler.Metrics `json:"-" yaml:"-"`
}
