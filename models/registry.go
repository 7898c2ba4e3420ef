package models

import (
	"fmt"

	"github.com/nvr-ai/go-pose/models/model"
	"github.com/nvr-ai/go-pose/models/openpose"
)

// NewModel creates a new pose model instance based on the specified model name.
//
// The factory keeps model creation centralized so new pose decoders can be
// added without touching the inference or capture code.
//
// Arguments:
//   - args: Configuration parameters specifying the model type, location and options.
//
// Returns:
//   - model.Model: A fully configured model instance.
//   - error: An error if the model name is unsupported or its options are invalid.
//
// Example:
//
//	m, err := NewModel(model.NewModelArgs{
//	    Name:    model.ModelNameOpenPose,
//	    Path:    "/models/human-pose-estimation.onnx",
//	    Options: openpose.DefaultParams(),
//	})
func NewModel(args model.NewModelArgs) (model.Model, error) {
	switch args.Name {
	case model.ModelNameOpenPose:
		m, err := openpose.NewModel(args)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported model name: %s", args.Name)
	}
}
