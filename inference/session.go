// Package inference - Inference sessions and the pose estimator.
package inference

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-pose/inference/providers"
	"github.com/nvr-ai/go-pose/models/model"
)

// SessionArgs describes the network a Session runs.
type SessionArgs struct {
	// ModelPath is the ONNX model file.
	ModelPath string `json:"modelPath" yaml:"modelPath" koanf:"modelpath"`
	// LibraryPath is the onnxruntime shared library; empty selects the platform default.
	LibraryPath string `json:"libraryPath" yaml:"libraryPath" koanf:"librarypath"`
	// InputName is the image input of the graph.
	InputName string `json:"inputName" yaml:"inputName" koanf:"inputname"`
	// HeatmapOutput is the keypoint heatmap output of the graph.
	HeatmapOutput string `json:"heatmapOutput" yaml:"heatmapOutput" koanf:"heatmapoutput"`
	// PAFOutput is the part-affinity field output of the graph.
	PAFOutput string `json:"pafOutput" yaml:"pafOutput" koanf:"pafoutput"`
	// InputWidth and InputHeight are the network input dimensions.
	InputWidth  int `json:"inputWidth" yaml:"inputWidth" koanf:"inputwidth"`
	InputHeight int `json:"inputHeight" yaml:"inputHeight" koanf:"inputheight"`
	// HeatmapChannels counts keypoint channels including background.
	HeatmapChannels int `json:"heatmapChannels" yaml:"heatmapChannels" koanf:"heatmapchannels"`
	// PAFChannels counts PAF channels (two per limb).
	PAFChannels int `json:"pafChannels" yaml:"pafChannels" koanf:"pafchannels"`
	// Stride is the ratio of input to output resolution.
	Stride int `json:"stride" yaml:"stride" koanf:"stride"`
	// Provider selects the execution provider.
	Provider providers.Config `json:"provider" yaml:"provider" koanf:"provider"`
}

// DefaultSessionArgs returns the layout of the OpenVINO
// human-pose-estimation-0001 network exported to ONNX.
func DefaultSessionArgs(modelPath string) SessionArgs {
	return SessionArgs{
		ModelPath:       modelPath,
		InputName:       "data",
		HeatmapOutput:   "Mconv7_stage2_L2",
		PAFOutput:       "Mconv7_stage2_L1",
		InputWidth:      456,
		InputHeight:     256,
		HeatmapChannels: 19,
		PAFChannels:     38,
		Stride:          8,
		Provider:        providers.DefaultConfig(),
	}
}

// Validate checks that the tensor layout is consistent.
func (a SessionArgs) Validate() error {
	switch {
	case a.ModelPath == "":
		return &model.ConfigurationError{Field: "modelpath", Reason: "must be set"}
	case a.InputName == "" || a.HeatmapOutput == "" || a.PAFOutput == "":
		return &model.ConfigurationError{Field: "inputname", Reason: "input and output names must be set"}
	case a.InputWidth <= 0 || a.InputHeight <= 0:
		return &model.ConfigurationError{Field: "inputwidth", Reason: fmt.Sprintf("invalid input size %dx%d", a.InputWidth, a.InputHeight)}
	case a.Stride <= 0 || a.InputWidth%a.Stride != 0 || a.InputHeight%a.Stride != 0:
		return &model.ConfigurationError{Field: "stride", Reason: fmt.Sprintf("%d must divide the input size %dx%d", a.Stride, a.InputWidth, a.InputHeight)}
	case a.HeatmapChannels <= 0:
		return &model.ConfigurationError{Field: "heatmapchannels", Reason: "must be >= 1"}
	case a.PAFChannels <= 0 || a.PAFChannels%2 != 0:
		return &model.ConfigurationError{Field: "pafchannels", Reason: "must be a positive multiple of 2"}
	}
	return nil
}

// InputShape is the [1, 3, H, W] input tensor shape.
func (a SessionArgs) InputShape() ort.Shape {
	return ort.NewShape(1, 3, int64(a.InputHeight), int64(a.InputWidth))
}

// HeatmapShape is the [1, C, H/stride, W/stride] heatmap tensor shape.
func (a SessionArgs) HeatmapShape() ort.Shape {
	return ort.NewShape(1, int64(a.HeatmapChannels), int64(a.InputHeight/a.Stride), int64(a.InputWidth/a.Stride))
}

// PAFShape is the [1, C, H/stride, W/stride] PAF tensor shape.
func (a SessionArgs) PAFShape() ort.Shape {
	return ort.NewShape(1, int64(a.PAFChannels), int64(a.InputHeight/a.Stride), int64(a.InputWidth/a.Stride))
}

// Session represents a pose network session from the onnxruntime. Run
// serializes access to the bound tensors.
type Session struct {
	mu       sync.Mutex
	args     SessionArgs
	session  *ort.AdvancedSession
	input    *ort.Tensor[float32]
	heatmaps *ort.Tensor[float32]
	pafs     *ort.Tensor[float32]
}

var environmentMu sync.Mutex

func initializeEnvironment(libPath string) error {
	environmentMu.Lock()
	defer environmentMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if libPath == "" {
		p, err := providers.GetSharedLibPath()
		if err != nil {
			return err
		}
		libPath = p
	}
	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("error initializing ORT environment: %w", err)
	}
	return nil
}

// NewSession loads the model and binds its input and output tensors.
//
// Arguments:
//   - args: The model location, tensor layout and execution provider.
//
// Returns:
//   - *Session: The session, ready to Run.
//   - error: An error if the runtime or model cannot be loaded.
//
// @example
// session, err := NewSession(DefaultSessionArgs("human-pose-estimation-0001.onnx"))
func NewSession(args SessionArgs) (*Session, error) {
	if err := args.Validate(); err != nil {
		return nil, err
	}
	if err := initializeEnvironment(args.LibraryPath); err != nil {
		return nil, err
	}

	s := &Session{args: args}
	var err error
	if s.input, err = ort.NewEmptyTensor[float32](args.InputShape()); err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}
	if s.heatmaps, err = ort.NewEmptyTensor[float32](args.HeatmapShape()); err != nil {
		s.Close()
		return nil, fmt.Errorf("error creating heatmap tensor: %w", err)
	}
	if s.pafs, err = ort.NewEmptyTensor[float32](args.PAFShape()); err != nil {
		s.Close()
		return nil, fmt.Errorf("error creating PAF tensor: %w", err)
	}

	options, err := args.Provider.SessionOptions()
	if err != nil {
		s.Close()
		return nil, err
	}
	defer options.Destroy()

	s.session, err = ort.NewAdvancedSession(
		args.ModelPath,
		[]string{args.InputName},
		[]string{args.HeatmapOutput, args.PAFOutput},
		[]ort.ArbitraryTensor{s.input},
		[]ort.ArbitraryTensor{s.heatmaps, s.pafs},
		options,
	)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("error creating ORT session: %w", err)
	}
	return s, nil
}

// Args returns the session layout.
func (s *Session) Args() SessionArgs {
	return s.args
}

// Run executes the network on one preprocessed [3, H, W] input.
//
// Arguments:
//   - input: The input planes, as produced by the preprocessor.
//
// Returns:
//   - model.Features: Heatmaps and PAFs copied out of the runtime buffers.
//   - error: A *model.ShapeMismatchError for a wrongly sized input, or the runtime error.
func (s *Session) Run(input []float32) (model.Features, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return model.Features{}, fmt.Errorf("session is closed")
	}
	dst := s.input.GetData()
	if len(input) != len(dst) {
		return model.Features{}, &model.ShapeMismatchError{
			Tensor: s.args.InputName,
			Reason: fmt.Sprintf("holds %d values, expected %d", len(input), len(dst)),
		}
	}
	copy(dst, input)

	if err := s.session.Run(); err != nil {
		return model.Features{}, fmt.Errorf("error running ORT session: %w", err)
	}

	return OutputFeatures(s.heatmaps.GetData(), s.args.HeatmapShape(), s.pafs.GetData(), s.args.PAFShape())
}

// OutputFeatures wraps raw heatmap and PAF buffers in dense tensors and splits
// them into channel planes. The buffers are copied.
func OutputFeatures(heatmaps []float32, heatmapShape ort.Shape, pafs []float32, pafShape ort.Shape) (model.Features, error) {
	h, err := denseOutput(heatmaps, heatmapShape)
	if err != nil {
		return model.Features{}, err
	}
	p, err := denseOutput(pafs, pafShape)
	if err != nil {
		return model.Features{}, err
	}
	return model.FeaturesFromDense(h, p)
}

func denseOutput(data []float32, shape ort.Shape) (*tensor.Dense, error) {
	if int64(len(data)) != shape.FlattenedSize() {
		return nil, &model.ShapeMismatchError{
			Reason: fmt.Sprintf("output holds %d values, shape %v needs %d", len(data), shape, shape.FlattenedSize()),
		}
	}
	dims := make([]int, len(shape))
	for i, d := range shape {
		dims[i] = int(d)
	}
	return tensor.New(tensor.WithShape(dims...), tensor.WithBacking(data)), nil
}

// Close releases the resources associated with the Session.
//
// Returns:
//   - error: Always nil; kept for io.Closer.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil {
		s.session.Destroy()
		s.session = nil
	}
	if s.input != nil {
		s.input.Destroy()
		s.input = nil
	}
	if s.heatmaps != nil {
		s.heatmaps.Destroy()
		s.heatmaps = nil
	}
	if s.pafs != nil {
		s.pafs.Destroy()
		s.pafs = nil
	}
	return nil
}
