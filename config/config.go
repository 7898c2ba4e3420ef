// Package config - Application configuration loaded from defaults, a YAML file
// and POSE_ environment variables.
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-pose/inference"
	"github.com/nvr-ai/go-pose/models"
	"github.com/nvr-ai/go-pose/models/model"
	"github.com/nvr-ai/go-pose/models/openpose"
	"github.com/nvr-ai/go-pose/motion"
)

// EnvPrefix prefixes every environment override, e.g. POSE_DECODER_MINJOINTS.
const EnvPrefix = "POSE_"

// ModelConfig selects the pose model and the network it runs.
type ModelConfig struct {
	Name    model.Name            `koanf:"name"`
	Session inference.SessionArgs `koanf:"session"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// CaptureConfig configures the capture loop of cmd/posecam.
type CaptureConfig struct {
	// Device is a camera index or a video file/stream URL.
	Device string `koanf:"device"`
	// Image switches to single-image mode: the file is processed once and
	// written to OutputDir.
	Image string `koanf:"image"`
	// OutputDir receives rendered images in single-image mode.
	OutputDir string `koanf:"outputdir"`
	// Window shows the rendered frames when set.
	Window bool `koanf:"window"`
	// MinPoseScore hides poses scoring below it.
	MinPoseScore float32 `koanf:"minposescore"`
	// ReportInterval is the runtime profile period.
	ReportInterval time.Duration `koanf:"reportinterval"`
	// Layout is the keypoint layout of the pose files written in image mode.
	Layout models.KeypointLayout `koanf:"layout"`
	// Motion restricts estimation to moving regions of the stream.
	Motion motion.Config `koanf:"motion"`
}

// AppConfig is the full application configuration.
type AppConfig struct {
	Debug   bool            `koanf:"debug"`
	Decoder openpose.Params `koanf:"decoder"`
	Model   ModelConfig     `koanf:"model"`
	Metrics MetricsConfig   `koanf:"metrics"`
	Capture CaptureConfig   `koanf:"capture"`
}

// Default returns the configuration used when no file or environment
// overrides are given.
func Default() AppConfig {
	return AppConfig{
		Decoder: openpose.DefaultParams(),
		Model: ModelConfig{
			Name:    model.ModelNameOpenPose,
			Session: inference.DefaultSessionArgs("models/human-pose-estimation-0001.onnx"),
		},
		Metrics: MetricsConfig{Enabled: true, Addr: ":9090"},
		Capture: CaptureConfig{
			Device:         "0",
			OutputDir:      "pose_frames",
			Window:         true,
			MinPoseScore:   0.2,
			ReportInterval: 10 * time.Second,
			Layout:         models.LayoutOpenPose18,
			Motion:         motion.DefaultConfig(),
		},
	}
}

// Load layers the defaults, the YAML file at path (skipped when empty) and
// POSE_ environment variables, then validates the result.
//
// Arguments:
//   - path: The YAML configuration file, or "".
//
// Returns:
//   - *AppConfig: The loaded configuration.
//   - error: A load error or a *model.ConfigurationError.
//
// @example
// cfg, err := config.Load("configs/posecam.yaml")
func Load(path string) (*AppConfig, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, errors.Wrap(err, "load defaults")
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "load %s", path)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, errors.Wrap(err, "load environment")
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, "decode configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps POSE_MODEL_SESSION_MODELPATH to model.session.modelpath.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")
}

// Validate checks the decoder parameters and their agreement with the network
// layout.
func (c *AppConfig) Validate() error {
	if err := c.Decoder.Validate(); err != nil {
		var cfgErr *model.ConfigurationError
		if errors.As(err, &cfgErr) {
			return &model.ConfigurationError{Field: "decoder." + cfgErr.Field, Reason: cfgErr.Reason}
		}
		return err
	}
	if c.Model.Name == "" {
		return &model.ConfigurationError{Field: "model.name", Reason: "must be set"}
	}

	s := c.Model.Session
	if err := s.Validate(); err != nil {
		var cfgErr *model.ConfigurationError
		if errors.As(err, &cfgErr) {
			return &model.ConfigurationError{Field: "model.session." + cfgErr.Field, Reason: cfgErr.Reason}
		}
		return err
	}
	if err := s.Provider.Validate(); err != nil {
		return &model.ConfigurationError{Field: "model.session.provider", Reason: err.Error()}
	}
	if s.HeatmapChannels < c.Decoder.KeypointCount {
		return &model.ConfigurationError{
			Field:  "model.session.heatmapchannels",
			Reason: fmt.Sprintf("%d channels cannot hold %d keypoints", s.HeatmapChannels, c.Decoder.KeypointCount),
		}
	}
	if s.Stride != c.Decoder.Stride {
		return &model.ConfigurationError{
			Field:  "decoder.stride",
			Reason: fmt.Sprintf("%d differs from the network stride %d", c.Decoder.Stride, s.Stride),
		}
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return &model.ConfigurationError{Field: "metrics.addr", Reason: "must be set when metrics are enabled"}
	}
	if !models.DefaultKeypointManager().Has(c.Capture.Layout) {
		return &model.ConfigurationError{Field: "capture.layout", Reason: fmt.Sprintf("unknown keypoint layout %q", c.Capture.Layout)}
	}
	if c.Capture.Motion.Enabled {
		if err := c.Capture.Motion.Validate(); err != nil {
			return &model.ConfigurationError{Field: "capture.motion", Reason: err.Error()}
		}
	}
	return nil
}

var defaultConfigPath = "configs/posecam.yaml"

// ParseConfigFlag allows clients to specify the path to the file from which
// the configuration will be loaded.
func ParseConfigFlag(args []string) (string, error) {
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	configPath := fs.String("file", defaultConfigPath, "configuration file")
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	return *configPath, nil
}
