// Package providers - Execution provider selection for onnxruntime sessions.
package providers

import (
	"fmt"
	"runtime"

	ort "github.com/yalue/onnxruntime_go"
)

// ProviderBackend names the onnxruntime execution provider a session runs on.
type ProviderBackend string

const (
	// CPUProviderBackend runs on the default CPU provider.
	CPUProviderBackend ProviderBackend = "cpu"
)

// Config selects and tunes the execution provider of a session.
type Config struct {
	// Backend specifies the backend to use.
	Backend ProviderBackend `json:"backend" yaml:"backend" koanf:"backend"`
	// IntraOpThreads parallelizes single operators (0 = onnxruntime default).
	IntraOpThreads int `json:"intraOpThreads" yaml:"intraOpThreads" koanf:"intraopthreads"`
	// InterOpThreads parallelizes independent operators (0 = onnxruntime default).
	InterOpThreads int `json:"interOpThreads" yaml:"interOpThreads" koanf:"interopthreads"`
	// CUDA options, used by the cuda backend.
	CUDA CUDAOptions `json:"cuda" yaml:"cuda" koanf:"cuda"`
	// OpenVINO options, used by the openvino backend.
	OpenVINO OpenVINOOptions `json:"openvino" yaml:"openvino" koanf:"openvino"`
	// CoreML options, used by the coreml backend.
	CoreML CoreMLOptions `json:"coreml" yaml:"coreml" koanf:"coreml"`
}

// DefaultConfig returns a CPU configuration sized to the host.
func DefaultConfig() Config {
	return Config{
		Backend:        CPUProviderBackend,
		IntraOpThreads: max(1, runtime.NumCPU()/2),
		InterOpThreads: 1,
		OpenVINO:       DefaultOpenVINOOptions(),
	}
}

// Validate checks the backend name and thread counts.
func (c Config) Validate() error {
	switch c.Backend {
	case CPUProviderBackend, CUDAProviderBackend, CoreMLProviderBackend, OpenVINOProviderBackend:
	default:
		return fmt.Errorf("unsupported provider backend %q", c.Backend)
	}
	if c.IntraOpThreads < 0 || c.InterOpThreads < 0 {
		return fmt.Errorf("thread counts must be >= 0, got intra=%d inter=%d", c.IntraOpThreads, c.InterOpThreads)
	}
	if c.Backend == OpenVINOProviderBackend {
		return c.OpenVINO.Validate()
	}
	return nil
}

// SessionOptions creates onnxruntime session options for the configured
// backend. The caller destroys the returned options once the session exists.
//
// Returns:
//   - *ort.SessionOptions: The configured options.
//   - error: An error if the backend cannot be enabled.
func (c Config) SessionOptions() (*ort.SessionOptions, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("error creating session options: %w", err)
	}
	if err := c.apply(options); err != nil {
		_ = options.Destroy()
		return nil, err
	}
	return options, nil
}

func (c Config) apply(options *ort.SessionOptions) error {
	if c.IntraOpThreads > 0 {
		if err := options.SetIntraOpNumThreads(c.IntraOpThreads); err != nil {
			return fmt.Errorf("error setting intra-op threads: %w", err)
		}
	}
	if c.InterOpThreads > 0 {
		if err := options.SetInterOpNumThreads(c.InterOpThreads); err != nil {
			return fmt.Errorf("error setting inter-op threads: %w", err)
		}
	}
	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended); err != nil {
		return fmt.Errorf("error setting graph optimization level: %w", err)
	}

	switch c.Backend {
	case CoreMLProviderBackend:
		if err := options.AppendExecutionProviderCoreML(c.CoreML.Flags()); err != nil {
			return fmt.Errorf("error enabling CoreML: %w", err)
		}
	case OpenVINOProviderBackend:
		if err := options.AppendExecutionProviderOpenVINO(c.OpenVINO.ToMap()); err != nil {
			return fmt.Errorf("error enabling OpenVINO: %w", err)
		}
	case CUDAProviderBackend:
		cuda, err := c.CUDA.ToNativeProviderOptions()
		if err != nil {
			return fmt.Errorf("error converting CUDA options: %w", err)
		}
		defer cuda.Destroy()
		if err := options.AppendExecutionProviderCUDA(cuda); err != nil {
			return fmt.Errorf("error enabling CUDA: %w", err)
		}
	}
	return nil
}
