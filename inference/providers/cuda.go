package providers

import (
	"strconv"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	// CUDAProviderBackend runs on an NVIDIA GPU.
	CUDAProviderBackend ProviderBackend = "cuda"
)

// CUDAOptions are the CUDA execution provider settings.
type CUDAOptions struct {
	// DeviceID is the GPU ordinal.
	DeviceID int `json:"deviceID" yaml:"deviceID" koanf:"deviceid"`
	// GPUMemLimit caps the arena size in bytes (0 = unlimited).
	GPUMemLimit int64 `json:"gpuMemLimit" yaml:"gpuMemLimit" koanf:"gpumemlimit"`
	// CudnnConvAlgoSearch is EXHAUSTIVE, HEURISTIC or DEFAULT.
	CudnnConvAlgoSearch string `json:"cudnnConvAlgoSearch" yaml:"cudnnConvAlgoSearch" koanf:"cudnnconvalgosearch"`
	// DoCopyInDefaultStream copies on the default CUDA stream.
	DoCopyInDefaultStream bool `json:"doCopyInDefaultStream" yaml:"doCopyInDefaultStream" koanf:"docopyindefaultstream"`
}

// ToMap returns the options keyed by their onnxruntime names.
func (o CUDAOptions) ToMap() map[string]string {
	m := map[string]string{
		"device_id":                 strconv.Itoa(o.DeviceID),
		"do_copy_in_default_stream": boolFlag(o.DoCopyInDefaultStream),
	}
	if o.GPUMemLimit > 0 {
		m["gpu_mem_limit"] = strconv.FormatInt(o.GPUMemLimit, 10)
	}
	if o.CudnnConvAlgoSearch != "" {
		m["cudnn_conv_algo_search"] = o.CudnnConvAlgoSearch
	}
	return m
}

// ToNativeProviderOptions converts the options to onnxruntime CUDA options.
// The caller destroys the result.
func (o CUDAOptions) ToNativeProviderOptions() (*ort.CUDAProviderOptions, error) {
	opts, err := ort.NewCUDAProviderOptions()
	if err != nil {
		return nil, err
	}
	if err := opts.Update(o.ToMap()); err != nil {
		_ = opts.Destroy()
		return nil, err
	}
	return opts, nil
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
