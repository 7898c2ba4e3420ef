package providers

import (
	"fmt"
	"strconv"

	"github.com/nvr-ai/go-pose/models/model"
)

const (
	// OpenVINOProviderBackend runs on the Intel OpenVINO toolkit.
	OpenVINOProviderBackend ProviderBackend = "openvino"
)

// OpenVINOOptions are the OpenVINO execution provider settings.
type OpenVINOOptions struct {
	// DeviceType is CPU, GPU, NPU or a HETERO/MULTI/AUTO expression.
	DeviceType string `json:"deviceType" yaml:"deviceType" koanf:"devicetype"`
	// Precision is FP32, FP16 or ACCURACY.
	Precision model.Precision `json:"precision" yaml:"precision" koanf:"precision"`
	// NumOfThreads bounds the inference threads (0 = OpenVINO default).
	NumOfThreads int `json:"numOfThreads" yaml:"numOfThreads" koanf:"numofthreads"`
	// NumStreams is the number of parallel inference streams.
	NumStreams int `json:"numStreams" yaml:"numStreams" koanf:"numstreams"`
	// CacheDir stores compiled blobs between runs when set.
	CacheDir string `json:"cacheDir" yaml:"cacheDir" koanf:"cachedir"`
}

// DefaultOpenVINOOptions targets the CPU at full precision.
func DefaultOpenVINOOptions() OpenVINOOptions {
	return OpenVINOOptions{DeviceType: "CPU", Precision: model.PrecisionFP32, NumStreams: 1}
}

// ToMap returns the options keyed by their onnxruntime names.
func (o OpenVINOOptions) ToMap() map[string]string {
	m := map[string]string{}
	if o.DeviceType != "" {
		m["device_type"] = o.DeviceType
	}
	if o.Precision != "" {
		m["precision"] = string(o.Precision)
	}
	if o.NumOfThreads > 0 {
		m["num_of_threads"] = strconv.Itoa(o.NumOfThreads)
	}
	if o.NumStreams > 0 {
		m["num_streams"] = strconv.Itoa(o.NumStreams)
	}
	if o.CacheDir != "" {
		m["cache_dir"] = o.CacheDir
	}
	return m
}

// Validate checks the precision and stream count.
func (o OpenVINOOptions) Validate() error {
	if o.Precision != "" && !o.Precision.Valid() {
		return fmt.Errorf("unsupported OpenVINO precision %q", o.Precision)
	}
	if o.NumOfThreads < 0 || o.NumStreams < 0 {
		return fmt.Errorf("OpenVINO threads and streams must be >= 0")
	}
	return nil
}
