package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-pose/models/model"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "default", config: DefaultConfig()},
		{name: "openvino", config: Config{Backend: OpenVINOProviderBackend}},
		{name: "unknown backend", config: Config{Backend: "tpu"}, wantErr: true},
		{name: "empty backend", config: Config{}, wantErr: true},
		{name: "openvino int8", config: Config{Backend: OpenVINOProviderBackend, OpenVINO: OpenVINOOptions{Precision: "INT8"}}, wantErr: true},
		{name: "openvino fp16", config: Config{Backend: OpenVINOProviderBackend, OpenVINO: OpenVINOOptions{Precision: model.PrecisionFP16}}},
		{name: "negative threads", config: Config{Backend: CPUProviderBackend, IntraOpThreads: -1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestOpenVINOOptions_ToMap(t *testing.T) {
	assert.Equal(t, map[string]string{
		"device_type": "CPU",
		"precision":   "FP32",
		"num_streams": "1",
	}, DefaultOpenVINOOptions().ToMap())

	m := OpenVINOOptions{DeviceType: "GPU", NumOfThreads: 4, CacheDir: "/tmp/ov"}.ToMap()
	assert.Equal(t, "4", m["num_of_threads"])
	assert.Equal(t, "/tmp/ov", m["cache_dir"])
	assert.NotContains(t, m, "precision")
}

func TestCUDAOptions_ToMap(t *testing.T) {
	m := CUDAOptions{DeviceID: 1, GPUMemLimit: 1 << 30, DoCopyInDefaultStream: true}.ToMap()
	assert.Equal(t, "1", m["device_id"])
	assert.Equal(t, "1073741824", m["gpu_mem_limit"])
	assert.Equal(t, "1", m["do_copy_in_default_stream"])
	assert.NotContains(t, m, "cudnn_conv_algo_search")
}

func TestCoreMLOptions_Flags(t *testing.T) {
	assert.Equal(t, uint32(0), CoreMLOptions{}.Flags())
	assert.Equal(t, uint32(0x3), CoreMLOptions{CPUOnly: true, EnableOnSubgraphs: true}.Flags())
	assert.Equal(t, uint32(0x4), CoreMLOptions{OnlyANE: true}.Flags())
}

func TestSharedLibPath(t *testing.T) {
	p, err := sharedLibPath("linux", "arm64")
	require.NoError(t, err)
	assert.Equal(t, "./third_party/onnxruntime_arm64.so", p)

	_, err = sharedLibPath("plan9", "386")
	assert.Error(t, err)

	t.Setenv(LibraryPathEnv, "/opt/ort/libonnxruntime.so")
	p, err = GetSharedLibPath()
	require.NoError(t, err)
	assert.Equal(t, "/opt/ort/libonnxruntime.so", p)
}
