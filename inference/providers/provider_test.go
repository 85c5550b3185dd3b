package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		backend  ProviderBackend
		expected ProviderBackend
	}{
		{backend: "", expected: CPUProviderBackend},
		{backend: CPUProviderBackend, expected: CPUProviderBackend},
		{backend: CUDAProviderBackend, expected: CUDAProviderBackend},
		{backend: CoreMLProviderBackend, expected: CoreMLProviderBackend},
		{backend: OpenVINOProviderBackend, expected: OpenVINOProviderBackend},
	}

	for _, tt := range tests {
		t.Run(string(tt.expected), func(t *testing.T) {
			p, err := NewProvider(Config{Backend: tt.backend})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, p.Backend())
		})
	}
}

func TestNewProvider_Unknown(t *testing.T) {
	_, err := NewProvider(Config{Backend: "tpu"})
	assert.ErrorContains(t, err, "tpu")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, CPUProviderBackend, cfg.Backend)
	assert.Zero(t, cfg.IntraOpThreads)
	assert.Empty(t, cfg.SharedLibPath)
}

func TestCUDAOptions_ToMap(t *testing.T) {
	m := CUDAOptions{DeviceID: 1, CudnnConvAlgoSearch: 1, PreferNHWC: true}.ToMap()
	assert.Equal(t, "1", m["device_id"])
	assert.Equal(t, "HEURISTIC", m["cudnn_conv_algo_search"])
	assert.Equal(t, "kNextPowerOfTwo", m["arena_extend_strategy"])
	assert.Equal(t, "1", m["prefer_nhwc"])
	assert.NotContains(t, m, "gpu_mem_limit")

	m = CUDAOptions{GPUMemLimit: 2 << 30}.ToMap()
	assert.Equal(t, "2147483648", m["gpu_mem_limit"])
}

func TestOpenVINOOptions_ToMap(t *testing.T) {
	assert.Empty(t, OpenVINOOptions{}.ToMap())

	m := OpenVINOOptions{DeviceType: "GPU", Precision: "FP16", NumOfThreads: 4}.ToMap()
	assert.Equal(t, map[string]string{
		"device_type":    "GPU",
		"precision":      "FP16",
		"num_of_threads": "4",
	}, m)
}

func TestCoreMLOptions_Flags(t *testing.T) {
	assert.Zero(t, CoreMLOptions{}.Flags())
	assert.Equal(t, coreMLFlagCreateMLProgram|coreMLFlagUseCPUOnly,
		CoreMLOptions{MLProgram: true, ComputeUnits: "CPUOnly"}.Flags())
}

func TestGetSharedLibPath_EnvOverride(t *testing.T) {
	t.Setenv(LibraryPathEnv, "/opt/onnxruntime/lib/libonnxruntime.so")

	p, err := GetSharedLibPath()
	require.NoError(t, err)
	assert.Equal(t, "/opt/onnxruntime/lib/libonnxruntime.so", p)
}
