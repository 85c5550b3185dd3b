// Package providers - ONNX Runtime execution providers and session options.
package providers

import (
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// ProviderBackend represents different ONNX Runtime execution providers
type ProviderBackend string

// Config selects and configures the execution provider of an ONNX Runtime session.
type Config struct {
	// Backend specifies the execution provider. Empty means CPU.
	Backend ProviderBackend `json:"backend" yaml:"backend"`
	// SharedLibPath overrides the ONNX Runtime library location.
	SharedLibPath string `json:"shared_lib_path" yaml:"shared_lib_path"`
	// IntraOpThreads and InterOpThreads size the runtime thread pools. Zero lets ONNX Runtime decide.
	IntraOpThreads int `json:"intra_op_threads" yaml:"intra_op_threads"`
	InterOpThreads int `json:"inter_op_threads" yaml:"inter_op_threads"`
	// Provider-specific options, used when Backend selects them.
	CUDA     CUDAOptions     `json:"cuda"     yaml:"cuda"`
	CoreML   CoreMLOptions   `json:"coreml"   yaml:"coreml"`
	OpenVINO OpenVINOOptions `json:"openvino" yaml:"openvino"`
}

// DefaultConfig returns a CPU configuration.
func DefaultConfig() Config {
	return Config{Backend: CPUProviderBackend}
}

// ExecutionProvider represents the contract that all execution providers must implement.
type ExecutionProvider interface {
	// Backend returns the provider's backend name.
	Backend() ProviderBackend
	// Append registers the provider on the session options.
	Append(options *ort.SessionOptions) error
}

// NewProvider creates the execution provider selected by the configuration.
//
// Arguments:
//   - cfg: The provider configuration.
//
// Returns:
//   - ExecutionProvider: The provider.
//   - error: An error if the backend is unknown.
func NewProvider(cfg Config) (ExecutionProvider, error) {
	switch cfg.Backend {
	case "", CPUProviderBackend:
		return NewCPUProvider(), nil
	case CUDAProviderBackend:
		return NewCUDAProvider(cfg.CUDA), nil
	case CoreMLProviderBackend:
		return NewCoreMLProvider(cfg.CoreML), nil
	case OpenVINOProviderBackend:
		return NewOpenVINOProvider(cfg.OpenVINO), nil
	default:
		return nil, errors.Errorf("unsupported execution provider %q", cfg.Backend)
	}
}
