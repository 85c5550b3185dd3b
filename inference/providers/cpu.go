// Package providers - CPU based execution provider.
package providers

import ort "github.com/yalue/onnxruntime_go"

const (
	// CPUProviderBackend runs inference on the default CPU provider.
	CPUProviderBackend ProviderBackend = "cpu"
)

// CPUProvider is the default provider. ONNX Runtime always has it registered.
type CPUProvider struct{}

// NewCPUProvider creates a new CPU provider
func NewCPUProvider() *CPUProvider {
	return &CPUProvider{}
}

// Backend returns the backend of the CPU provider.
func (p *CPUProvider) Backend() ProviderBackend {
	return CPUProviderBackend
}

// Append is a no-op: the CPU provider needs no registration.
func (p *CPUProvider) Append(*ort.SessionOptions) error {
	return nil
}
