// Package providers - CoreML execution provider.
package providers

import (
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

const (
	// CoreMLProviderBackend uses Apple CoreML for macOS/iOS acceleration.
	CoreMLProviderBackend ProviderBackend = "coreml"
)

// CoreML flags, see coreml_provider_factory.h.
const (
	coreMLFlagUseCPUOnly        uint32 = 0x001
	coreMLFlagEnableOnSubgraphs uint32 = 0x002
	coreMLFlagOnlyStaticShapes  uint32 = 0x008
	coreMLFlagCreateMLProgram   uint32 = 0x010
	coreMLFlagUseCPUAndGPU      uint32 = 0x020
)

// CoreMLOptions contains arguments for the CoreML provider.
// See: https://onnxruntime.ai/docs/execution-providers/CoreML-ExecutionProvider.html
type CoreMLOptions struct {
	// MLProgram creates an MLProgram format model instead of a NeuralNetwork one.
	MLProgram bool `json:"mlProgram" yaml:"mlProgram"`
	// ComputeUnits limits CoreML to "CPUOnly", "CPUAndGPU" or "ALL" (default).
	ComputeUnits string `json:"computeUnits" yaml:"computeUnits"`
	// RequireStaticInputShapes only lets CoreML take nodes with static input shapes.
	RequireStaticInputShapes bool `json:"requireStaticInputShapes" yaml:"requireStaticInputShapes"`
	// EnableOnSubgraphs lets CoreML run inside control flow operators.
	EnableOnSubgraphs bool `json:"enableOnSubgraphs" yaml:"enableOnSubgraphs"`
}

// Flags returns the CoreML flag bitmask for the options.
func (o CoreMLOptions) Flags() uint32 {
	var flags uint32
	if o.MLProgram {
		flags |= coreMLFlagCreateMLProgram
	}
	switch o.ComputeUnits {
	case "CPUOnly":
		flags |= coreMLFlagUseCPUOnly
	case "CPUAndGPU":
		flags |= coreMLFlagUseCPUAndGPU
	}
	if o.RequireStaticInputShapes {
		flags |= coreMLFlagOnlyStaticShapes
	}
	if o.EnableOnSubgraphs {
		flags |= coreMLFlagEnableOnSubgraphs
	}
	return flags
}

// CoreMLProvider implements the ExecutionProvider interface.
type CoreMLProvider struct {
	options CoreMLOptions
}

// NewCoreMLProvider creates a new CoreML provider.
func NewCoreMLProvider(options CoreMLOptions) *CoreMLProvider {
	return &CoreMLProvider{options: options}
}

// Backend returns the backend of the CoreML provider.
func (p *CoreMLProvider) Backend() ProviderBackend {
	return CoreMLProviderBackend
}

// Append registers CoreML on the session options.
func (p *CoreMLProvider) Append(options *ort.SessionOptions) error {
	if err := options.AppendExecutionProviderCoreML(p.options.Flags()); err != nil {
		return errors.Wrap(err, "enable CoreML")
	}
	return nil
}
