package inference

import (
	"github.com/nvr-ai/go-lpr/inference/providers"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gorgonia.org/tensor"
)

// ONNXGraph runs an ONNX graph through ONNX Runtime.
//
// It uses a dynamic session so tensors are bound per call and Run is safe for concurrent use.
type ONNXGraph struct {
	session *ort.DynamicAdvancedSession
	outputs int64
}

// NewONNXGraph loads an ONNX graph.
//
// Order of operations:
//  1. Runtime initialisation: loads the native library once per process.
//  2. Output check: the output node must exist and, when its size is fixed, match outputs.
//  3. Session options: threading, optimisation level and execution provider.
//  4. Session creation: parses the graph and binds the input and output node names.
//
// Arguments:
//   - cfg: The model configuration.
//   - outputs: The length of the probability vector, one entry per label.
//
// Returns:
//   - *ONNXGraph: The graph.
//   - error: An error if the runtime or the graph cannot be loaded.
func NewONNXGraph(cfg ModelConfig, outputs int) (*ONNXGraph, error) {
	if err := providers.InitializeRuntime(cfg.Provider.SharedLibPath); err != nil {
		return nil, err
	}

	_, outs, err := ort.GetInputOutputInfo(cfg.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "read graph info for %s", cfg.Path)
	}
	if err := checkOutputInfo(outs, cfg.OutputNode, outputs); err != nil {
		return nil, err
	}

	options, err := providers.NewSessionOptions(cfg.Provider)
	if err != nil {
		return nil, err
	}
	defer options.Destroy()

	session, err := ort.NewDynamicAdvancedSession(
		cfg.Path,
		[]string{cfg.InputNode},
		[]string{cfg.OutputNode},
		options,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "create session for %s", cfg.Path)
	}

	return &ONNXGraph{session: session, outputs: int64(outputs)}, nil
}

// checkOutputInfo finds node among the graph outputs and checks its last dimension.
// Dynamic dimensions are reported as -1 and pass.
func checkOutputInfo(infos []ort.InputOutputInfo, node string, outputs int) error {
	for _, info := range infos {
		if info.Name != node {
			continue
		}
		dims := info.Dimensions
		if len(dims) == 0 {
			return errors.Errorf("output %q has no dimensions", node)
		}
		if last := dims[len(dims)-1]; last > 0 && last != int64(outputs) {
			return errors.Errorf("output %q has %d classes for %d labels", node, last, outputs)
		}
		return nil
	}
	return errors.Errorf("graph has no output named %q", node)
}

// Run implements Graph.
func (g *ONNXGraph) Run(input *tensor.Dense) ([]float32, error) {
	data, ok := float32Data(input)
	if !ok {
		return nil, errors.Errorf("input tensor has dtype %v, want float32", input.Dtype())
	}

	in, err := ort.NewTensor(ort.NewShape(shape64(input.Shape())...), data)
	if err != nil {
		return nil, errors.Wrap(err, "create input tensor")
	}
	defer in.Destroy()

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, g.outputs))
	if err != nil {
		return nil, errors.Wrap(err, "create output tensor")
	}
	defer out.Destroy()

	if err := g.session.Run([]ort.Value{in}, []ort.Value{out}); err != nil {
		return nil, errors.Wrap(err, "run session")
	}

	return append([]float32(nil), out.GetData()...), nil
}

// Close destroys the session.
func (g *ONNXGraph) Close() error {
	if g.session == nil {
		return nil
	}
	err := g.session.Destroy()
	g.session = nil
	if err != nil {
		return errors.Wrap(err, "destroy session")
	}
	return nil
}
