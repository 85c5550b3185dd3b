// Package inference - Glyph classification models backed by a frozen inference graph.
package inference

import (
	"path/filepath"
	"strings"

	"github.com/nvr-ai/go-lpr/inference/providers"
	"github.com/pkg/errors"
)

// Backend selects the runtime that executes the graph.
type Backend string

const (
	// BackendAuto picks the runtime from the model file extension.
	BackendAuto Backend = "auto"
	// BackendONNXRuntime executes .onnx graphs through ONNX Runtime.
	BackendONNXRuntime Backend = "onnxruntime"
	// BackendOpenCV executes frozen TensorFlow (.pb) or ONNX graphs through the OpenCV DNN module.
	BackendOpenCV Backend = "opencv"
)

// ModelConfig describes the classification graph and its label vocabulary.
type ModelConfig struct {
	// Path is the graph file.
	Path string `json:"path" yaml:"path"`
	// LabelsPath is the label file, one label per line in output index order.
	LabelsPath string `json:"labels_path" yaml:"labels_path"`
	// Backend selects the runtime. Defaults to BackendAuto.
	Backend Backend `json:"backend" yaml:"backend"`
	// InputNode and OutputNode name the graph's input placeholder and probability output.
	InputNode  string `json:"input_node"  yaml:"input_node"`
	OutputNode string `json:"output_node" yaml:"output_node"`
	// Size is the square input resolution of the graph.
	Size int `json:"size" yaml:"size"`
	// Channels is the number of input channels the graph expects.
	Channels int `json:"channels" yaml:"channels"`
	// Provider configures ONNX Runtime execution providers.
	Provider providers.Config `json:"provider" yaml:"provider"`
}

// DefaultModelConfig returns the defaults of the character graph, without file paths.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Backend:    BackendAuto,
		InputNode:  "input",
		OutputNode: "final_result",
		Size:       128,
		Channels:   3,
		Provider:   providers.DefaultConfig(),
	}
}

// Validate checks the model configuration.
func (c ModelConfig) Validate() error {
	if c.Path == "" {
		return errors.New("model path is required")
	}
	if c.LabelsPath == "" {
		return errors.New("labels path is required")
	}
	if c.Size <= 0 {
		return errors.Errorf("size must be positive, got %d", c.Size)
	}
	switch c.Channels {
	case 1, 3, 4:
	default:
		return errors.Errorf("channels must be 1, 3 or 4, got %d", c.Channels)
	}
	if c.InputNode == "" || c.OutputNode == "" {
		return errors.New("input and output node names are required")
	}
	_, err := c.ResolveBackend()
	return err
}

// ResolveBackend returns the concrete backend for the configuration.
func (c ModelConfig) ResolveBackend() (Backend, error) {
	switch c.Backend {
	case BackendONNXRuntime, BackendOpenCV:
		return c.Backend, nil
	case "", BackendAuto:
		switch strings.ToLower(filepath.Ext(c.Path)) {
		case ".onnx":
			return BackendONNXRuntime, nil
		case ".pb":
			return BackendOpenCV, nil
		}
		return "", errors.Errorf("cannot infer backend from model file %q", c.Path)
	}
	return "", errors.Errorf("unknown backend %q", c.Backend)
}
