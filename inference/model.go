package inference

import (
	"os"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// ErrModelLoad is returned when the graph or the label vocabulary cannot be loaded.
var ErrModelLoad = errors.New("model load failed")

// Prediction is the top-1 result of a classification.
type Prediction struct {
	// Label is the vocabulary entry of the winning output.
	Label string
	// Index is the output index of the label.
	Index int
	// Score is the raw output value of the label.
	Score float32
}

// Model is a loaded classification graph and its label vocabulary.
//
// A Model is immutable after construction and safe for concurrent use.
type Model struct {
	graph  Graph
	labels []string
	cfg    ModelConfig
}

// NewModel wraps an already loaded graph.
//
// Arguments:
//   - graph: The graph that produces one output per label.
//   - labels: The label vocabulary in output index order.
//   - cfg: The model configuration. Only Size and Channels are used.
//
// Returns:
//   - *Model: The model, which takes ownership of graph.
//   - error: ErrModelLoad (wrapped) when the arguments are unusable.
func NewModel(graph Graph, labels []string, cfg ModelConfig) (*Model, error) {
	if graph == nil {
		return nil, errors.Wrap(ErrModelLoad, "graph is nil")
	}
	if len(labels) == 0 {
		return nil, errors.Wrap(ErrModelLoad, "label vocabulary is empty")
	}
	if cfg.Size <= 0 {
		return nil, errors.Wrapf(ErrModelLoad, "size must be positive, got %d", cfg.Size)
	}
	if cfg.Channels == 0 {
		cfg.Channels = 3
	}

	return &Model{
		graph:  graph,
		labels: append([]string(nil), labels...),
		cfg:    cfg,
	}, nil
}

// LoadModel loads the label vocabulary and the graph described by cfg.
//
// Any failure is fatal for a recognition process and is reported as ErrModelLoad.
func LoadModel(cfg ModelConfig) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(ErrModelLoad, "invalid model config: %v", err)
	}

	labels, err := LoadLabels(cfg.LabelsPath)
	if err != nil {
		return nil, errors.Wrapf(ErrModelLoad, "labels %s: %v", cfg.LabelsPath, err)
	}

	if _, err := os.Stat(cfg.Path); err != nil {
		return nil, errors.Wrapf(ErrModelLoad, "graph %s: %v", cfg.Path, err)
	}

	backend, _ := cfg.ResolveBackend()
	var graph Graph
	switch backend {
	case BackendONNXRuntime:
		graph, err = NewONNXGraph(cfg, len(labels))
	case BackendOpenCV:
		graph, err = NewDNNGraph(cfg)
	}
	if err != nil {
		return nil, errors.Wrapf(ErrModelLoad, "graph %s: %v", cfg.Path, err)
	}

	model, err := NewModel(graph, labels, cfg)
	if err != nil {
		graph.Close()
		return nil, err
	}
	if err := model.checkOutputs(); err != nil {
		model.Close()
		return nil, errors.Wrapf(ErrModelLoad, "graph %s: %v", cfg.Path, err)
	}
	return model, nil
}

// checkOutputs runs one blank input and compares the output length with the label vocabulary.
func (m *Model) checkOutputs() error {
	blank := tensor.New(tensor.WithShape(1, m.cfg.Size, m.cfg.Size, m.cfg.Channels), tensor.Of(tensor.Float32))
	probs, err := m.graph.Run(blank)
	if err != nil {
		return errors.Wrap(err, "trial run")
	}
	if len(probs) != len(m.labels) {
		return errors.Errorf("graph returns %d outputs for %d labels", len(probs), len(m.labels))
	}
	return nil
}

// Predict runs a prepared tensor through the graph and returns the top-1 label.
func (m *Model) Predict(input *tensor.Dense) (Prediction, error) {
	probs, err := m.graph.Run(input)
	if err != nil {
		return Prediction{}, err
	}
	if len(probs) != len(m.labels) {
		return Prediction{}, errors.Errorf("graph returned %d outputs for %d labels", len(probs), len(m.labels))
	}

	idx, err := argmax(probs)
	if err != nil {
		return Prediction{}, err
	}
	return Prediction{Label: m.labels[idx], Index: idx, Score: probs[idx]}, nil
}

// Labels returns a copy of the label vocabulary.
func (m *Model) Labels() []string {
	return append([]string(nil), m.labels...)
}

// Size returns the square input resolution.
func (m *Model) Size() int {
	return m.cfg.Size
}

// Channels returns the input channel count.
func (m *Model) Channels() int {
	return m.cfg.Channels
}

// Close releases the graph.
func (m *Model) Close() error {
	return m.graph.Close()
}

// argmax returns the index of the largest value. Ties resolve to the lowest index.
func argmax(values []float32) (int, error) {
	t := tensor.New(tensor.WithShape(len(values)), tensor.WithBacking(values))
	am, err := t.Argmax(0)
	if err != nil {
		return 0, errors.Wrap(err, "argmax")
	}

	switch v := am.Data().(type) {
	case int:
		return v, nil
	case []int:
		if len(v) > 0 {
			return v[0], nil
		}
	}
	return 0, errors.Errorf("unexpected argmax result %v", am.Data())
}
