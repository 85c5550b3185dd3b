package inference

import (
	"gorgonia.org/tensor"
)

// Graph runs a glyph tensor through a classification graph and returns the output vector.
//
// Implementations must be safe for concurrent use.
type Graph interface {
	Run(input *tensor.Dense) ([]float32, error)
	Close() error
}

// shape64 converts a tensor shape to the int64 dims ONNX Runtime expects.
func shape64(shape tensor.Shape) []int64 {
	dims := make([]int64, len(shape))
	for i, d := range shape {
		dims[i] = int64(d)
	}
	return dims
}

// float32Data returns the float32 backing slice of a tensor.
func float32Data(t *tensor.Dense) ([]float32, bool) {
	data, ok := t.Data().([]float32)
	return data, ok
}
