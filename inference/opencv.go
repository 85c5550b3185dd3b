package inference

import (
	"encoding/binary"
	"image"
	"math"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"
)

// DNNGraph runs a frozen TensorFlow or ONNX graph through the OpenCV DNN module.
//
// cv::dnn::Net keeps the bound input as state, so calls are serialised.
type DNNGraph struct {
	mu     sync.Mutex
	net    gocv.Net
	input  string
	output string
}

// NewDNNGraph loads a graph with OpenCV. Frozen TensorFlow graphs (.pb) use the TensorFlow
// importer; anything else goes through ReadNet.
func NewDNNGraph(cfg ModelConfig) (*DNNGraph, error) {
	var net gocv.Net
	if strings.EqualFold(filepath.Ext(cfg.Path), ".pb") {
		net = gocv.ReadNetFromTensorflow(cfg.Path)
	} else {
		net = gocv.ReadNet(cfg.Path, "")
	}
	if net.Empty() {
		net.Close()
		return nil, errors.Errorf("opencv could not read graph %s", cfg.Path)
	}

	return &DNNGraph{net: net, input: cfg.InputNode, output: cfg.OutputNode}, nil
}

// Run implements Graph. The NHWC tensor is converted to the NCHW blob OpenCV expects.
func (g *DNNGraph) Run(input *tensor.Dense) ([]float32, error) {
	data, ok := float32Data(input)
	if !ok {
		return nil, errors.Errorf("input tensor has dtype %v, want float32", input.Dtype())
	}
	shape := input.Shape()
	if len(shape) != 4 || shape[0] != 1 {
		return nil, errors.Errorf("input tensor has shape %v, want (1, h, w, c)", shape)
	}
	h, w, c := shape[1], shape[2], shape[3]

	mt, err := float32MatType(c)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 4*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	img, err := gocv.NewMatFromBytes(h, w, mt, buf)
	if err != nil {
		return nil, errors.Wrap(err, "wrap input")
	}
	defer img.Close()
	defer runtime.KeepAlive(buf)

	blob := gocv.BlobFromImage(img, 1.0, image.Pt(w, h), gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	g.mu.Lock()
	defer g.mu.Unlock()

	g.net.SetInput(blob, g.input)
	prob := g.net.Forward(g.output)
	defer prob.Close()

	out, err := prob.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "read output")
	}
	return append([]float32(nil), out...), nil
}

// Close releases the network.
func (g *DNNGraph) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.net.Close()
}

func float32MatType(channels int) (gocv.MatType, error) {
	switch channels {
	case 1:
		return gocv.MatTypeCV32FC1, nil
	case 3:
		return gocv.MatTypeCV32FC3, nil
	case 4:
		return gocv.MatTypeCV32FC4, nil
	}
	return 0, errors.Errorf("unsupported channel count %d", channels)
}
