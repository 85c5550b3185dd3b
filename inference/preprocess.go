package inference

import (
	"image"

	"github.com/chewxy/math32"
	"github.com/nfnt/resize"
	"github.com/nvr-ai/go-lpr/images"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"
)

// NormalizeMin and NormalizeMax are the bounds glyph intensities are rescaled into.
const (
	NormalizeMin float32 = -0.5
	NormalizeMax float32 = 0.5
)

// Normalize rescales data in place so its minimum maps to lo and its maximum to hi.
// Constant data maps entirely to lo.
func Normalize(data []float32, lo, hi float32) {
	if len(data) == 0 {
		return
	}

	mn, mx := math32.Inf(1), math32.Inf(-1)
	for _, v := range data {
		mn = math32.Min(mn, v)
		mx = math32.Max(mx, v)
	}

	var scale float32
	if mx > mn {
		scale = (hi - lo) / (mx - mn)
	}
	for i, v := range data {
		data[i] = (v-mn)*scale + lo
	}
}

// GlyphTensor prepares a glyph Mat for the classification graph.
//
// The glyph is resized to size x size with cubic interpolation, every value is min-max
// normalised into [NormalizeMin, NormalizeMax] and the result is laid out NHWC with a
// leading batch dimension of 1.
//
// Arguments:
//   - glyph: An 8-bit glyph with the given number of channels.
//   - size: The square input resolution.
//   - channels: The channel count the graph expects.
//
// Returns:
//   - *tensor.Dense: A float32 tensor of shape (1, size, size, channels).
//   - error: An error if the glyph has the wrong layout or OpenCV fails.
func GlyphTensor(glyph gocv.Mat, size, channels int) (*tensor.Dense, error) {
	if glyph.Empty() {
		return nil, errors.New("glyph is empty")
	}
	want, ok := images.EightBitType(channels)
	if !ok {
		return nil, errors.Errorf("unsupported channel count %d", channels)
	}
	if glyph.Type() != want {
		return nil, errors.Errorf("glyph has mat type %v with %d channels, want %v", glyph.Type(), glyph.Channels(), want)
	}

	resized := gocv.NewMat()
	defer resized.Close()
	if err := gocv.Resize(glyph, &resized, image.Pt(size, size), 0, 0, gocv.InterpolationCubic); err != nil {
		return nil, errors.Wrap(err, "resize glyph")
	}

	pixels, err := resized.DataPtrUint8()
	if err != nil {
		return nil, errors.Wrap(err, "read glyph")
	}

	data := make([]float32, len(pixels))
	for i, p := range pixels {
		data[i] = float32(p)
	}
	Normalize(data, NormalizeMin, NormalizeMax)

	return tensor.New(tensor.WithShape(1, size, size, channels), tensor.WithBacking(data)), nil
}

// GlyphTensorFromImage prepares a decoded glyph image for a 3-channel graph.
//
// It mirrors GlyphTensor for callers holding an image.Image: bicubic resize, BGR channel order
// to match frames from OpenCV, min-max normalisation and NHWC layout.
func GlyphTensorFromImage(img image.Image, size int) (*tensor.Dense, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, errors.New("glyph image is empty")
	}

	img = resize.Resize(uint(size), uint(size), img, resize.Bicubic)
	bounds := img.Bounds()

	data := make([]float32, 0, size*size*3)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			data = append(data, float32(b>>8), float32(g>>8), float32(r>>8))
		}
	}
	Normalize(data, NormalizeMin, NormalizeMax)

	return tensor.New(tensor.WithShape(1, size, size, 3), tensor.WithBacking(data)), nil
}
