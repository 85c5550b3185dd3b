package inference

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestNormalize(t *testing.T) {
	data := []float32{0, 51, 255, 127.5}
	Normalize(data, NormalizeMin, NormalizeMax)

	assert.InDelta(t, -0.5, data[0], 1e-6)
	assert.InDelta(t, -0.3, data[1], 1e-6)
	assert.InDelta(t, 0.5, data[2], 1e-6)
	assert.InDelta(t, 0.0, data[3], 1e-6)
}

func TestNormalize_Constant(t *testing.T) {
	data := []float32{9, 9, 9}
	Normalize(data, NormalizeMin, NormalizeMax)
	assert.Equal(t, []float32{-0.5, -0.5, -0.5}, data)

	Normalize(nil, NormalizeMin, NormalizeMax)
}

func glyphMat(t *testing.T) gocv.Mat {
	t.Helper()
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), 60, 30, gocv.MatTypeCV8UC3)
	gocv.Rectangle(&m, image.Rect(10, 10, 20, 50), color.RGBA{A: 255}, -1)
	return m
}

func TestGlyphTensor(t *testing.T) {
	glyph := glyphMat(t)
	defer glyph.Close()

	tt, err := GlyphTensor(glyph, 128, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 128, 128, 3}, []int(tt.Shape()))

	data, ok := float32Data(tt)
	require.True(t, ok)
	lo, hi := data[0], data[0]
	for _, v := range data {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	assert.InDelta(t, NormalizeMin, lo, 1e-6)
	assert.InDelta(t, NormalizeMax, hi, 1e-6)
}

func TestGlyphTensor_Errors(t *testing.T) {
	glyph := glyphMat(t)
	defer glyph.Close()

	_, err := GlyphTensor(glyph, 128, 1)
	assert.Error(t, err, "three channel glyph for a one channel graph")

	_, err = GlyphTensor(glyph, 128, 2)
	assert.Error(t, err)

	empty := gocv.NewMat()
	defer empty.Close()
	_, err = GlyphTensor(empty, 128, 3)
	assert.Error(t, err)
}

func TestGlyphTensorFromImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 30, 60))
	for y := 0; y < 60; y++ {
		for x := 0; x < 30; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	for y := 10; y < 50; y++ {
		for x := 10; x < 20; x++ {
			img.Set(x, y, color.RGBA{A: 255})
		}
	}

	tt, err := GlyphTensorFromImage(img, 64)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 64, 64, 3}, []int(tt.Shape()))

	data, _ := float32Data(tt)
	assert.InDelta(t, NormalizeMax, data[0], 1e-6, "corner is white")

	_, err = GlyphTensorFromImage(image.NewRGBA(image.Rectangle{}), 64)
	assert.Error(t, err)
}
