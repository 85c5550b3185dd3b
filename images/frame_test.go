package images

import (
	"image"
	"image/color"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestValidateFrame(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()

	gray := gocv.NewMatWithSize(20, 20, gocv.MatTypeCV8UC1)
	defer gray.Close()

	float := gocv.NewMatWithSize(20, 20, gocv.MatTypeCV32FC3)
	defer float.Close()

	bgr := gocv.NewMatWithSize(20, 20, gocv.MatTypeCV8UC3)
	defer bgr.Close()

	assert.True(t, errors.Is(ValidateFrame(empty), ErrInvalidFrame))
	assert.True(t, errors.Is(ValidateFrame(gray), ErrInvalidFrame))
	assert.True(t, errors.Is(ValidateFrame(float), ErrInvalidFrame))
	assert.NoError(t, ValidateFrame(bgr))
}

func TestEightBitType(t *testing.T) {
	typ, ok := EightBitType(3)
	assert.True(t, ok)
	assert.Equal(t, gocv.MatTypeCV8UC3, typ)

	_, ok = EightBitType(2)
	assert.False(t, ok)
}

func TestResizeToWidth(t *testing.T) {
	src := gocv.NewMatWithSize(50, 200, gocv.MatTypeCV8UC3)
	defer src.Close()

	dst, err := ResizeToWidth(src, 400, gocv.InterpolationArea)
	require.NoError(t, err)
	defer dst.Close()

	assert.Equal(t, 400, dst.Cols())
	assert.Equal(t, 100, dst.Rows())

	empty := gocv.NewMat()
	defer empty.Close()
	_, err = ResizeToWidth(empty, 400, gocv.InterpolationArea)
	assert.Error(t, err)
}

func TestCrop_IsDeepCopy(t *testing.T) {
	src := gocv.NewMatWithSize(40, 40, gocv.MatTypeCV8UC3)
	defer src.Close()
	before := ComputeMatChecksum(src)

	crop := Crop(src, image.Rect(30, 30, 60, 60))
	defer crop.Close()
	assert.Equal(t, 10, crop.Cols())
	assert.Equal(t, 10, crop.Rows())

	gocv.Rectangle(&crop, image.Rect(0, 0, 10, 10), color.RGBA{R: 255, G: 255, B: 255}, -1)
	assert.Equal(t, before, ComputeMatChecksum(src))

	outside := Crop(src, image.Rect(50, 50, 60, 60))
	defer outside.Close()
	assert.True(t, outside.Empty())
}

func TestFormatFromPath(t *testing.T) {
	f, ok := FormatFromPath("frames/frame-12.WEBP")
	assert.True(t, ok)
	assert.Equal(t, FormatWebP, f)

	_, ok = FormatFromPath("notes.txt")
	assert.False(t, ok)
}

func TestDrawPlate(t *testing.T) {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 120, 240, gocv.MatTypeCV8UC3)
	defer img.Close()
	before := ComputeMatChecksum(img)

	DrawPlate(&img, image.Rect(20, 4, 200, 50), "AB123CD7")
	assert.NotEqual(t, before, ComputeMatChecksum(img))
	assert.Equal(t, 240, img.Cols(), "the label is drawn inside the frame")

	box := img.Clone()
	defer box.Close()
	DrawPlate(&box, image.Rect(20, 60, 200, 100), "")
	assert.NotEqual(t, ComputeMatChecksum(img), ComputeMatChecksum(box))
}
