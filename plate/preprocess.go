package plate

import (
	"image"

	"github.com/nvr-ai/go-lpr/images"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Preprocessor turns a frame into a binary mask where plate-like regions of dense vertical
// edges are filled in.
type Preprocessor struct {
	blur   image.Point
	kernel gocv.Mat
}

// NewPreprocessor creates a preprocessor and its closing element.
func NewPreprocessor(cfg Config) *Preprocessor {
	return &Preprocessor{
		blur:   image.Pt(cfg.BlurKernel, cfg.BlurKernel),
		kernel: gocv.GetStructuringElement(gocv.MorphRect, cfg.MorphKernel.Point()),
	}
}

// Process computes the plate mask of a frame.
//
// Order of operations:
//  1. Gaussian blur to suppress sensor noise.
//  2. Grayscale conversion.
//  3. Horizontal Sobel with 8-bit output, keeping only dark-to-bright transitions.
//  4. Otsu binarisation.
//  5. Morphological close with the wide rectangular element, merging character edges.
//
// Arguments:
//   - frame: The BGR frame. It is not modified.
//
// Returns:
//   - gocv.Mat: The single-channel mask, owned by the caller.
//   - error: images.ErrInvalidFrame for unusable frames, or an OpenCV failure.
func (p *Preprocessor) Process(frame gocv.Mat) (gocv.Mat, error) {
	if err := images.ValidateFrame(frame); err != nil {
		return gocv.NewMat(), err
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	if err := gocv.GaussianBlur(frame, &blurred, p.blur, 0, 0, gocv.BorderDefault); err != nil {
		return gocv.NewMat(), errors.Wrap(err, "blur")
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if err := gocv.CvtColor(blurred, &gray, gocv.ColorBGRToGray); err != nil {
		return gocv.NewMat(), errors.Wrap(err, "convert to gray")
	}

	sobel := gocv.NewMat()
	defer sobel.Close()
	if err := gocv.Sobel(gray, &sobel, gocv.MatTypeCV8U, 1, 0, 3, 1, 0, gocv.BorderDefault); err != nil {
		return gocv.NewMat(), errors.Wrap(err, "sobel")
	}

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(sobel, &thresh, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)

	mask := gocv.NewMat()
	if err := gocv.MorphologyEx(thresh, &mask, gocv.MorphClose, p.kernel); err != nil {
		mask.Close()
		return gocv.NewMat(), errors.Wrap(err, "close")
	}
	return mask, nil
}

// Close releases the structuring element.
func (p *Preprocessor) Close() error {
	return p.kernel.Close()
}
