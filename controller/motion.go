// Package controller - Frame differencing used to skip recognition on static scenes.
package controller

import (
	"image"
	"math"
	"sync"

	"github.com/nvr-ai/go-lpr/images"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// MotionConfig contains configuration parameters for motion detection.
type MotionConfig struct {
	// MinContourArea is the minimum area of a changed region to count as motion.
	MinContourArea float64 `json:"min_contour_area" yaml:"min_contour_area"`
	// DifferenceThreshold is the per-pixel intensity change that marks a pixel as changed.
	DifferenceThreshold float64 `json:"difference_threshold" yaml:"difference_threshold"`
	// BlurKernelSize controls noise reduction, must be odd.
	BlurKernelSize int `json:"blur_kernel_size" yaml:"blur_kernel_size"`
}

// DefaultMotionConfig returns a default configuration for motion detection.
func DefaultMotionConfig() MotionConfig {
	return MotionConfig{
		MinContourArea:      500.0,
		DifferenceThreshold: 30.0,
		BlurKernelSize:      21,
	}
}

// Validate checks the motion configuration.
func (c MotionConfig) Validate() error {
	if c.BlurKernelSize <= 0 || c.BlurKernelSize%2 == 0 {
		return errors.Errorf("blur kernel size must be odd and positive, got %d", c.BlurKernelSize)
	}
	if c.DifferenceThreshold <= 0 || c.DifferenceThreshold >= 255 {
		return errors.Errorf("difference threshold must be within (0, 255), got %v", c.DifferenceThreshold)
	}
	return nil
}

// MotionDetector scores the change between consecutive frames.
//
// The score is the changed area over the frame area, in [0, 1]. The first frame after
// construction or Reset scores 1 so it is always processed.
type MotionDetector struct {
	cfg      MotionConfig
	mu       sync.Mutex
	previous gocv.Mat
	primed   bool
}

// NewMotionDetector creates a frame differencing motion detector.
func NewMotionDetector(cfg MotionConfig) (*MotionDetector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid motion config")
	}
	return &MotionDetector{cfg: cfg, previous: gocv.NewMat()}, nil
}

// DetectMotion returns the motion score of frame against the previous frame.
//
// Arguments:
//   - frame: The BGR frame to analyse. It is not retained.
//
// Returns:
//   - float64: Motion score between 0.0 and 1.0.
//   - error: An error if the frame is invalid or OpenCV fails.
func (md *MotionDetector) DetectMotion(frame gocv.Mat) (float64, error) {
	if err := images.ValidateFrame(frame); err != nil {
		return 0, err
	}

	md.mu.Lock()
	defer md.mu.Unlock()

	gray := gocv.NewMat()
	defer gray.Close()
	if err := gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray); err != nil {
		return 0, errors.Wrap(err, "convert to gray")
	}

	blurred := gocv.NewMat()
	k := md.cfg.BlurKernelSize
	if err := gocv.GaussianBlur(gray, &blurred, image.Pt(k, k), 0, 0, gocv.BorderDefault); err != nil {
		blurred.Close()
		return 0, errors.Wrap(err, "blur")
	}

	if !md.primed || md.previous.Rows() != blurred.Rows() || md.previous.Cols() != blurred.Cols() {
		md.swap(blurred)
		return 1, nil
	}

	score, err := md.difference(blurred)
	if err != nil {
		blurred.Close()
		return 0, err
	}
	md.swap(blurred)
	return score, nil
}

// swap makes current the reference frame, taking ownership of it.
func (md *MotionDetector) swap(current gocv.Mat) {
	md.previous.Close()
	md.previous = current
	md.primed = true
}

func (md *MotionDetector) difference(current gocv.Mat) (float64, error) {
	diff := gocv.NewMat()
	defer diff.Close()
	if err := gocv.AbsDiff(current, md.previous, &diff); err != nil {
		return 0, errors.Wrap(err, "frame difference")
	}

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(diff, &mask, float32(md.cfg.DifferenceThreshold), 255, gocv.ThresholdBinary)

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var moving float64
	for i := 0; i < contours.Size(); i++ {
		if area := gocv.ContourArea(contours.At(i)); area >= md.cfg.MinContourArea {
			moving += area
		}
	}

	frameArea := float64(current.Rows() * current.Cols())
	return math.Min(moving/frameArea, 1.0), nil
}

// Reset forgets the reference frame. Use it when switching streams.
func (md *MotionDetector) Reset() {
	md.mu.Lock()
	defer md.mu.Unlock()
	md.previous.Close()
	md.previous = gocv.NewMat()
	md.primed = false
}

// Close releases the reference frame.
func (md *MotionDetector) Close() error {
	md.mu.Lock()
	defer md.mu.Unlock()
	md.primed = false
	return md.previous.Close()
}
