package plate

import (
	"image"

	"github.com/nvr-ai/go-lpr/images"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Cleaned is a candidate whose interior passed the refined plate check.
type Cleaned struct {
	// Region is the candidate's colour region. It is shared with the candidate.
	Region gocv.Mat
	// Box is the refined plate box relative to Region.
	Box image.Rectangle
}

// Cleaner re-thresholds a candidate locally and keeps it only when its largest interior
// contour has plate proportions.
type Cleaner struct {
	cfg Config
}

// NewCleaner creates a cleaner using the area, ratio and clean threshold settings of cfg.
func NewCleaner(cfg Config) *Cleaner {
	return &Cleaner{cfg: cfg}
}

// Clean refines a candidate.
//
// The bool result is false when the candidate is not a plate; that is a normal outcome.
// The error result is only set when OpenCV fails on the region.
func (c *Cleaner) Clean(cand Candidate) (Cleaned, bool, error) {
	if cand.Region.Empty() {
		return Cleaned{}, false, nil
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if err := gocv.CvtColor(cand.Region, &gray, gocv.ColorBGRToGray); err != nil {
		return Cleaned{}, false, errors.Wrap(err, "convert to gray")
	}

	thresh := gocv.NewMat()
	defer thresh.Close()
	if err := gocv.AdaptiveThreshold(gray, &thresh, 255, gocv.AdaptiveThresholdGaussian, gocv.ThresholdBinary,
		c.cfg.CleanBlockSize, c.cfg.CleanOffset); err != nil {
		return Cleaned{}, false, errors.Wrap(err, "adaptive threshold")
	}

	contours := gocv.FindContours(thresh, gocv.RetrievalExternal, gocv.ChainApproxNone)
	defer contours.Close()

	best, bestArea := -1, -1.0
	for i := 0; i < contours.Size(); i++ {
		if area := gocv.ContourArea(contours.At(i)); area > bestArea {
			best, bestArea = i, area
		}
	}
	if best < 0 {
		return Cleaned{}, false, nil
	}

	box := gocv.BoundingRect(contours.At(best))
	if !c.ratioCheck(box) {
		return Cleaned{}, false, nil
	}
	return Cleaned{Region: cand.Region, Box: box}, true, nil
}

// ratioCheck applies the area rule and the tighter ratio band to a refined box.
func (c *Cleaner) ratioCheck(box image.Rectangle) bool {
	return c.cfg.Area.Contains(float64(images.RectArea(box))) && c.cfg.Ratio.Contains(images.RectRatio(box))
}
