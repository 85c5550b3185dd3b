package plate

import (
	"image"
	"math"

	"github.com/nvr-ai/go-lpr/images"
	"gocv.io/x/gocv"
)

// Candidate is a region of the frame whose contour passed the geometry checks.
type Candidate struct {
	// Index is the discovery order of the contour in the mask.
	Index int
	// Box is the contour's axis-aligned bounding box, clipped to the frame.
	Box image.Rectangle
	// Region is a copy of the frame inside Box.
	Region gocv.Mat
	// Angle is the plate tilt in degrees.
	Angle float64
}

// GeometryFilter selects plate-shaped contours from a mask.
type GeometryFilter struct {
	cfg Config
}

// NewGeometryFilter creates a filter using the area, pre-ratio and tilt settings of cfg.
func NewGeometryFilter(cfg Config) *GeometryFilter {
	return &GeometryFilter{cfg: cfg}
}

// ExtractContours returns the external contours of a mask. The caller closes the vector.
func (g *GeometryFilter) ExtractContours(mask gocv.Mat) gocv.PointsVector {
	return gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxNone)
}

// TiltAngle returns the tilt in degrees of a rotated rectangle's long side from the horizontal.
//
// Both angle conventions OpenCV has used for minAreaRect are accepted: [-90, 0) and (0, 90].
// A (w, h, a) rectangle with a > 0 is the same rectangle as (h, w, a-90).
func TiltAngle(width, height, angle float64) float64 {
	if angle > 0 {
		angle -= 90
		width, height = height, width
	}
	if width > height {
		return -angle
	}
	return 90 + angle
}

// Check applies the rotated-rectangle rules to one contour.
//
// Returns:
//   - float64: The tilt angle.
//   - bool: Whether the contour is plate shaped.
func (g *GeometryFilter) Check(contour gocv.PointVector) (float64, bool) {
	rect := gocv.MinAreaRect2f(contour)
	w, h := float64(rect.Width), float64(rect.Height)
	if w == 0 || h == 0 {
		return 0, false
	}

	angle := TiltAngle(w, h, rect.Angle)
	if math.Abs(angle) > g.cfg.MaxTilt {
		return angle, false
	}

	return angle, g.cfg.Area.Contains(w*h) && g.cfg.PreRatio.Contains(images.Ratio(w, h))
}

// Candidates returns a candidate for every contour of the mask that passes Check, in contour
// discovery order. The caller owns the candidate regions.
func (g *GeometryFilter) Candidates(frame, mask gocv.Mat) []Candidate {
	contours := g.ExtractContours(mask)
	defer contours.Close()

	bounds := images.Bounds(frame.Cols(), frame.Rows())
	var out []Candidate
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		angle, ok := g.Check(contour)
		if !ok {
			continue
		}

		box := gocv.BoundingRect(contour).Intersect(bounds)
		if box.Empty() {
			continue
		}
		out = append(out, Candidate{
			Index:  i,
			Box:    box,
			Region: images.Crop(frame, box),
			Angle:  angle,
		})
	}
	return out
}

// CloseCandidates releases the regions of the given candidates.
func CloseCandidates(cands []Candidate) {
	for i := range cands {
		cands[i].Region.Close()
	}
}
