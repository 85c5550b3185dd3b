package segment

import (
	"image"
	"image/color"
	"sort"

	"github.com/nvr-ai/go-lpr/images"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

var white = color.RGBA{R: 255, G: 255, B: 255, A: 0}

// Glyph is one character crop cut from a plate region.
type Glyph struct {
	// Image is the padded crop, owned by the glyph.
	Image gocv.Mat
	// Box is the unpadded glyph box in resized plate coordinates.
	Box image.Rectangle
	// Padded is the box Image was cut from, clamped to the resized plate.
	Padded image.Rectangle
}

// Close releases the glyph crop.
func (g *Glyph) Close() error {
	return g.Image.Close()
}

// CloseAll releases every glyph in the slice.
func CloseAll(glyphs []Glyph) {
	for i := range glyphs {
		glyphs[i].Close()
	}
}

// Segmenter isolates character glyphs inside a plate region.
type Segmenter struct {
	cfg Config
	log logrus.FieldLogger
}

// Option configures a Segmenter.
type Option func(*Segmenter)

// WithLogger sets the logger used for rejection diagnostics.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Segmenter) {
		s.log = log
	}
}

// NewSegmenter creates a segmenter after validating its configuration.
//
// Arguments:
//   - cfg: The segmentation heuristics.
//   - opts: Optional settings such as the logger.
//
// Returns:
//   - *Segmenter: The segmenter.
//   - error: An error if the configuration is invalid.
func NewSegmenter(cfg Config, opts ...Option) (*Segmenter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid segment config")
	}
	s := &Segmenter{cfg: cfg, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Config returns the configuration the segmenter was built with.
func (s *Segmenter) Config() Config {
	return s.cfg
}

// Segment extracts the glyphs of a plate region ordered left to right.
//
// The region is thresholded on the HSV value channel, resized to the configured width and
// labelled into 8-connected components. Components shaped like characters are merged through
// their convex hulls and every external contour of the result becomes one padded glyph crop.
// The region is never modified.
//
// Arguments:
//   - region: The BGR plate region.
//
// Returns:
//   - []Glyph: The glyphs sorted by ascending x, possibly empty. The caller owns the crops.
//   - error: images.ErrInvalidFrame for unusable input, or an OpenCV failure.
func (s *Segmenter) Segment(region gocv.Mat) ([]Glyph, error) {
	if err := images.ValidateFrame(region); err != nil {
		return nil, err
	}

	mask, err := s.threshold(region)
	if err != nil {
		return nil, err
	}
	defer mask.Close()

	plate, err := images.ResizeToWidth(region, s.cfg.Width, gocv.InterpolationArea)
	if err != nil {
		return nil, errors.Wrap(err, "resize plate")
	}
	defer plate.Close()

	resized, err := images.ResizeToWidth(mask, s.cfg.Width, gocv.InterpolationArea)
	if err != nil {
		return nil, errors.Wrap(err, "resize mask")
	}
	defer resized.Close()
	gocv.Threshold(resized, &resized, 127, 255, gocv.ThresholdBinary)

	hulls, err := s.characterHulls(resized)
	if err != nil {
		return nil, err
	}
	if len(hulls) == 0 {
		return []Glyph{}, nil
	}

	boxes, err := glyphBoxes(hulls, resized.Cols(), resized.Rows())
	if err != nil {
		return nil, err
	}

	source := plate
	if s.cfg.Source == SourceMask {
		bgr := gocv.NewMat()
		defer bgr.Close()
		if err := gocv.CvtColor(resized, &bgr, gocv.ColorGrayToBGR); err != nil {
			return nil, errors.Wrap(err, "convert mask")
		}
		source = bgr
	}

	bounds := images.Bounds(source.Cols(), source.Rows())
	glyphs := make([]Glyph, 0, len(boxes))
	for _, box := range boxes {
		padded := images.PadRect(box, s.cfg.Padding, bounds)
		glyphs = append(glyphs, Glyph{
			Image:  images.Crop(source, padded),
			Box:    box,
			Padded: padded,
		})
	}

	return glyphs, nil
}

// threshold returns the inverted local threshold of the HSV value channel, strokes white.
func (s *Segmenter) threshold(region gocv.Mat) (gocv.Mat, error) {
	hsv := gocv.NewMat()
	defer hsv.Close()
	if err := gocv.CvtColor(region, &hsv, gocv.ColorBGRToHSV); err != nil {
		return gocv.NewMat(), errors.Wrap(err, "convert to hsv")
	}

	channels := gocv.Split(hsv)
	defer func() {
		for _, c := range channels {
			c.Close()
		}
	}()

	mask := gocv.NewMat()
	if err := gocv.AdaptiveThreshold(channels[2], &mask, 255, gocv.AdaptiveThresholdGaussian,
		gocv.ThresholdBinaryInv, s.cfg.BlockSize, s.cfg.Offset); err != nil {
		mask.Close()
		return gocv.NewMat(), errors.Wrap(err, "adaptive threshold")
	}
	return mask, nil
}

// characterHulls returns the convex hull of every component that passes the shape filters.
func (s *Segmenter) characterHulls(mask gocv.Mat) ([][]image.Point, error) {
	labels := gocv.NewMat()
	defer labels.Close()
	stats := gocv.NewMat()
	defer stats.Close()
	centroids := gocv.NewMat()
	defer centroids.Close()

	gocv.ConnectedComponentsWithStats(mask, &labels, &stats, &centroids)

	component := gocv.NewMat()
	defer component.Close()

	plateHeight := float64(mask.Rows())
	var hulls [][]image.Point
	rejected := 0

	// Label 0 is the background.
	for label := 1; label < stats.Rows(); label++ {
		v := float64(label)
		if err := gocv.InRangeWithScalar(labels, gocv.NewScalar(v, v, v, v), gocv.NewScalar(v, v, v, v), &component); err != nil {
			return nil, errors.Wrapf(err, "select component %d", label)
		}

		contour, ok := largestContour(component)
		if !ok {
			continue
		}

		box := boundingRect(contour)
		w, h := float64(box.Dx()), float64(box.Dy())
		if !s.accept(contourArea(contour), w, h, plateHeight) {
			rejected++
			continue
		}

		hull, err := convexHull(contour)
		if err != nil {
			return nil, err
		}
		hulls = append(hulls, hull)
	}

	s.log.WithFields(logrus.Fields{
		"components": stats.Rows() - 1,
		"accepted":   len(hulls),
		"rejected":   rejected,
	}).Debug("segmented plate components")

	return hulls, nil
}

// accept applies the character shape filters to one component.
func (s *Segmenter) accept(area, w, h, plateHeight float64) bool {
	if w <= 0 || h <= 0 || plateHeight <= 0 {
		return false
	}
	aspect := w / h
	solidity := area / (w * h)
	height := h / plateHeight

	return aspect < s.cfg.MaxAspect &&
		solidity > s.cfg.MinSolidity &&
		height > s.cfg.MinHeight && height < s.cfg.MaxHeight &&
		int(w) > s.cfg.MinWidth
}

// glyphBoxes fills the hulls into an accumulator and returns its external contour boxes
// sorted by x. Ties keep discovery order.
func glyphBoxes(hulls [][]image.Point, cols, rows int) ([]image.Rectangle, error) {
	acc := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), rows, cols, gocv.MatTypeCV8UC1)
	defer acc.Close()

	pv := gocv.NewPointsVectorFromPoints(hulls)
	defer pv.Close()
	if err := gocv.DrawContours(&acc, pv, -1, white, -1); err != nil {
		return nil, errors.Wrap(err, "fill hulls")
	}

	contours := gocv.FindContours(acc, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	boxes := make([]image.Rectangle, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		boxes = append(boxes, gocv.BoundingRect(contours.At(i)))
	}

	sort.SliceStable(boxes, func(i, j int) bool {
		return boxes[i].Min.X < boxes[j].Min.X
	})
	return boxes, nil
}

// largestContour returns the points of the largest external contour of a binary mask.
func largestContour(mask gocv.Mat) ([]image.Point, bool) {
	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	best, bestArea := -1, -1.0
	for i := 0; i < contours.Size(); i++ {
		area := gocv.ContourArea(contours.At(i))
		if area > bestArea {
			best, bestArea = i, area
		}
	}
	if best < 0 {
		return nil, false
	}
	return contours.At(best).ToPoints(), true
}

func boundingRect(points []image.Point) image.Rectangle {
	pv := gocv.NewPointVectorFromPoints(points)
	defer pv.Close()
	return gocv.BoundingRect(pv)
}

func contourArea(points []image.Point) float64 {
	pv := gocv.NewPointVectorFromPoints(points)
	defer pv.Close()
	return gocv.ContourArea(pv)
}

// convexHull returns the hull of a contour using OpenCV's hull indices.
func convexHull(points []image.Point) ([]image.Point, error) {
	pv := gocv.NewPointVectorFromPoints(points)
	defer pv.Close()

	indices := gocv.NewMat()
	defer indices.Close()
	if err := gocv.ConvexHull(pv, &indices, false, false); err != nil {
		return nil, errors.Wrap(err, "convex hull")
	}

	hull := make([]image.Point, 0, indices.Rows())
	for i := 0; i < indices.Rows(); i++ {
		idx := int(indices.GetIntAt(i, 0))
		if idx >= 0 && idx < len(points) {
			hull = append(hull, points[idx])
		}
	}
	if len(hull) == 0 {
		return points, nil
	}
	return hull, nil
}
