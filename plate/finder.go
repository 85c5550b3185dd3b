package plate

import (
	"image"

	"github.com/nvr-ai/go-lpr/profiler"
	"github.com/nvr-ai/go-lpr/segment"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"
)

// Segmenter splits a plate region into ordered glyphs.
type Segmenter interface {
	Segment(region gocv.Mat) ([]segment.Glyph, error)
}

// Plate is one plate found in a frame, with everything needed to recognise and locate it.
type Plate struct {
	// Region is the colour crop the glyphs were segmented from.
	Region gocv.Mat
	// Glyphs are the character crops ordered left to right.
	Glyphs []segment.Glyph
	// Candidate is the candidate box in frame coordinates.
	Candidate image.Rectangle
	// Box is the refined plate box in frame coordinates.
	Box image.Rectangle
	// Origin is the top-left corner of Box.
	Origin image.Point
	// Angle is the plate tilt in degrees.
	Angle float64
}

// Close releases the region and the glyph crops.
func (p *Plate) Close() error {
	segment.CloseAll(p.Glyphs)
	p.Glyphs = nil
	return p.Region.Close()
}

// ClosePlates releases every plate in the slice.
func ClosePlates(plates []Plate) {
	for i := range plates {
		plates[i].Close()
	}
}

// Finder composes the preprocessor, geometry filter, cleaner and segmenter.
//
// A Finder holds no per-frame state, so FindPossiblePlates may be called from several
// goroutines.
type Finder struct {
	cfg      Config
	pre      *Preprocessor
	geometry *GeometryFilter
	cleaner  *Cleaner
	seg      Segmenter
	log      logrus.FieldLogger
	rec      profiler.Recorder
}

// Option configures a Finder.
type Option func(*Finder)

// WithLogger sets the logger used for candidate diagnostics.
func WithLogger(log logrus.FieldLogger) Option {
	return func(f *Finder) {
		f.log = log
	}
}

// WithRecorder sets the recorder that receives stage timings.
func WithRecorder(rec profiler.Recorder) Option {
	return func(f *Finder) {
		f.rec = rec
	}
}

// NewFinder creates a plate finder.
//
// Arguments:
//   - cfg: The detection heuristics.
//   - seg: The segmenter applied to every cleaned candidate.
//   - opts: Optional logger and recorder.
//
// Returns:
//   - *Finder: The finder. Call Close to release its OpenCV resources.
//   - error: An error if the configuration is invalid.
func NewFinder(cfg Config, seg Segmenter, opts ...Option) (*Finder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid plate config")
	}
	if seg == nil {
		return nil, errors.New("segmenter is required")
	}

	f := &Finder{
		cfg:      cfg,
		pre:      NewPreprocessor(cfg),
		geometry: NewGeometryFilter(cfg),
		cleaner:  NewCleaner(cfg),
		seg:      seg,
		log:      logrus.StandardLogger(),
		rec:      profiler.Nop{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Close releases the preprocessor's structuring element.
func (f *Finder) Close() error {
	return f.pre.Close()
}

// FindPossiblePlates returns every plate found in a frame.
//
// Candidates come from the gradient mask and rotated-rectangle checks. Each one is cleaned,
// segmented and kept only with exactly RequiredGlyphs glyphs. Rejections are not errors.
// Plates are returned in contour discovery order even when Workers > 1.
//
// Arguments:
//   - frame: The BGR frame. It is not modified and not retained.
//
// Returns:
//   - []Plate: The plates, possibly empty. The caller must Close them.
//   - error: images.ErrInvalidFrame for unusable frames, or an OpenCV failure.
func (f *Finder) FindPossiblePlates(frame gocv.Mat) ([]Plate, error) {
	done := f.rec.StartOperation("plate.preprocess")
	mask, err := f.pre.Process(frame)
	done()
	if err != nil {
		return nil, err
	}
	defer mask.Close()

	done = f.rec.StartOperation("plate.candidates")
	cands := f.geometry.Candidates(frame, mask)
	done()
	f.rec.RecordMetric("plate.candidates", float64(len(cands)))

	results := make([]*Plate, len(cands))
	var g errgroup.Group
	g.SetLimit(f.cfg.Workers)
	for i := range cands {
		g.Go(func() error {
			p, err := f.evaluate(cands[i])
			if err != nil {
				return err
			}
			results[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, p := range results {
			if p != nil {
				p.Close()
			}
		}
		return nil, err
	}

	plates := make([]Plate, 0, len(cands))
	for _, p := range results {
		if p != nil {
			plates = append(plates, *p)
		}
	}
	f.rec.RecordMetric("plate.found", float64(len(plates)))
	return plates, nil
}

// evaluate cleans and segments one candidate. It takes ownership of the candidate region:
// the region moves into the returned plate or is released.
func (f *Finder) evaluate(cand Candidate) (*Plate, error) {
	log := f.log.WithFields(logrus.Fields{"candidate": cand.Index, "box": cand.Box})

	done := f.rec.StartOperation("plate.clean")
	cleaned, ok, err := f.cleaner.Clean(cand)
	done()
	if err != nil || !ok {
		cand.Region.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "clean candidate %d", cand.Index)
		}
		log.Debug("candidate rejected by cleaning")
		return nil, nil
	}

	done = f.rec.StartOperation("plate.segment")
	glyphs, err := f.seg.Segment(cleaned.Region)
	done()
	if err != nil {
		cand.Region.Close()
		return nil, errors.Wrapf(err, "segment candidate %d", cand.Index)
	}

	if !f.glyphCountOK(len(glyphs)) {
		log.WithField("glyphs", len(glyphs)).Debug("candidate rejected by glyph count")
		segment.CloseAll(glyphs)
		cand.Region.Close()
		return nil, nil
	}

	box := cleaned.Box.Add(cand.Box.Min)
	return &Plate{
		Region:    cand.Region,
		Glyphs:    glyphs,
		Candidate: cand.Box,
		Box:       box,
		Origin:    box.Min,
		Angle:     cand.Angle,
	}, nil
}

func (f *Finder) glyphCountOK(n int) bool {
	if f.cfg.RequiredGlyphs == 0 {
		return n > 0
	}
	return n == f.cfg.RequiredGlyphs
}

// Mask exposes the preprocessing stage for debugging output. The caller owns the mask.
func (f *Finder) Mask(frame gocv.Mat) (gocv.Mat, error) {
	return f.pre.Process(frame)
}

var _ Segmenter = (*segment.Segmenter)(nil)
