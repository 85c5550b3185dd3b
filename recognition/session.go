package recognition

import (
	"image"
	"strings"

	"github.com/nvr-ai/go-lpr/plate"
	"github.com/nvr-ai/go-lpr/profiler"
	"github.com/nvr-ai/go-lpr/segment"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// PlateFinder locates plates and their glyphs in a frame.
type PlateFinder interface {
	FindPossiblePlates(frame gocv.Mat) ([]plate.Plate, error)
}

// PlateResult is one recognised plate.
type PlateResult struct {
	// Text is the concatenation of the classified labels, left to right.
	Text string `json:"text"`
	// Box is the refined plate box in frame coordinates.
	Box image.Rectangle `json:"box"`
	// Origin is the top-left corner of Box.
	Origin image.Point `json:"origin"`
	// Angle is the plate tilt in degrees.
	Angle float64 `json:"angle"`
	// Glyphs are the classified glyphs, in plate order.
	Glyphs []ClassifiedGlyph `json:"glyphs"`
	// Skipped counts glyphs that failed classification.
	Skipped int `json:"skipped"`
}

// Session runs the full pipeline: plate finding, then glyph classification.
//
// A Session keeps no per-frame state and may be shared between goroutines.
type Session struct {
	finder     PlateFinder
	classifier *Classifier
	log        logrus.FieldLogger
	rec        profiler.Recorder
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger used to report skipped glyphs.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Session) {
		s.log = log
	}
}

// WithRecorder sets the recorder that receives classification timings.
func WithRecorder(rec profiler.Recorder) Option {
	return func(s *Session) {
		s.rec = rec
	}
}

// NewSession creates a recognition session.
//
// Arguments:
//   - finder: Finds plates and their glyphs in a frame.
//   - classifier: Labels individual glyphs.
//   - opts: Optional logger and recorder.
//
// Returns:
//   - *Session: The session.
//   - error: An error if a collaborator is missing.
func NewSession(finder PlateFinder, classifier *Classifier, opts ...Option) (*Session, error) {
	if finder == nil {
		return nil, errors.New("plate finder is nil")
	}
	if classifier == nil {
		return nil, errors.New("classifier is nil")
	}

	s := &Session{
		finder:     finder,
		classifier: classifier,
		log:        logrus.StandardLogger(),
		rec:        profiler.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ClassifyGlyph classifies a single glyph crop.
func (s *Session) ClassifyGlyph(glyph gocv.Mat) (ClassifiedGlyph, error) {
	defer s.rec.StartOperation("recognition.classify")()
	return s.classifier.Classify(glyph)
}

// RecognizePlate classifies the glyphs of one plate in order and concatenates their labels.
//
// A glyph that fails classification is logged and skipped, so the text may be shorter than
// the glyph count. The returned slice holds the glyphs that were classified.
func (s *Session) RecognizePlate(glyphs []segment.Glyph) (string, []ClassifiedGlyph) {
	var b strings.Builder
	classified := make([]ClassifiedGlyph, 0, len(glyphs))

	for i := range glyphs {
		g, err := s.ClassifyGlyph(glyphs[i].Image)
		if err != nil {
			s.log.WithError(err).WithField("glyph", i).Warn("skipping glyph")
			continue
		}
		g.Index = i
		b.WriteString(g.Label)
		classified = append(classified, g)
	}

	return b.String(), classified
}

// Recognize finds and reads every plate in a frame.
//
// Arguments:
//   - frame: The BGR frame. It is not modified and not retained.
//
// Returns:
//   - []PlateResult: One result per plate, in discovery order. Empty when nothing was found.
//   - error: images.ErrInvalidFrame for unusable frames, or an OpenCV failure.
func (s *Session) Recognize(frame gocv.Mat) ([]PlateResult, error) {
	plates, err := s.finder.FindPossiblePlates(frame)
	if err != nil {
		return nil, err
	}
	defer plate.ClosePlates(plates)

	results := make([]PlateResult, 0, len(plates))
	for _, p := range plates {
		text, glyphs := s.RecognizePlate(p.Glyphs)
		results = append(results, PlateResult{
			Text:    text,
			Box:     p.Box,
			Origin:  p.Origin,
			Angle:   p.Angle,
			Glyphs:  glyphs,
			Skipped: len(p.Glyphs) - len(glyphs),
		})
	}
	s.rec.RecordMetric("recognition.plates", float64(len(results)))
	return results, nil
}
