// Package recognition - Glyph classification and plate string assembly.
package recognition

import (
	"image"

	"github.com/nvr-ai/go-lpr/inference"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"
)

// ErrClassification is returned when a single glyph cannot be classified.
// Sessions skip such glyphs instead of failing the plate.
var ErrClassification = errors.New("glyph classification failed")

// Config holds the classification settings.
type Config struct {
	// MinConfidence rejects top-1 labels scoring below it. Zero keeps every best guess.
	MinConfidence float32 `json:"min_confidence" yaml:"min_confidence"`
}

// DefaultConfig returns the permissive top-1 configuration.
func DefaultConfig() Config {
	return Config{}
}

// Validate checks the classification settings.
func (c Config) Validate() error {
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return errors.Errorf("min confidence must be within [0, 1], got %v", c.MinConfidence)
	}
	return nil
}

// ClassifiedGlyph is the label assigned to one glyph.
type ClassifiedGlyph struct {
	Label string  `json:"label"`
	Score float32 `json:"score"`
	// Index is the glyph's position within its plate.
	Index int `json:"index"`
}

// Classifier assigns a label to glyph images using a shared model.
type Classifier struct {
	model *inference.Model
	cfg   Config
}

// NewClassifier creates a classifier around a loaded model. The model is shared, not owned.
func NewClassifier(model *inference.Model, cfg Config) (*Classifier, error) {
	if model == nil {
		return nil, errors.New("model is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid recognition config")
	}
	return &Classifier{model: model, cfg: cfg}, nil
}

// Classify returns the top-1 label of a glyph crop.
//
// Arguments:
//   - glyph: An 8-bit glyph with the model's channel count.
//
// Returns:
//   - ClassifiedGlyph: The label and its score. Index is left at zero.
//   - error: ErrClassification (wrapped) when the glyph cannot be classified.
func (c *Classifier) Classify(glyph gocv.Mat) (ClassifiedGlyph, error) {
	input, err := inference.GlyphTensor(glyph, c.model.Size(), c.model.Channels())
	if err != nil {
		return ClassifiedGlyph{}, errors.Wrapf(ErrClassification, "prepare glyph: %v", err)
	}
	return c.predict(input)
}

// ClassifyImage classifies a decoded glyph image. The model must take 3 channels.
func (c *Classifier) ClassifyImage(img image.Image) (ClassifiedGlyph, error) {
	if c.model.Channels() != 3 {
		return ClassifiedGlyph{}, errors.Wrapf(ErrClassification, "model takes %d channels, images need 3", c.model.Channels())
	}
	input, err := inference.GlyphTensorFromImage(img, c.model.Size())
	if err != nil {
		return ClassifiedGlyph{}, errors.Wrapf(ErrClassification, "prepare glyph: %v", err)
	}
	return c.predict(input)
}

func (c *Classifier) predict(input *tensor.Dense) (ClassifiedGlyph, error) {
	p, err := c.model.Predict(input)
	if err != nil {
		return ClassifiedGlyph{}, errors.Wrapf(ErrClassification, "inference: %v", err)
	}
	if p.Score < c.cfg.MinConfidence {
		return ClassifiedGlyph{}, errors.Wrapf(ErrClassification,
			"label %q scored %.3f below %.3f", p.Label, p.Score, c.cfg.MinConfidence)
	}
	return ClassifiedGlyph{Label: p.Label, Score: p.Score}, nil
}
