// Package segment - Character segmentation of cleaned plate regions.
package segment

import (
	"github.com/pkg/errors"
)

// Source selects which raster glyph crops are cut from.
type Source string

const (
	// SourceColor crops glyphs from the resized colour plate.
	SourceColor Source = "color"
	// SourceMask crops glyphs from the binarised plate mask, converted to BGR.
	SourceMask Source = "mask"
)

// Config holds the segmentation heuristics.
type Config struct {
	// Width is the fixed width plates are resized to before component analysis.
	Width int `json:"width" yaml:"width"`
	// BlockSize is the adaptive threshold neighbourhood in pixels (odd).
	BlockSize int `json:"block_size" yaml:"block_size"`
	// Offset is subtracted from the local mean before thresholding.
	Offset float32 `json:"offset" yaml:"offset"`
	// MaxAspect is the exclusive upper bound on component width/height.
	MaxAspect float64 `json:"max_aspect" yaml:"max_aspect"`
	// MinSolidity is the exclusive lower bound on contour area / box area.
	MinSolidity float64 `json:"min_solidity" yaml:"min_solidity"`
	// MinHeight and MaxHeight bound the component height as a fraction of the plate height.
	MinHeight float64 `json:"min_height" yaml:"min_height"`
	MaxHeight float64 `json:"max_height" yaml:"max_height"`
	// MinWidth is the exclusive lower bound on the component box width in resized pixels.
	MinWidth int `json:"min_width" yaml:"min_width"`
	// Padding is added on each side of a glyph box before cropping.
	Padding int `json:"padding" yaml:"padding"`
	// Source selects the raster the glyphs are cropped from.
	Source Source `json:"source" yaml:"source"`
}

// DefaultConfig returns the segmentation defaults.
func DefaultConfig() Config {
	return Config{
		Width:       400,
		BlockSize:   29,
		Offset:      15,
		MaxAspect:   1.0,
		MinSolidity: 0.15,
		MinHeight:   0.5,
		MaxHeight:   0.95,
		MinWidth:    14,
		Padding:     4,
		Source:      SourceColor,
	}
}

// Validate checks the configuration for values OpenCV or the filters cannot work with.
func (c Config) Validate() error {
	if c.Width <= 0 {
		return errors.Errorf("width must be positive, got %d", c.Width)
	}
	if c.BlockSize < 3 || c.BlockSize%2 == 0 {
		return errors.Errorf("block_size must be an odd number >= 3, got %d", c.BlockSize)
	}
	if c.MinHeight < 0 || c.MaxHeight > 1 || c.MinHeight >= c.MaxHeight {
		return errors.Errorf("height band (%v, %v) is invalid", c.MinHeight, c.MaxHeight)
	}
	if c.Padding < 0 {
		return errors.Errorf("padding must not be negative, got %d", c.Padding)
	}
	switch c.Source {
	case SourceColor, SourceMask:
	default:
		return errors.Errorf("unknown glyph source %q", c.Source)
	}
	return nil
}
