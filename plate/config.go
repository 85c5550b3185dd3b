// Package plate - License plate candidate detection on camera frames.
package plate

import (
	"image"

	"github.com/pkg/errors"
)

// Range is a closed interval [Min, Max].
type Range struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Contains reports whether v lies in the closed interval.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Size is a kernel size in pixels.
type Size struct {
	Width  int `json:"width"  yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Point returns the size as an image.Point for OpenCV calls.
func (s Size) Point() image.Point {
	return image.Pt(s.Width, s.Height)
}

// Config holds the plate detection heuristics.
type Config struct {
	// Area bounds the plate box area in pixels, inclusive.
	Area Range `json:"area" yaml:"area"`
	// PreRatio bounds the long/short side ratio of a contour's rotated rectangle.
	PreRatio Range `json:"pre_ratio" yaml:"pre_ratio"`
	// Ratio bounds the long/short side ratio of the refined plate box.
	Ratio Range `json:"ratio" yaml:"ratio"`
	// MaxTilt is the largest accepted plate tilt in degrees.
	MaxTilt float64 `json:"max_tilt" yaml:"max_tilt"`
	// BlurKernel is the Gaussian blur kernel size (odd).
	BlurKernel int `json:"blur_kernel" yaml:"blur_kernel"`
	// MorphKernel is the rectangular closing element bridging gaps between character edges.
	MorphKernel Size `json:"morph_kernel" yaml:"morph_kernel"`
	// CleanBlockSize and CleanOffset drive the adaptive threshold of the cleaning pass.
	CleanBlockSize int     `json:"clean_block_size" yaml:"clean_block_size"`
	CleanOffset    float32 `json:"clean_offset"     yaml:"clean_offset"`
	// RequiredGlyphs is the exact glyph count a plate must have. Zero accepts any non-zero count.
	RequiredGlyphs int `json:"required_glyphs" yaml:"required_glyphs"`
	// Workers is the number of candidates evaluated concurrently within a frame.
	Workers int `json:"workers" yaml:"workers"`
}

// DefaultConfig returns the plate detection defaults.
func DefaultConfig() Config {
	return Config{
		Area:           Range{Min: 4500, Max: 30000},
		PreRatio:       Range{Min: 2.5, Max: 7},
		Ratio:          Range{Min: 3, Max: 6},
		MaxTilt:        15,
		BlurKernel:     7,
		MorphKernel:    Size{Width: 22, Height: 3},
		CleanBlockSize: 11,
		CleanOffset:    2,
		RequiredGlyphs: 8,
		Workers:        1,
	}
}

// Validate checks the configuration for values OpenCV or the filters cannot work with.
func (c Config) Validate() error {
	if c.Area.Min <= 0 || c.Area.Min > c.Area.Max {
		return errors.Errorf("area range [%v, %v] is invalid", c.Area.Min, c.Area.Max)
	}
	if c.PreRatio.Min < 1 || c.PreRatio.Min > c.PreRatio.Max {
		return errors.Errorf("pre_ratio range [%v, %v] is invalid", c.PreRatio.Min, c.PreRatio.Max)
	}
	if c.Ratio.Min < 1 || c.Ratio.Min > c.Ratio.Max {
		return errors.Errorf("ratio range [%v, %v] is invalid", c.Ratio.Min, c.Ratio.Max)
	}
	if c.MaxTilt < 0 || c.MaxTilt > 90 {
		return errors.Errorf("max_tilt must be within [0, 90], got %v", c.MaxTilt)
	}
	if c.BlurKernel < 1 || c.BlurKernel%2 == 0 {
		return errors.Errorf("blur_kernel must be a positive odd number, got %d", c.BlurKernel)
	}
	if c.MorphKernel.Width < 1 || c.MorphKernel.Height < 1 {
		return errors.Errorf("morph_kernel must be positive, got %dx%d", c.MorphKernel.Width, c.MorphKernel.Height)
	}
	if c.CleanBlockSize < 3 || c.CleanBlockSize%2 == 0 {
		return errors.Errorf("clean_block_size must be an odd number >= 3, got %d", c.CleanBlockSize)
	}
	if c.RequiredGlyphs < 0 {
		return errors.Errorf("required_glyphs must not be negative, got %d", c.RequiredGlyphs)
	}
	if c.Workers < 1 {
		return errors.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	return nil
}
