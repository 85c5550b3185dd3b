// Package images - Frame validation and Mat helpers shared by the plate pipeline.
package images

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ErrInvalidFrame is returned when a frame is empty or not an 8-bit, 3-channel BGR raster.
var ErrInvalidFrame = errors.New("invalid frame")

// ValidateFrame checks that a frame can be fed into the detection pipeline.
//
// Arguments:
//   - frame: The BGR frame to validate.
//
// Returns:
//   - error: ErrInvalidFrame (wrapped with the reason) if the frame cannot be processed.
func ValidateFrame(frame gocv.Mat) error {
	if frame.Empty() {
		return errors.Wrap(ErrInvalidFrame, "frame is empty")
	}
	if frame.Channels() != 3 {
		return errors.Wrapf(ErrInvalidFrame, "expected 3 channels, got %d", frame.Channels())
	}
	if frame.Type() != gocv.MatTypeCV8UC3 {
		return errors.Wrapf(ErrInvalidFrame, "expected 8-bit BGR, got mat type %v", frame.Type())
	}
	return nil
}

// EightBitType returns the 8-bit Mat type for the given channel count.
func EightBitType(channels int) (gocv.MatType, bool) {
	switch channels {
	case 1:
		return gocv.MatTypeCV8UC1, true
	case 3:
		return gocv.MatTypeCV8UC3, true
	case 4:
		return gocv.MatTypeCV8UC4, true
	}
	return 0, false
}
