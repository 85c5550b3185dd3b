// Package fixture draws synthetic frames, plates and glyphs for pipeline tests.
package fixture

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Slot is the content of one character position on a synthetic plate.
type Slot int

const (
	// Glyph is a 10x34 solid bar shaped like a character.
	Glyph Slot = iota
	// Stroke is a 2px wide bar. It keeps the plate edges connected but is too thin to be a glyph.
	Stroke
)

const (
	// SlotWidth is the horizontal pitch of character positions.
	SlotWidth = 22
	// PlateHeight is the height of a synthetic plate.
	PlateHeight = 46
	// FrameWidth and FrameHeight are the size of frames built by PlateFrame.
	FrameWidth  = 640
	FrameHeight = 480
)

var (
	Black = color.RGBA{R: 0, G: 0, B: 0, A: 0}
	White = color.RGBA{R: 255, G: 255, B: 255, A: 0}
)

// Frame returns a width x height BGR frame filled with a single grey level.
func Frame(width, height int, level float64) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(level, level, level, 0), height, width, gocv.MatTypeCV8UC3)
}

// Slots returns total slots where the first glyphs are Glyph and the rest Stroke.
func Slots(glyphs, total int) []Slot {
	out := make([]Slot, total)
	for i := glyphs; i < total; i++ {
		out[i] = Stroke
	}
	return out
}

// PlateBox returns the box of a plate with n slots drawn at origin.
func PlateBox(origin image.Point, n int) image.Rectangle {
	return image.Rect(origin.X, origin.Y, origin.X+SlotWidth*n, origin.Y+PlateHeight)
}

// DrawPlate draws a white plate at origin with one dark bar per slot.
func DrawPlate(frame *gocv.Mat, origin image.Point, slots []Slot) image.Rectangle {
	box := PlateBox(origin, len(slots))
	gocv.Rectangle(frame, box, White, -1)

	top, bottom := origin.Y+6, origin.Y+40
	for i, s := range slots {
		right := origin.X + 16 + SlotWidth*i
		left := right - 10
		if s == Stroke {
			left = right - 2
		}
		gocv.Rectangle(frame, image.Rect(left, top, right, bottom), Black, -1)
	}
	return box
}

// PlateFrame returns a black 640x480 frame with one plate at (200, 200).
func PlateFrame(glyphs, total int) gocv.Mat {
	frame := Frame(FrameWidth, FrameHeight, 0)
	DrawPlate(&frame, image.Pt(200, 200), Slots(glyphs, total))
	return frame
}

// GlyphImage returns a white size x size BGR glyph with a dark bar inset by margin pixels.
func GlyphImage(size, margin int) gocv.Mat {
	img := Frame(size, size, 255)
	bar := image.Rect(margin+size/4, margin, size-margin-size/4, size-margin)
	gocv.Rectangle(&img, bar, Black, -1)
	return img
}
