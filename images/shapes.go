// Package images - Rectangle helpers used by the plate geometry checks.
package images

import (
	"image"
)

// Ratio returns the long-side over short-side ratio of a w x h box, so the result is always >= 1.
//
// Arguments:
//   - w: The width of the box.
//   - h: The height of the box.
//
// Returns:
//   - float64: The ratio, or 0 when either side is not positive.
func Ratio(w, h float64) float64 {
	if w <= 0 || h <= 0 {
		return 0
	}
	r := w / h
	if r < 1 {
		r = 1 / r
	}
	return r
}

// RectRatio is Ratio applied to an image.Rectangle.
func RectRatio(r image.Rectangle) float64 {
	return Ratio(float64(r.Dx()), float64(r.Dy()))
}

// RectArea returns the area of a rectangle in pixels.
func RectArea(r image.Rectangle) int {
	return r.Dx() * r.Dy()
}

// PadRect grows a rectangle by pad pixels on each side and clamps the result to bounds.
//
// A side that already touches the bounds stays on the bound.
//
// Arguments:
//   - r: The rectangle to grow.
//   - pad: The margin to add on every side.
//   - bounds: The rectangle the result must stay inside.
//
// Returns:
//   - image.Rectangle: The padded and clamped rectangle.
func PadRect(r image.Rectangle, pad int, bounds image.Rectangle) image.Rectangle {
	return image.Rect(r.Min.X-pad, r.Min.Y-pad, r.Max.X+pad, r.Max.Y+pad).Intersect(bounds)
}

// Bounds returns the full-image rectangle of a cols x rows raster.
func Bounds(cols, rows int) image.Rectangle {
	return image.Rect(0, 0, cols, rows)
}
