package images

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

var (
	plateColor = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	textColor  = color.RGBA{R: 255, G: 255, B: 255, A: 0}
)

// DrawPlate draws the plate box and its recognised text onto img.
func DrawPlate(img *gocv.Mat, box image.Rectangle, text string) {
	gocv.Rectangle(img, box, plateColor, 2)
	if text == "" {
		return
	}

	size := gocv.GetTextSize(text, gocv.FontHersheySimplex, 0.7, 2)
	y := box.Min.Y - 6
	if y-size.Y < 0 {
		y = box.Max.Y + size.Y + 6
	}
	label := image.Rect(box.Min.X, y-size.Y-4, box.Min.X+size.X+4, y+4)
	gocv.Rectangle(img, label, plateColor, -1)
	gocv.PutText(img, text, image.Pt(box.Min.X+2, y), gocv.FontHersheySimplex, 0.7, textColor, 2)
}
