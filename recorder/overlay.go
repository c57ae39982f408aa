package recorder

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

var overlayColors = map[string]color.RGBA{
	"red":   {R: 255, A: 255},
	"green": {G: 255, A: 255},
	"blue":  {B: 255, A: 255},
	"white": {R: 255, G: 255, B: 255, A: 255},
	"black": {A: 255},
}

// ParseOverlayColor maps a color name to an RGBA value, defaulting to red.
func ParseOverlayColor(name string) color.RGBA {
	if c, ok := overlayColors[name]; ok {
		return c
	}
	return overlayColors["red"]
}

// DrawCrosshair marks the barrel boresight at the image center before a
// frame is recorded.
func DrawCrosshair(img *gocv.Mat, size, thickness int, c color.RGBA, circle bool) {
	center := image.Point{X: img.Cols() / 2, Y: img.Rows() / 2}

	gocv.Line(img,
		image.Point{X: center.X - size, Y: center.Y},
		image.Point{X: center.X + size, Y: center.Y},
		c, thickness)
	gocv.Line(img,
		image.Point{X: center.X, Y: center.Y - size},
		image.Point{X: center.X, Y: center.Y + size},
		c, thickness)

	if circle {
		gocv.Circle(img, center, size/2, c, thickness)
	}
}

// DrawDetectionBox outlines a detected armor's bounding box.
func DrawDetectionBox(img *gocv.Mat, box image.Rectangle, c color.RGBA, thickness int) {
	gocv.Rectangle(img, box, c, thickness)
}
