package objects

import (
	"image"
	"image/color"

	"github.com/fogleman/gg"
)

// overlayPalette cycles per object so neighboring merged objects stay
// distinguishable.
var overlayPalette = []color.NRGBA{
	{R: 230, G: 57, B: 70, A: 255},
	{R: 69, G: 123, B: 157, A: 255},
	{R: 42, G: 157, B: 143, A: 255},
	{R: 233, G: 196, B: 106, A: 255},
	{R: 155, G: 93, B: 229, A: 255},
	{R: 244, G: 162, B: 97, A: 255},
}

// RenderOverlay draws the object set over the source image for inspection:
// each object's mask filled translucently and its bounding box outlined. The
// base image is not modified.
func RenderOverlay(base image.Image, set *Set) image.Image {
	dc := gg.NewContextForImage(base)
	if set == nil {
		return dc.Image()
	}
	for i, obj := range set.Objects {
		if obj.Mask == nil {
			continue
		}
		c := overlayPalette[i%len(overlayPalette)]
		bounds := obj.Mask.Bounds
		dc.SetRGBA255(int(c.R), int(c.G), int(c.B), 120)
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				if obj.Mask.At(x, y) {
					dc.DrawRectangle(float64(x), float64(y), 1, 1)
				}
			}
		}
		dc.Fill()
		drawRectangleEmpty(dc, bounds, c, 1)
	}
	return dc.Image()
}

// drawRectangleEmpty strokes the four edges of r into the context.
func drawRectangleEmpty(dc *gg.Context, r image.Rectangle, c color.Color, width float64) {
	dc.SetColor(c)

	dc.DrawLine(float64(r.Min.X), float64(r.Min.Y), float64(r.Max.X), float64(r.Min.Y))
	dc.SetLineWidth(width)
	dc.Stroke()

	dc.DrawLine(float64(r.Min.X), float64(r.Min.Y), float64(r.Min.X), float64(r.Max.Y))
	dc.SetLineWidth(width)
	dc.Stroke()

	dc.DrawLine(float64(r.Max.X), float64(r.Min.Y), float64(r.Max.X), float64(r.Max.Y))
	dc.SetLineWidth(width)
	dc.Stroke()

	dc.DrawLine(float64(r.Min.X), float64(r.Max.Y), float64(r.Max.X), float64(r.Max.Y))
	dc.SetLineWidth(width)
	dc.Stroke()
}
