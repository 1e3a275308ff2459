package attestation

import (
	"image"
	"image/color"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const captionPadding = 4

// withCaption draws caption lines under the code. The caption becomes part of
// the bitmap, so stamping it adds no extractable text to the page.
func withCaption(code image.Image, caption string) image.Image {
	face := basicfont.Face7x13
	lines := strings.Split(caption, "\n")
	lineHeight := face.Metrics().Height.Ceil()

	textWidth := 0
	for _, l := range lines {
		if w := font.MeasureString(face, l).Ceil(); w > textWidth {
			textWidth = w
		}
	}

	cb := code.Bounds()
	width := cb.Dx()
	if textWidth+2*captionPadding > width {
		width = textWidth + 2*captionPadding
	}
	height := cb.Dy() + len(lines)*lineHeight + captionPadding

	canvas := image.NewGray(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	left := (width - cb.Dx()) / 2
	draw.Draw(canvas, image.Rect(left, 0, left+cb.Dx(), cb.Dy()), code, cb.Min, draw.Src)

	d := &font.Drawer{Dst: canvas, Src: image.NewUniform(color.Black), Face: face}
	ascent := face.Metrics().Ascent.Ceil()
	for i, l := range lines {
		x := (width - font.MeasureString(face, l).Ceil()) / 2
		y := cb.Dy() + i*lineHeight + ascent
		d.Dot = fixed.P(x, y)
		d.DrawString(l)
	}
	return canvas
}
