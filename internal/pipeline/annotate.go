package pipeline

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"planktovision/internal/policy"
)

var tierColors = map[policy.Tier]color.RGBA{
	policy.TierSafe:    {0, 200, 100, 255},
	policy.TierCaution: {255, 165, 0, 255},
	policy.TierUnsafe:  {255, 0, 0, 255},
}

// Annotate draws each detection's bounding box and a "{class} {conf:.2f}"
// label onto a copy of the source image, colored by safety tier. The input
// image is never mutated. Returns the annotated copy encoded as PNG.
func Annotate(img image.Image, detections []Detection, pol *policy.Policy) ([]byte, error) {
	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)

	for _, det := range detections {
		c := tierColors[pol.TierFor(det.Class)]
		box := det.BBox
		drawBox(rgba, box.X1, box.Y1, box.Width(), box.Height(), c, 2)
		label := fmt.Sprintf("%s %.2f", det.Class, det.Confidence)
		drawLabel(rgba, box.X1, box.Y1-5, label, c)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, rgba); err != nil {
		return nil, fmt.Errorf("failed to encode annotated image: %w", err)
	}
	return buf.Bytes(), nil
}

// drawBox draws a rectangle outline, clipped to the image bounds.
func drawBox(img *image.RGBA, x, y, w, h int, c color.RGBA, thickness int) {
	bounds := img.Bounds()

	for t := 0; t < thickness; t++ {
		for i := x; i < x+w && i < bounds.Max.X; i++ {
			if y+t >= 0 && y+t < bounds.Max.Y && i >= 0 {
				img.Set(i, y+t, c)
			}
			if y+h-1-t >= 0 && y+h-1-t < bounds.Max.Y && i >= 0 {
				img.Set(i, y+h-1-t, c)
			}
		}
		for j := y; j < y+h && j < bounds.Max.Y; j++ {
			if x+t >= 0 && x+t < bounds.Max.X && j >= 0 {
				img.Set(x+t, j, c)
			}
			if x+w-1-t >= 0 && x+w-1-t < bounds.Max.X && j >= 0 {
				img.Set(x+w-1-t, j, c)
			}
		}
	}
}

// drawLabel draws text with a dark backing strip so it stays readable over
// the image.
func drawLabel(img *image.RGBA, x, y int, label string, c color.RGBA) {
	if y < 10 {
		y = 10
	}
	if x < 0 {
		x = 0
	}

	bgColor := color.RGBA{0, 0, 0, 180}
	textWidth := len(label) * 7
	for dy := -2; dy < 12; dy++ {
		for dx := -2; dx < textWidth+2; dx++ {
			px, py := x+dx, y+dy
			if px >= 0 && px < img.Bounds().Max.X && py >= 0 && py < img.Bounds().Max.Y {
				img.Set(px, py, bgColor)
			}
		}
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y + 10)},
	}
	d.DrawString(label)
}
