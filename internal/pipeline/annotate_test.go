package pipeline

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"planktovision/internal/policy"
)

func testImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 40, G: 80, B: 120, A: 255})
		}
	}
	return img
}

func TestAnnotatePreservesDimensions(t *testing.T) {
	img := testImage(320, 240)
	detections := []Detection{
		{BBox: BBox{X1: 10, Y1: 20, X2: 100, Y2: 120}, Class: "diatom", Confidence: 0.91},
		{BBox: BBox{X1: 150, Y1: 50, X2: 300, Y2: 200}, Class: "copepod", Confidence: 0.77},
	}

	data, err := Annotate(img, detections, policy.Default())
	if err != nil {
		t.Fatalf("Annotate failed: %v", err)
	}

	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not valid PNG: %v", err)
	}
	if decoded.Bounds().Dx() != 320 || decoded.Bounds().Dy() != 240 {
		t.Errorf("annotated image is %dx%d, expected 320x240",
			decoded.Bounds().Dx(), decoded.Bounds().Dy())
	}
}

func TestAnnotateNoDetections(t *testing.T) {
	data, err := Annotate(testImage(64, 64), nil, policy.Default())
	if err != nil {
		t.Fatalf("Annotate failed: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(data)); err != nil {
		t.Fatalf("output is not valid PNG: %v", err)
	}
}

func TestAnnotateEdgeBoxes(t *testing.T) {
	// Boxes touching or crossing the image border must not panic.
	detections := []Detection{
		{BBox: BBox{X1: -5, Y1: -5, X2: 30, Y2: 30}, Class: "algae", Confidence: 0.5},
		{BBox: BBox{X1: 50, Y1: 50, X2: 200, Y2: 200}, Class: "rotifer", Confidence: 0.6},
		{BBox: BBox{X1: 0, Y1: 0, X2: 64, Y2: 64}, Class: "diatom", Confidence: 0.7},
	}

	data, err := Annotate(testImage(64, 64), detections, policy.Default())
	if err != nil {
		t.Fatalf("Annotate failed: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(data)); err != nil {
		t.Fatalf("output is not valid PNG: %v", err)
	}
}
