package detect

import (
	"context"
	"image"
	"reflect"
	"testing"
)

func TestMockDetectDeterministic(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 640, 480))
	adapter := NewMockAdapter(nil, 42)

	first, err := adapter.Detect(context.Background(), img)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	second, err := adapter.Detect(context.Background(), img)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("same image and seed produced different detections")
	}
}

func TestMockDetectBounds(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	adapter := NewMockAdapter(nil, 7)

	detections, err := adapter.Detect(context.Background(), img)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	if len(detections) < 2 || len(detections) > 6 {
		t.Errorf("expected between 2 and 6 detections, got %d", len(detections))
	}
	for i, d := range detections {
		if d.BBox.X1 < 0 || d.BBox.Y1 < 0 || d.BBox.X2 > 320 || d.BBox.Y2 > 240 {
			t.Errorf("detection %d out of bounds: %+v", i, d.BBox)
		}
		if d.BBox.Empty() {
			t.Errorf("detection %d has an empty box", i)
		}
		if d.Confidence < 0.5 || d.Confidence > 0.95 {
			t.Errorf("detection %d confidence %v outside [0.5, 0.95]", i, d.Confidence)
		}
		if d.Class == "" {
			t.Errorf("detection %d has no class", i)
		}
	}
}

func TestMockDetectTinyImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	adapter := NewMockAdapter(nil, 1)

	detections, err := adapter.Detect(context.Background(), img)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(detections) != 0 {
		t.Errorf("expected no detections on a tiny image, got %d", len(detections))
	}
}

func TestMockDetectCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	adapter := NewMockAdapter(nil, 1)
	if _, err := adapter.Detect(ctx, image.NewRGBA(image.Rect(0, 0, 64, 64))); err == nil {
		t.Error("expected an error from a canceled context")
	}
}

func TestMockDetectCustomClasses(t *testing.T) {
	adapter := NewMockAdapter([]string{"cyanobacteria"}, 3)

	detections, err := adapter.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 128, 128)))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	for _, d := range detections {
		if d.Class != "cyanobacteria" {
			t.Errorf("unexpected class %q", d.Class)
		}
	}
}
