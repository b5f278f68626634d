package edge

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/MeKo-Tech/edgecanvas/internal/testimage"
)

func countEdgePixels(edges *image.Gray) int {
	n := 0
	b := edges.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if edges.GrayAt(x, y).Y >= 128 {
				n++
			}
		}
	}
	return n
}

func TestExtractDimensionsMatchSource(t *testing.T) {
	src := testimage.Shapes(64, 48)

	edges, err := NewCanny(nil).Extract(context.Background(), src, 100, 200)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if got := edges.Bounds(); got.Dx() != 64 || got.Dy() != 48 {
		t.Fatalf("expected 64x48 edge-map, got %dx%d", got.Dx(), got.Dy())
	}
}

func TestExtractFindsShapeBoundaries(t *testing.T) {
	src := testimage.Shapes(64, 64)

	edges, err := NewCanny(nil).Extract(context.Background(), src, 100, 200)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	n := countEdgePixels(edges)
	if n == 0 {
		t.Fatal("expected edges along the shape boundaries, found none")
	}
	if n >= 64*64/2 {
		t.Fatalf("expected sparse edges, got %d of %d pixels", n, 64*64)
	}
}

func TestExtractFlatImageHasNoEdges(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			src.SetNRGBA(x, y, color.NRGBA{R: 128, G: 128, B: 128, A: 255})
		}
	}

	edges, err := NewCanny(nil).Extract(context.Background(), src, 100, 200)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if n := countEdgePixels(edges); n != 0 {
		t.Fatalf("expected no edges in a flat image, got %d", n)
	}
}

func TestExtractNilImage(t *testing.T) {
	_, err := NewCanny(nil).Extract(context.Background(), nil, 100, 200)
	if !errors.Is(err, ErrNoImage) {
		t.Fatalf("expected ErrNoImage, got %v", err)
	}
}

func TestExtractClampsThresholds(t *testing.T) {
	src := testimage.Shapes(32, 32)

	// Out-of-range sliders are clamped, not rejected.
	edges, err := NewCanny(nil).Extract(context.Background(), src, -50, 999)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if got := edges.Bounds(); got.Dx() != 32 || got.Dy() != 32 {
		t.Fatalf("expected 32x32 edge-map, got %dx%d", got.Dx(), got.Dy())
	}
}

func TestExtractLowerThresholdsFindMoreEdges(t *testing.T) {
	src := testimage.PerlinField(64, 64, 16, 7)

	canny := NewCanny(nil)
	loose, err := canny.Extract(context.Background(), src, 10, 30)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	strict, err := canny.Extract(context.Background(), src, 150, 230)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	if countEdgePixels(loose) < countEdgePixels(strict) {
		t.Fatalf("expected loose thresholds to keep at least as many edges: loose=%d strict=%d",
			countEdgePixels(loose), countEdgePixels(strict))
	}
}
