package testimage

import "testing"

func TestPerlinFieldIsDeterministic(t *testing.T) {
	a := PerlinField(32, 32, 8, 42)
	b := PerlinField(32, 32, 8, 42)

	if a.Bounds() != b.Bounds() {
		t.Fatal("expected identical bounds")
	}
	for i := range a.Pix {
		if a.Pix[i] != b.Pix[i] {
			t.Fatalf("pixel data differs at byte %d for the same seed", i)
		}
	}

	c := PerlinField(32, 32, 8, 43)
	same := true
	for i := range a.Pix {
		if a.Pix[i] != c.Pix[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("expected different seeds to produce different noise")
	}
}

func TestShapesHasContrast(t *testing.T) {
	img := Shapes(64, 64)

	if got := img.Bounds(); got.Dx() != 64 || got.Dy() != 64 {
		t.Fatalf("expected 64x64, got %v", got)
	}

	// Background corner is dark, rectangle interior is bright.
	bg := img.NRGBAAt(0, 0)
	fg := img.NRGBAAt(16, 16)
	if fg.R <= bg.R {
		t.Fatalf("expected bright rectangle over dark background, got fg=%v bg=%v", fg, bg)
	}

	// Disc center in the lower-right quadrant is bright too.
	disc := img.NRGBAAt(44, 44)
	if disc.R <= bg.R {
		t.Fatalf("expected bright disc, got %v", disc)
	}
}
