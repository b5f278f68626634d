package canvas

import (
	"testing"
)

func TestStampDiscPaintsHighlight(t *testing.T) {
	s := New(20, 20)
	s.StampDisc(10, 10, 3, ModeHighlight)

	if got := s.At(10, 10); got != HighlightColor {
		t.Fatalf("expected highlight at disc center, got %v", got)
	}
	if got := s.At(0, 0); got.A != 0 {
		t.Fatalf("expected far corner untouched, got %v", got)
	}
}

func TestStampDiscErases(t *testing.T) {
	s := New(20, 20)
	s.Fill(HighlightColor)

	s.StampDisc(10, 10, 3, ModeErase)
	if got := s.At(10, 10); got.A != 0 {
		t.Fatalf("expected erased center, got %v", got)
	}
	if got := s.At(0, 0); got != HighlightColor {
		t.Fatalf("expected corner untouched, got %v", got)
	}
}

func TestStampDiscClipsAtBorder(t *testing.T) {
	s := New(10, 10)
	// Center outside the surface; only the overlapping part may be painted.
	s.StampDisc(-2, 5, 4, ModeHighlight)

	if got := s.At(0, 5); got != HighlightColor {
		t.Fatalf("expected border pixel painted, got %v", got)
	}
	if got := s.At(5, 5); got.A != 0 {
		t.Fatalf("expected pixel outside disc untouched, got %v", got)
	}
}

func TestStrokeLineIsGapFree(t *testing.T) {
	s := New(20, 20)
	s.StrokeLine(2, 10, 17, 10, 4, ModeHighlight)

	// Every pixel on the stroke path is covered.
	for x := 2; x <= 17; x++ {
		if got := s.At(x, 10); got != HighlightColor {
			t.Fatalf("expected painted pixel at (%d,10), got %v", x, got)
		}
	}

	// Nothing lands outside the stroke band.
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			if s.At(x, y).A == 0 {
				continue
			}
			if y < 6 || y > 13 {
				t.Fatalf("pixel (%d,%d) painted outside the stroke band", x, y)
			}
		}
	}
}

func TestStrokeLineZeroLengthStampsOnce(t *testing.T) {
	s := New(10, 10)
	s.StrokeLine(5, 5, 5, 5, 2, ModeHighlight)

	if got := s.At(5, 5); got != HighlightColor {
		t.Fatalf("expected single stamp at (5,5), got %v", got)
	}
}
