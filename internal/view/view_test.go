package view

import "testing"

func TestToNativeIdentityMapping(t *testing.T) {
	rect := DisplayRect{X: 0, Y: 0, W: 100, H: 100}

	x, y := ToNative(50.5, 20.2, rect, 100, 100)
	if x != 50 || y != 20 {
		t.Fatalf("expected (50,20), got (%d,%d)", x, y)
	}
}

func TestToNativeScalesWithDisplaySize(t *testing.T) {
	// Display is twice the native size; display coordinates halve.
	rect := DisplayRect{X: 0, Y: 0, W: 200, H: 200}

	x, y := ToNative(100, 50, rect, 100, 100)
	if x != 50 || y != 25 {
		t.Fatalf("expected (50,25), got (%d,%d)", x, y)
	}
}

func TestToNativeHonorsRectOffset(t *testing.T) {
	rect := DisplayRect{X: 10, Y: 20, W: 100, H: 100}

	x, y := ToNative(10, 20, rect, 100, 100)
	if x != 0 || y != 0 {
		t.Fatalf("expected rect origin to map to (0,0), got (%d,%d)", x, y)
	}
}

func TestToNativeClampsToPixelGrid(t *testing.T) {
	rect := DisplayRect{X: 0, Y: 0, W: 100, H: 100}

	if x, y := ToNative(-5, -5, rect, 100, 100); x != 0 || y != 0 {
		t.Fatalf("expected clamp to (0,0), got (%d,%d)", x, y)
	}
	if x, y := ToNative(250, 250, rect, 100, 100); x != 99 || y != 99 {
		t.Fatalf("expected clamp to (99,99), got (%d,%d)", x, y)
	}
	// The exact right edge belongs to the last pixel column.
	if x, _ := ToNative(100, 0, rect, 100, 100); x != 99 {
		t.Fatalf("expected right edge to clamp to 99, got %d", x)
	}
}

func TestToNativeDegenerateRect(t *testing.T) {
	if x, y := ToNative(50, 50, DisplayRect{W: 0, H: 100}, 100, 100); x != 0 || y != 0 {
		t.Fatalf("expected (0,0) for zero-width rect, got (%d,%d)", x, y)
	}
	if x, y := ToNative(50, 50, DisplayRect{W: 100, H: 100}, 0, 100); x != 0 || y != 0 {
		t.Fatalf("expected (0,0) for zero native size, got (%d,%d)", x, y)
	}
}

func TestClampZoom(t *testing.T) {
	if got := ClampZoom(0.1); got != MinZoom {
		t.Fatalf("expected %v, got %v", MinZoom, got)
	}
	if got := ClampZoom(10); got != MaxZoom {
		t.Fatalf("expected %v, got %v", MaxZoom, got)
	}
	if got := ClampZoom(1.5); got != 1.5 {
		t.Fatalf("expected 1.5, got %v", got)
	}
}

func TestSetZoomClamps(t *testing.T) {
	s := NewState()
	if s.Zoom != 1.0 {
		t.Fatalf("expected initial zoom 1.0, got %v", s.Zoom)
	}

	s.SetZoom(100)
	if s.Zoom != MaxZoom {
		t.Fatalf("expected zoom clamped to %v, got %v", MaxZoom, s.Zoom)
	}
}
