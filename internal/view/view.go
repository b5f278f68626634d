// Package view maps pointer positions in display space onto native image
// pixels, accounting for zoom and the display/native resolution ratio.
package view

import "math"

// Zoom limits for the display scale. Zoom never affects stored native
// pixel coordinates, only how large the composition is drawn.
const (
	MinZoom = 0.5
	MaxZoom = 3.0
)

// State holds the display-only view parameters.
type State struct {
	Zoom float64
}

// NewState returns a view at 1:1 display scale.
func NewState() State {
	return State{Zoom: 1.0}
}

// SetZoom clamps and stores the zoom factor.
func (s *State) SetZoom(zoom float64) {
	s.Zoom = ClampZoom(zoom)
}

// ClampZoom restricts a zoom factor to the supported range.
func ClampZoom(zoom float64) float64 {
	if zoom < MinZoom {
		return MinZoom
	}
	if zoom > MaxZoom {
		return MaxZoom
	}
	return zoom
}

// DisplayRect is the on-screen rectangle the (possibly zoomed) image
// occupies, in display coordinates (CSS pixels or window pixels).
type DisplayRect struct {
	X, Y, W, H float64
}

// ToNative converts a pointer position in display coordinates into native
// image pixel coordinates. The fractional position inside the display
// rectangle is scaled by the native size, so strokes stay pixel-accurate
// at any zoom level or layout size.
//
// A degenerate (zero-area) display rectangle maps everything to (0, 0).
func ToNative(px, py float64, rect DisplayRect, nativeW, nativeH int) (int, int) {
	if rect.W <= 0 || rect.H <= 0 || nativeW <= 0 || nativeH <= 0 {
		return 0, 0
	}

	fx := (px - rect.X) / rect.W
	fy := (py - rect.Y) / rect.H

	x := int(math.Floor(fx * float64(nativeW)))
	y := int(math.Floor(fy * float64(nativeH)))

	// Clamp to the valid pixel grid so edge-of-canvas strokes land on the
	// border row/column instead of being dropped.
	if x < 0 {
		x = 0
	}
	if x >= nativeW {
		x = nativeW - 1
	}
	if y < 0 {
		y = 0
	}
	if y >= nativeH {
		y = nativeH - 1
	}

	return x, y
}
