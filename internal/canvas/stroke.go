package canvas

import (
	"image/color"
	"math"
)

// CompositeMode selects the blending rule for stroke operations.
type CompositeMode int

const (
	// ModeHighlight paints opaque highlight pixels (additive brush).
	ModeHighlight CompositeMode = iota
	// ModeErase clears pixels to fully transparent (destructive eraser).
	ModeErase
)

// HighlightColor is the stroke color used by the brush tool.
// The red highlight keeps hand-drawn edges distinguishable from extracted ones.
var HighlightColor = color.NRGBA{R: 255, G: 59, B: 48, A: 255}

// StampDisc stamps a filled disc of the given radius centered at (cx, cy).
// Pixels outside the surface are clipped.
func (s *Surface) StampDisc(cx, cy, radius float64, mode CompositeMode) {
	minX := int(math.Floor(cx - radius))
	maxX := int(math.Ceil(cx + radius))
	minY := int(math.Floor(cy - radius))
	maxY := int(math.Ceil(cy + radius))

	w := s.Width()
	h := s.Height()
	if minX < 0 {
		minX = 0
	}
	if minY < 0 {
		minY = 0
	}
	if maxX >= w {
		maxX = w - 1
	}
	if maxY >= h {
		maxY = h - 1
	}

	r2 := radius * radius
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			dx := (float64(x) + 0.5) - cx
			dy := (float64(y) + 0.5) - cy
			if dx*dx+dy*dy > r2 {
				continue
			}
			switch mode {
			case ModeHighlight:
				s.pix.SetNRGBA(x, y, HighlightColor)
			case ModeErase:
				s.pix.SetNRGBA(x, y, color.NRGBA{})
			}
		}
	}
}

// StrokeLine draws a line segment from (x0, y0) to (x1, y1) by stamping
// overlapping discs along the segment. The step is kept below one disc
// radius so strokes stay gap-free at any pointer speed.
func (s *Surface) StrokeLine(x0, y0, x1, y1, radius float64, mode CompositeMode) {
	dx := x1 - x0
	dy := y1 - y0
	segLen := math.Hypot(dx, dy)
	if segLen == 0 {
		s.StampDisc(x0, y0, radius, mode)
		return
	}

	step := 0.75
	if radius >= 2.5 {
		step = 0.9
	}

	steps := int(math.Ceil(segLen / step))
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		s.StampDisc(x0+dx*t, y0+dy*t, radius, mode)
	}
}
