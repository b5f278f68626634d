package selection

import "image"

// Rect is an axis-aligned selection rectangle in native pixel coordinates,
// relative to the edge overlay.
type Rect struct {
	X, Y, W, H int
}

// Bounds converts the rectangle to an image.Rectangle.
func (r Rect) Bounds() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

// Contains reports whether the native pixel (x, y) falls inside the rectangle.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.W && y >= r.Y && y < r.Y+r.H
}

// Normalize builds a rectangle from two marquee corners in any drag
// direction, so right-to-left and bottom-to-top drags work the same.
func Normalize(x0, y0, x1, y1 int) Rect {
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}
