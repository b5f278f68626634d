// Package selection manages the lifecycle of a rectangular selection and
// its detached floating layer: extraction from the edge overlay, transforms
// (rotate, flip, scale), and recompositing back onto the overlay.
//
// At most one selection/floating-layer pair is live at any time.
package selection

import (
	"errors"
	"image"
	"log/slog"
	"math"

	"github.com/MeKo-Tech/edgecanvas/internal/canvas"
	"github.com/disintegration/gift"
)

// ErrNoSelection is returned by transforms when no selection is active.
var ErrNoSelection = errors.New("selection: no active selection")

const (
	// minMarquee is the exclusive lower bound on marquee width and height.
	// Anything at or below this is treated as a mis-click and discarded.
	minMarquee = 2

	// minFloatingSize is the floor on floating-layer dimensions after scaling.
	minFloatingSize = 10
)

// Engine owns the single selection/floating-layer pair over an edge overlay.
type Engine struct {
	overlay  *canvas.Surface
	floating *canvas.Surface
	rect     Rect
	active   bool
	logger   *slog.Logger
}

// NewEngine creates a selection engine bound to the given overlay.
// logger may be nil.
func NewEngine(overlay *canvas.Surface, logger *slog.Logger) *Engine {
	return &Engine{overlay: overlay, logger: logger}
}

// Overlay returns the overlay surface the engine operates on.
func (e *Engine) Overlay() *canvas.Surface { return e.overlay }

// SetOverlay rebinds the engine to a new overlay (e.g. after re-extraction).
// Any pending selection is discarded without merging.
func (e *Engine) SetOverlay(overlay *canvas.Surface) {
	e.Discard()
	e.overlay = overlay
}

// Active reports whether a selection/floating-layer pair is live.
func (e *Engine) Active() bool { return e.active }

// Selection returns the current selection rectangle, if one is active.
func (e *Engine) Selection() (Rect, bool) {
	return e.rect, e.active
}

// Floating returns the detached floating layer, or nil when none is active.
func (e *Engine) Floating() *canvas.Surface {
	if !e.active {
		return nil
	}
	return e.floating
}

// CommitMarquee promotes a finished marquee drag into a selection: the pixel
// region is copied into a new floating layer and cleared to transparent in
// the overlay. Marquees of 2x2 pixels or smaller are discarded silently and
// the method reports false.
func (e *Engine) CommitMarquee(r Rect) bool {
	if e.overlay == nil {
		return false
	}
	if r.W <= minMarquee || r.H <= minMarquee {
		e.log().Debug("marquee below minimum size, discarding", "w", r.W, "h", r.H)
		return false
	}

	clipped := r.Bounds().Intersect(e.overlay.Bounds())
	if clipped.Dx() <= minMarquee || clipped.Dy() <= minMarquee {
		return false
	}

	// A previous selection is replaced, not merged.
	e.Discard()

	e.floating = e.overlay.Crop(clipped)
	e.overlay.ClearRect(clipped)
	e.rect = Rect{X: clipped.Min.X, Y: clipped.Min.Y, W: clipped.Dx(), H: clipped.Dy()}
	e.active = true

	e.log().Debug("selection committed", "x", e.rect.X, "y", e.rect.Y, "w", e.rect.W, "h", e.rect.H)
	return true
}

// Rotate90 rotates the floating layer 90 degrees about its center, swapping
// width and height. The selection rectangle is recentered so its center
// point is preserved, matching the Scale convention.
func (e *Engine) Rotate90() error {
	if !e.active {
		return ErrNoSelection
	}

	e.floating = applyFilter(e.floating, gift.Rotate90())

	cx := float64(e.rect.X) + float64(e.rect.W)/2.0
	cy := float64(e.rect.Y) + float64(e.rect.H)/2.0
	newW := e.floating.Width()
	newH := e.floating.Height()
	e.rect = Rect{
		X: int(math.Round(cx - float64(newW)/2.0)),
		Y: int(math.Round(cy - float64(newH)/2.0)),
		W: newW,
		H: newH,
	}
	return nil
}

// FlipHorizontal mirrors the floating layer left-right. The selection
// rectangle is unchanged.
func (e *Engine) FlipHorizontal() error {
	if !e.active {
		return ErrNoSelection
	}
	e.floating = applyFilter(e.floating, gift.FlipHorizontal())
	return nil
}

// Scale resamples the floating layer to round(w*factor) x round(h*factor),
// with a 10x10 pixel floor, and recenters the selection rectangle so its
// center point is preserved.
func (e *Engine) Scale(factor float64) error {
	if !e.active {
		return ErrNoSelection
	}
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return nil
	}

	newW := int(math.Round(float64(e.rect.W) * factor))
	newH := int(math.Round(float64(e.rect.H) * factor))
	if newW < minFloatingSize {
		newW = minFloatingSize
	}
	if newH < minFloatingSize {
		newH = minFloatingSize
	}
	if newW == e.rect.W && newH == e.rect.H {
		return nil
	}

	e.floating = applyFilter(e.floating, gift.Resize(newW, newH, gift.LanczosResampling))

	cx := float64(e.rect.X) + float64(e.rect.W)/2.0
	cy := float64(e.rect.Y) + float64(e.rect.H)/2.0
	e.rect = Rect{
		X: int(math.Round(cx - float64(newW)/2.0)),
		Y: int(math.Round(cy - float64(newH)/2.0)),
		W: newW,
		H: newH,
	}
	return nil
}

// MoveBy shifts the selection rectangle by a native-pixel delta during a
// move-tool drag. The floating layer travels with the rectangle.
func (e *Engine) MoveBy(dx, dy int) {
	if !e.active {
		return
	}
	e.rect.X += dx
	e.rect.Y += dy
}

// CommitToBase merges the floating layer onto the overlay at the selection's
// current position, then destroys the selection. This is the only operation
// that makes selection edits permanent. Reports whether anything was merged.
func (e *Engine) CommitToBase() bool {
	if !e.active {
		return false
	}

	e.overlay.DrawOver(e.floating, image.Point{X: e.rect.X, Y: e.rect.Y})
	e.floating = nil
	e.active = false
	e.log().Debug("selection merged into overlay", "x", e.rect.X, "y", e.rect.Y)
	return true
}

// Discard drops the selection and floating layer without merging. The pixels
// that were cleared from the overlay at marquee commit stay cleared.
func (e *Engine) Discard() {
	if !e.active {
		return
	}
	e.floating = nil
	e.active = false
	e.log().Debug("selection discarded")
}

func (e *Engine) log() *slog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return slog.Default()
}

// applyFilter runs a single gift filter over a surface and returns the result
// as a new surface.
func applyFilter(src *canvas.Surface, f gift.Filter) *canvas.Surface {
	g := gift.New(f)
	dst := image.NewNRGBA(g.Bounds(src.Image().Bounds()))
	g.Draw(dst, src.Image())
	return canvas.FromImage(dst)
}
