// Package compositor produces the visible frame by layering the base image,
// the edge overlay, and the floating-layer preview in a fixed order. It holds
// no interaction state of its own.
package compositor

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/MeKo-Tech/edgecanvas/internal/canvas"
	"github.com/MeKo-Tech/edgecanvas/internal/selection"
	"github.com/MeKo-Tech/edgecanvas/internal/view"
	xdraw "golang.org/x/image/draw"
)

// Dash pattern for the selection border, in native pixels.
const dashLength = 4

var (
	dashDark  = color.NRGBA{R: 32, G: 32, B: 32, A: 255}
	dashLight = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

// Input collects everything a frame depends on. Render must be called again
// whenever any field changes.
type Input struct {
	Base           *canvas.Surface
	Overlay        *canvas.Surface
	OverlayVisible bool

	// Floating and SelectionRect are drawn only when both are set.
	Floating      *canvas.Surface
	SelectionRect *selection.Rect

	Zoom float64
}

// Render composes the display frame: base image, then the overlay when
// visible, then the floating-layer preview with a dashed border, scaled to
// the view zoom.
func Render(in Input) (*image.NRGBA, error) {
	if in.Base == nil {
		return nil, fmt.Errorf("compositor: no base image")
	}

	frame := in.Base.Clone()

	if in.OverlayVisible && in.Overlay != nil {
		frame.DrawOver(in.Overlay, image.Point{})
	}

	if in.Floating != nil && in.SelectionRect != nil {
		frame.DrawOver(in.Floating, image.Point{X: in.SelectionRect.X, Y: in.SelectionRect.Y})
		drawDashedRect(frame.Image(), in.SelectionRect.Bounds())
	}

	return scaleToZoom(frame.Image(), in.Zoom), nil
}

// scaleToZoom resizes the native frame to the display zoom. Nearest-neighbor
// keeps the binary edge pixels crisp instead of smearing them.
func scaleToZoom(src *image.NRGBA, zoom float64) *image.NRGBA {
	zoom = view.ClampZoom(zoomOrDefault(zoom))
	if zoom == 1.0 {
		return src
	}

	w := int(math.Round(float64(src.Bounds().Dx()) * zoom))
	h := int(math.Round(float64(src.Bounds().Dy()) * zoom))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

func zoomOrDefault(zoom float64) float64 {
	if zoom == 0 {
		return 1.0
	}
	return zoom
}

// drawDashedRect draws a marching-ants border along the rectangle edges,
// clipped to the image bounds.
func drawDashedRect(img *image.NRGBA, r image.Rectangle) {
	setDash := func(x, y, phase int) {
		if !(image.Point{X: x, Y: y}).In(img.Bounds()) {
			return
		}
		if (phase/dashLength)%2 == 0 {
			img.SetNRGBA(x, y, dashDark)
		} else {
			img.SetNRGBA(x, y, dashLight)
		}
	}

	for x := r.Min.X; x < r.Max.X; x++ {
		setDash(x, r.Min.Y, x-r.Min.X)
		setDash(x, r.Max.Y-1, x-r.Min.X)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		setDash(r.Min.X, y, y-r.Min.Y)
		setDash(r.Max.X-1, y, y-r.Min.Y)
	}
}
