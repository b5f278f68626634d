// Package edge produces binary edge-maps from source images. The edge-map
// is the structural reference the composition editor manipulates and hands
// to image generation.
package edge

import (
	"context"
	"errors"
	"image"
)

// ErrNoImage is returned when extraction is requested without a source image.
var ErrNoImage = errors.New("edge: no source image")

// Extractor produces a binary edge-map with the same pixel dimensions as the
// source image. Foreground (edge) pixels are 255, background pixels are 0.
//
// lowThreshold and highThreshold are clamped to [0, 255]. Their ordering is
// passed through as given; a low value above high simply yields fewer
// connected edges.
type Extractor interface {
	Extract(ctx context.Context, src image.Image, lowThreshold, highThreshold int) (*image.Gray, error)
}

// clampThreshold restricts a slider value to the accepted [0, 255] range.
func clampThreshold(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
