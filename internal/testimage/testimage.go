// Package testimage generates deterministic synthetic source images for the
// demo command, tests, and benchmarks.
package testimage

import (
	"image"
	"image/color"
	"math"

	"github.com/aquilax/go-perlin"
)

// PerlinField generates a grayscale Perlin-noise image. scale controls the
// feature size (larger = smoother); seed makes the output deterministic.
func PerlinField(width, height int, scale float64, seed int64) *image.NRGBA {
	p := perlin.NewPerlin(2.0, 2.0, 3, seed)

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			nx := float64(x) / scale
			ny := float64(y) / scale

			val := p.Noise2D(nx, ny)
			normalized := (val + 1.0) / 2.0
			gray := uint8(math.Max(0, math.Min(255, normalized*255)))

			img.SetNRGBA(x, y, color.NRGBA{R: gray, G: gray, B: gray, A: 255})
		}
	}
	return img
}

// Shapes generates a hard-edged test scene: a dark background with a bright
// rectangle and a bright disc. The sharp luminance steps give the edge
// extractor well-defined boundaries to find.
func Shapes(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))

	bg := color.NRGBA{R: 24, G: 24, B: 28, A: 255}
	fg := color.NRGBA{R: 230, G: 230, B: 235, A: 255}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, bg)
		}
	}

	// Rectangle in the upper-left quadrant.
	rx0, ry0 := width/8, height/8
	rx1, ry1 := width/2, height/2
	for y := ry0; y < ry1; y++ {
		for x := rx0; x < rx1; x++ {
			img.SetNRGBA(x, y, fg)
		}
	}

	// Disc in the lower-right quadrant.
	cx := float64(width) * 0.7
	cy := float64(height) * 0.7
	radius := float64(minInt(width, height)) * 0.18
	r2 := radius * radius
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dx := float64(x) + 0.5 - cx
			dy := float64(y) + 0.5 - cy
			if dx*dx+dy*dy <= r2 {
				img.SetNRGBA(x, y, fg)
			}
		}
	}

	return img
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
