package edge

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"

	"github.com/disintegration/gift"
)

// blurSigma is the Gaussian pre-blur applied before gradient computation.
// Small enough to keep fine structure, large enough to suppress sensor noise.
const blurSigma = 1.4

// Canny is the default in-process edge extractor: Gaussian blur, Sobel
// gradients, non-maximum suppression, and double-threshold hysteresis.
type Canny struct {
	logger *slog.Logger
}

// NewCanny creates a Canny extractor. logger may be nil.
func NewCanny(logger *slog.Logger) *Canny {
	return &Canny{logger: logger}
}

// Extract implements Extractor.
func (c *Canny) Extract(ctx context.Context, src image.Image, lowThreshold, highThreshold int) (*image.Gray, error) {
	if src == nil {
		return nil, ErrNoImage
	}
	bounds := src.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("edge: empty source image %v", bounds)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	low := clampThreshold(lowThreshold)
	high := clampThreshold(highThreshold)
	c.log().Debug("extracting edges", "width", width, "height", height, "low", low, "high", high)

	blurred := blurGrayscale(src)

	magnitude, direction := sobel(blurred, width, height)
	suppressed := suppressNonMaxima(magnitude, direction, width, height)

	// Normalize magnitudes so threshold sliders cover the full response range.
	maxMag := 0.0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if suppressed[y][x] > maxMag {
				maxMag = suppressed[y][x]
			}
		}
	}
	if maxMag == 0 {
		// Flat image: no gradients anywhere, edge-map is all background.
		return image.NewGray(image.Rect(0, 0, width, height)), nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return hysteresis(suppressed, width, height, float64(low)/255.0*maxMag, float64(high)/255.0*maxMag), nil
}

func (c *Canny) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.Default()
}

// blurGrayscale converts the source to grayscale and applies the Gaussian
// pre-blur, returning luminance values in [0, 1].
func blurGrayscale(src image.Image) [][]float64 {
	g := gift.New(
		gift.Grayscale(),
		gift.GaussianBlur(blurSigma),
	)

	dst := image.NewGray(g.Bounds(src.Bounds()))
	g.Draw(dst, src)

	bounds := dst.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	out := make([][]float64, height)
	for y := 0; y < height; y++ {
		out[y] = make([]float64, width)
		for x := 0; x < width; x++ {
			out[y][x] = float64(dst.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y) / 255.0
		}
	}
	return out
}

// sobel computes gradient magnitude and direction with 3x3 Sobel kernels.
// Samples outside the image are clamped to the border.
func sobel(gray [][]float64, width, height int) (magnitude, direction [][]float64) {
	sobelX := [3][3]float64{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	}
	sobelY := [3][3]float64{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	}

	magnitude = make([][]float64, height)
	direction = make([][]float64, height)
	for y := 0; y < height; y++ {
		magnitude[y] = make([]float64, width)
		direction[y] = make([]float64, width)
		for x := 0; x < width; x++ {
			var gx, gy float64
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					py := clampIndex(y+ky, height-1)
					px := clampIndex(x+kx, width-1)
					gx += gray[py][px] * sobelX[ky+1][kx+1]
					gy += gray[py][px] * sobelY[ky+1][kx+1]
				}
			}
			magnitude[y][x] = math.Sqrt(gx*gx + gy*gy)
			direction[y][x] = math.Atan2(gy, gx)
		}
	}
	return magnitude, direction
}

// suppressNonMaxima thins gradient ridges to single-pixel edges by keeping
// only pixels that are local maxima along their gradient direction.
func suppressNonMaxima(magnitude, direction [][]float64, width, height int) [][]float64 {
	suppressed := make([][]float64, height)
	for y := 0; y < height; y++ {
		suppressed[y] = make([]float64, width)
		for x := 0; x < width; x++ {
			if y == 0 || y == height-1 || x == 0 || x == width-1 {
				continue
			}

			angle := direction[y][x]
			mag := magnitude[y][x]

			var n1, n2 float64
			switch {
			case (angle >= -math.Pi/8 && angle < math.Pi/8) || angle >= 7*math.Pi/8 || angle < -7*math.Pi/8:
				n1 = magnitude[y][x-1]
				n2 = magnitude[y][x+1]
			case (angle >= math.Pi/8 && angle < 3*math.Pi/8) || (angle >= -7*math.Pi/8 && angle < -5*math.Pi/8):
				n1 = magnitude[y-1][x+1]
				n2 = magnitude[y+1][x-1]
			case (angle >= 3*math.Pi/8 && angle < 5*math.Pi/8) || (angle >= -5*math.Pi/8 && angle < -3*math.Pi/8):
				n1 = magnitude[y-1][x]
				n2 = magnitude[y+1][x]
			default:
				n1 = magnitude[y-1][x-1]
				n2 = magnitude[y+1][x+1]
			}

			if mag >= n1 && mag >= n2 {
				suppressed[y][x] = mag
			}
		}
	}
	return suppressed
}

// hysteresis applies the double threshold: strong pixels are edges, weak
// pixels survive only when 8-connected to a strong pixel.
func hysteresis(suppressed [][]float64, width, height int, low, high float64) *image.Gray {
	result := image.NewGray(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			val := suppressed[y][x]
			if val >= high {
				result.SetGray(x, y, color.Gray{Y: 255})
				continue
			}
			if val < low {
				continue
			}

			hasStrongNeighbor := false
			for ky := -1; ky <= 1 && !hasStrongNeighbor; ky++ {
				for kx := -1; kx <= 1 && !hasStrongNeighbor; kx++ {
					py := clampIndex(y+ky, height-1)
					px := clampIndex(x+kx, width-1)
					if suppressed[py][px] >= high {
						hasStrongNeighbor = true
					}
				}
			}
			if hasStrongNeighbor {
				result.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return result
}

func clampIndex(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
