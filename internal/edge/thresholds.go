package edge

import (
	"image"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Quantiles of the gradient-magnitude distribution used to place the
// hysteresis thresholds when the user asks for automatic values.
const (
	autoLowQuantile  = 0.80
	autoHighQuantile = 0.95
)

// AutoThresholds estimates (lowThreshold, highThreshold) slider values for a
// source image from its gradient-magnitude distribution. The returned values
// are in [0, 255] with low <= high.
func AutoThresholds(src image.Image) (low, high int) {
	if src == nil {
		return 0, 0
	}
	bounds := src.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return 0, 0
	}

	gray := blurGrayscale(src)
	magnitude, _ := sobel(gray, width, height)

	maxMag := 0.0
	mags := make([]float64, 0, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			m := magnitude[y][x]
			mags = append(mags, m)
			if m > maxMag {
				maxMag = m
			}
		}
	}
	if maxMag == 0 {
		return 0, 0
	}

	sort.Float64s(mags)
	lowMag := stat.Quantile(autoLowQuantile, stat.Empirical, mags, nil)
	highMag := stat.Quantile(autoHighQuantile, stat.Empirical, mags, nil)

	low = int(math.Round(lowMag / maxMag * 255.0))
	high = int(math.Round(highMag / maxMag * 255.0))

	low = clampThreshold(low)
	high = clampThreshold(high)
	if low > high {
		low = high
	}
	return low, high
}
