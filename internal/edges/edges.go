// Package edges produces a binary line map with automatically chosen Canny
// thresholds.
package edges

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/ayusman/controlmaps/internal/geom"
)

// Method identifies maps produced by Detect.
const Method = "canny-auto"

// Sigma sets the width of the threshold band around the median intensity.
const Sigma = 0.33

// Detect blurs img, derives the hysteresis thresholds from the median of the
// blurred grayscale and returns the Canny edge map (0 or 255 per pixel).
func Detect(img *gocv.Mat) (gocv.Mat, error) {
	if img.Empty() {
		return gocv.NewMat(), geom.ErrEmptyMat
	}

	gray := geom.ToGray(img)
	defer gray.Close()

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: 3, Y: 3}, 0, 0, gocv.BorderDefault)

	med, err := Median(&blurred)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("median: %w", err)
	}
	low, high := Thresholds(med)

	out := gocv.NewMat()
	gocv.Canny(blurred, &out, float32(low), float32(high))
	return out, nil
}

// Median returns the median intensity of a single-channel 8-bit mat. For an
// even pixel count it is the mean of the two middle values.
func Median(m *gocv.Mat) (float64, error) {
	if m.Empty() {
		return 0, geom.ErrEmptyMat
	}
	if m.Channels() != 1 || m.Type() != gocv.MatTypeCV8U {
		return 0, fmt.Errorf("median needs a single-channel 8-bit mat, got type %v", m.Type())
	}

	var hist [256]int
	data := m.ToBytes()
	for _, v := range data {
		hist[v]++
	}

	n := len(data)
	if n%2 == 1 {
		return float64(nth(&hist, n/2)), nil
	}
	return (float64(nth(&hist, n/2-1)) + float64(nth(&hist, n/2))) / 2, nil
}

// Thresholds returns the Canny low and high thresholds for a median
// intensity, clamped to the display range and truncated to integers.
func Thresholds(median float64) (low, high int) {
	low = int(max(0, (1-Sigma)*median))
	high = int(min(255, (1+Sigma)*median))
	return low, high
}

// nth returns the k-th smallest value (0-based) counted in hist.
func nth(hist *[256]int, k int) int {
	seen := 0
	for v, c := range hist {
		seen += c
		if seen > k {
			return v
		}
	}
	return 255
}
