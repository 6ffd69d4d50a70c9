// Package geom holds the numeric helpers shared by every map generator:
// gradients, normalization, convex-hull rasterization, morphology and resizing.
//
// All helpers follow the gocv ownership rule: inputs are borrowed, every
// returned Mat is new and must be closed by the caller.
package geom

import (
	"errors"

	"gocv.io/x/gocv"
)

// ErrEmptyMat is returned when a generator receives an empty image.
var ErrEmptyMat = errors.New("empty image")

// Intensity bounds of the display range.
const (
	Background = 0
	Foreground = 255
)

// ToGray returns a single-channel copy of src.
func ToGray(src *gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()

	switch src.Channels() {
	case 1:
		src.CopyTo(&gray)
	case 4:
		gocv.CvtColor(*src, &gray, gocv.ColorBGRAToGray)
	default:
		gocv.CvtColor(*src, &gray, gocv.ColorBGRToGray)
	}

	return gray
}

// Blank returns a zeroed single-channel 8-bit mat.
func Blank(rows, cols int) gocv.Mat {
	m := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8U)
	m.SetTo(gocv.NewScalar(Background, 0, 0, 0))
	return m
}
