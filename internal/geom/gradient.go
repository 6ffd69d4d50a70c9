package geom

import (
	"fmt"
	"math"

	"gocv.io/x/gocv"
)

// Epsilon guards every normalization denominator.
const Epsilon = 1e-8

// Gradients returns the horizontal and vertical first derivatives of src
// computed with a 3x3 Sobel operator. Both results are float32 mats.
func Gradients(src *gocv.Mat) (dx, dy gocv.Mat) {
	dx = gocv.NewMat()
	dy = gocv.NewMat()

	gocv.Sobel(*src, &dx, gocv.MatTypeCV32F, 1, 0, 3, 1, 0, gocv.BorderDefault)
	gocv.Sobel(*src, &dy, gocv.MatTypeCV32F, 0, 1, 3, 1, 0, gocv.BorderDefault)

	return dx, dy
}

// MinMax returns the smallest and largest value of a float32 mat.
func MinMax(src *gocv.Mat) (lo, hi float32, err error) {
	data, err := src.DataPtrFloat32()
	if err != nil {
		return 0, 0, fmt.Errorf("read float data: %w", err)
	}
	if len(data) == 0 {
		return 0, 0, ErrEmptyMat
	}

	lo, hi = data[0], data[0]
	for _, v := range data[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi, nil
}

// RescaleToByte linearly maps the per-image min/max of src onto 0..255 and
// returns an 8-bit mat. Values are truncated, not rounded, and computed in
// float32 as (v-min)/(max-min+Epsilon)*255. A constant input maps to 0.
func RescaleToByte(src *gocv.Mat) (gocv.Mat, error) {
	if src.Empty() {
		return gocv.NewMat(), ErrEmptyMat
	}

	f := gocv.NewMat()
	defer f.Close()
	if src.Type() == gocv.MatTypeCV32F {
		src.CopyTo(&f)
	} else {
		src.ConvertTo(&f, gocv.MatTypeCV32F)
	}

	lo, hi, err := MinMax(&f)
	if err != nil {
		return gocv.NewMat(), err
	}

	data, err := f.DataPtrFloat32()
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("read float data: %w", err)
	}

	denom := hi - lo + float32(Epsilon)
	out := make([]byte, len(data))
	for i, v := range data {
		scaled := (v - lo) / denom * 255
		switch {
		case scaled <= 0:
			out[i] = 0
		case scaled >= 255:
			out[i] = 255
		default:
			out[i] = byte(scaled)
		}
	}

	return gocv.NewMatFromBytes(f.Rows(), f.Cols(), gocv.MatTypeCV8U, out)
}

// UnitVector scales (x, y, z) to unit length.
func UnitVector(x, y, z float64) (float64, float64, float64) {
	n := math.Sqrt(x*x+y*y+z*z) + Epsilon
	return x / n, y / n, z / n
}
