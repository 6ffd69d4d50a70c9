package geom

import (
	"image"

	"gocv.io/x/gocv"
)

// ScaledSize returns the size of a w x h image shrunk so its longer side is
// at most maxDim. It never upscales; ok is false when no resize is needed.
func ScaledSize(w, h, maxDim int) (newW, newH int, ok bool) {
	longer := max(w, h)
	if maxDim <= 0 || longer <= maxDim {
		return w, h, false
	}

	scale := float64(maxDim) / float64(longer)
	newW = max(1, int(float64(w)*scale))
	newH = max(1, int(float64(h)*scale))
	return newW, newH, true
}

// FitWithin returns src downscaled with area interpolation so its longer side
// does not exceed maxDim, or a clone when it already fits.
func FitWithin(src *gocv.Mat, maxDim int) gocv.Mat {
	newW, newH, ok := ScaledSize(src.Cols(), src.Rows(), maxDim)
	if !ok {
		return src.Clone()
	}

	resized := gocv.NewMat()
	gocv.Resize(*src, &resized, image.Point{X: newW, Y: newH}, 0, 0, gocv.InterpolationArea)
	return resized
}
