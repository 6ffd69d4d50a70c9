package geom

import (
	"image"

	"gocv.io/x/gocv"
)

// Kernel returns a size x size all-ones structuring element.
func Kernel(size int) gocv.Mat {
	return gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: size, Y: size})
}

// Dilate grows the foreground of src with a square kernel, iterations times.
func Dilate(src *gocv.Mat, size, iterations int) gocv.Mat {
	kernel := Kernel(size)
	defer kernel.Close()

	out := src.Clone()
	for i := 0; i < iterations; i++ {
		gocv.Dilate(out, &out, kernel)
	}
	return out
}

// Erode shrinks the foreground of src with a square kernel, iterations times.
func Erode(src *gocv.Mat, size, iterations int) gocv.Mat {
	kernel := Kernel(size)
	defer kernel.Close()

	out := src.Clone()
	for i := 0; i < iterations; i++ {
		gocv.Erode(out, &out, kernel)
	}
	return out
}

// Open removes speckle: erode iterations times, then dilate iterations times.
func Open(src *gocv.Mat, size, iterations int) gocv.Mat {
	eroded := Erode(src, size, iterations)
	defer eroded.Close()
	return Dilate(&eroded, size, iterations)
}

// Close fills small holes: dilate iterations times, then erode iterations times.
func Close(src *gocv.Mat, size, iterations int) gocv.Mat {
	dilated := Dilate(src, size, iterations)
	defer dilated.Close()
	return Erode(&dilated, size, iterations)
}
