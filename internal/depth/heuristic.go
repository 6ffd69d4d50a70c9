package depth

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/ayusman/controlmaps/internal/geom"
)

// HeuristicMethod identifies maps produced by Heuristic.
const HeuristicMethod = "simple-laplacian"

// HeuristicBlurSize is the smoothing kernel applied to the sharpness response.
const HeuristicBlurSize = 31

// Heuristic approximates depth from local sharpness: in-focus regions are
// assumed to be closer. It is not a physical depth estimate and fails on
// scenes with uniform focus or a sharp background.
type Heuristic struct{}

// Name implements Strategy.
func (Heuristic) Name() string {
	return HeuristicMethod
}

// Estimate implements Strategy.
func (Heuristic) Estimate(img *gocv.Mat) (gocv.Mat, error) {
	if img.Empty() {
		return gocv.NewMat(), geom.ErrEmptyMat
	}

	gray := geom.ToGray(img)
	defer gray.Close()

	lap := gocv.NewMat()
	defer lap.Close()
	gocv.Laplacian(gray, &lap, gocv.MatTypeCV32F, 1, 1, 0, gocv.BorderDefault)

	response, err := lap.DataPtrFloat32()
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("read laplacian: %w", err)
	}
	for i, v := range response {
		if v < 0 {
			response[i] = -v
		}
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(lap, &blurred, image.Point{X: HeuristicBlurSize, Y: HeuristicBlurSize}, 0, 0, gocv.BorderDefault)

	return geom.RescaleToByte(&blurred)
}
