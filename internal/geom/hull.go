package geom

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

var white = color.RGBA{R: Foreground, G: Foreground, B: Foreground, A: Foreground}

// ConvexHull returns the hull vertices of pts.
func ConvexHull(pts []image.Point) []image.Point {
	if len(pts) == 0 {
		return nil
	}

	in := gocv.NewPointVectorFromPoints(pts)
	defer in.Close()

	hull := gocv.NewMat()
	defer hull.Close()
	gocv.ConvexHull(in, &hull, false, true)

	// The hull comes back as an Nx1 (or 1xN) CV_32SC2 mat.
	n := hull.Rows() * hull.Cols()
	out := make([]image.Point, 0, n)
	for i := 0; i < n; i++ {
		var v gocv.Veci
		if hull.Cols() == 1 {
			v = hull.GetVeciAt(i, 0)
		} else {
			v = hull.GetVeciAt(0, i)
		}
		out = append(out, image.Point{X: int(v[0]), Y: int(v[1])})
	}
	return out
}

// FillConvexHulls rasterizes the convex hull of every point set into dst as
// a filled foreground region. Empty sets are skipped.
func FillConvexHulls(dst *gocv.Mat, sets [][]image.Point) {
	for _, pts := range sets {
		hull := ConvexHull(pts)
		if len(hull) == 0 {
			continue
		}

		poly := gocv.NewPointsVectorFromPoints([][]image.Point{hull})
		gocv.FillPoly(dst, poly, white)
		poly.Close()
	}
}
