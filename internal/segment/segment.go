// Package segment separates foreground from background with GrabCut seeded
// by a centered rectangle.
package segment

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/ayusman/controlmaps/internal/geom"
)

// Method identifies masks produced by a Segmenter.
const Method = "opencv-grabcut"

const (
	// MinDimension is the largest width or height treated as degenerate.
	MinDimension = 2
	// Iterations of the cut.
	Iterations = 3
	// MinMargin is the smallest inset of the seed rectangle in pixels.
	MinMargin = 10
	// MarginFraction is the inset of the seed rectangle per dimension.
	MarginFraction = 0.05
)

// ErrNoLabels is returned when a cut yields no label mat the size of the
// image.
var ErrNoLabels = errors.New("cut produced no labels")

// GrabCut labels treated as foreground.
const (
	labelForeground         = 1
	labelProbableForeground = 3
)

// CutFunc runs an iterative cut on img seeded with rect and returns the
// per-pixel label mat (0 bg, 1 fg, 2 probable bg, 3 probable fg).
type CutFunc func(img *gocv.Mat, rect image.Rectangle, iterations int) (gocv.Mat, error)

// GrabCut is the default CutFunc. OpenCV rejects seeds holding too few
// samples for its colour models; that failure is returned as an error.
func GrabCut(img *gocv.Mat, rect image.Rectangle, iterations int) (gocv.Mat, error) {
	labels := gocv.NewMat()

	bgdModel := gocv.NewMat()
	defer bgdModel.Close()
	fgdModel := gocv.NewMat()
	defer fgdModel.Close()

	if err := gocv.GrabCut(*img, &labels, rect, &bgdModel, &fgdModel, iterations, gocv.GCInitWithRect); err != nil {
		labels.Close()
		return gocv.NewMat(), fmt.Errorf("grabcut: %w", err)
	}
	return labels, nil
}

// Segmenter produces binary foreground masks.
type Segmenter struct {
	cut CutFunc
}

// New returns a Segmenter using cut, or GrabCut when cut is nil.
func New(cut CutFunc) *Segmenter {
	if cut == nil {
		cut = GrabCut
	}
	return &Segmenter{cut: cut}
}

// InitRect returns the seed rectangle for a cols x rows image, inset by
// max(MinMargin, 5%) per side and clipped to the image. The result is
// empty when the inset leaves no room.
func InitRect(cols, rows int) image.Rectangle {
	mx := max(MinMargin, int(float64(cols)*MarginFraction))
	my := max(MinMargin, int(float64(rows)*MarginFraction))
	w := max(1, cols-2*mx)
	h := max(1, rows-2*my)

	return image.Rect(mx, my, mx+w, my+h).Intersect(image.Rect(0, 0, cols, rows))
}

// Segment returns a mask the size of img, 255 for foreground and 0 for
// background. Images with a side of MinDimension or less, or too small to
// hold the seed rectangle, are all background and never reach the cut.
func (s *Segmenter) Segment(img *gocv.Mat) (gocv.Mat, error) {
	if img.Empty() {
		return gocv.NewMat(), geom.ErrEmptyMat
	}

	rows, cols := img.Rows(), img.Cols()
	if rows <= MinDimension || cols <= MinDimension {
		return geom.Blank(rows, cols), nil
	}

	rect := InitRect(cols, rows)
	if rect.Empty() {
		return geom.Blank(rows, cols), nil
	}

	bgr := toBGR(img)
	defer bgr.Close()

	labels, err := s.cut(&bgr, rect, Iterations)
	defer labels.Close()
	if err != nil {
		return gocv.NewMat(), err
	}
	if labels.Rows() != rows || labels.Cols() != cols {
		return gocv.NewMat(), fmt.Errorf("%w: got %dx%d for a %dx%d image",
			ErrNoLabels, labels.Cols(), labels.Rows(), cols, rows)
	}

	fg := Foreground(&labels)
	defer fg.Close()

	opened := geom.Open(&fg, 3, 1)
	defer opened.Close()

	return geom.Close(&opened, 3, 2), nil
}

// Foreground maps the definite and probable foreground labels to 255 and
// everything else to 0.
func Foreground(labels *gocv.Mat) gocv.Mat {
	sure := gocv.NewMat()
	defer sure.Close()
	one := gocv.NewMatFromScalar(gocv.Scalar{Val1: labelForeground}, gocv.MatTypeCV8U)
	defer one.Close()
	gocv.Compare(*labels, one, &sure, gocv.CompareEQ)

	probable := gocv.NewMat()
	defer probable.Close()
	three := gocv.NewMatFromScalar(gocv.Scalar{Val1: labelProbableForeground}, gocv.MatTypeCV8U)
	defer three.Close()
	gocv.Compare(*labels, three, &probable, gocv.CompareEQ)

	out := gocv.NewMat()
	gocv.BitwiseOr(sure, probable, &out)
	return out
}

// toBGR returns a 3-channel 8-bit copy of img, which GrabCut requires.
func toBGR(img *gocv.Mat) gocv.Mat {
	out := gocv.NewMat()
	switch img.Channels() {
	case 1:
		gocv.CvtColor(*img, &out, gocv.ColorGrayToBGR)
	case 4:
		gocv.CvtColor(*img, &out, gocv.ColorBGRAToBGR)
	default:
		img.CopyTo(&out)
	}
	return out
}
