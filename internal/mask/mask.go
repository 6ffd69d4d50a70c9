// Package mask rasterizes face and hand landmarks into binary region masks.
package mask

import (
	"fmt"
	"image"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/controlmaps/internal/capability"
	"github.com/ayusman/controlmaps/internal/detector"
	"github.com/ayusman/controlmaps/internal/geom"
	"github.com/ayusman/controlmaps/internal/logging"
)

// Params controls detection and rasterization for one subject.
type Params struct {
	MaxInstances  int
	MinConfidence float64
	// KernelSize is the side of the square dilation kernel.
	KernelSize int
	Iterations int
	// Method is recorded as the model used for the mask.
	Method string
}

// Options returns the detector options for p.
func (p Params) Options() detector.Options {
	return detector.Options{MaxInstances: p.MaxInstances, MinConfidence: p.MinConfidence}
}

var (
	// FaceParams covers up to ten faces with a light dilation.
	FaceParams = Params{MaxInstances: 10, MinConfidence: 0.5, KernelSize: 5, Iterations: 2, Method: "mediapipe-face-mesh"}
	// HandsParams covers up to four hands with a wide dilation.
	HandsParams = Params{MaxInstances: 4, MinConfidence: 0.5, KernelSize: 15, Iterations: 2, Method: "mediapipe-hands"}
)

// ParamsFor returns the parameters for subject.
func ParamsFor(subject detector.Subject) (Params, error) {
	switch subject {
	case detector.SubjectFace:
		return FaceParams, nil
	case detector.SubjectHands:
		return HandsParams, nil
	}
	return Params{}, fmt.Errorf("no mask parameters for subject %q", subject)
}

// Config configures a Generator.
type Config struct {
	Capabilities capability.Set
	// Detector is used when the landmark capability is present.
	Detector detector.Detector
	Logger   *zap.Logger
}

// Generator produces region masks from detected landmarks.
type Generator struct {
	caps     capability.Set
	detector detector.Detector
	logger   *zap.Logger
}

// NewGenerator creates a Generator.
func NewGenerator(cfg Config) *Generator {
	return &Generator{
		caps:     cfg.Capabilities,
		detector: cfg.Detector,
		logger:   logging.OrNop(cfg.Logger),
	}
}

// DetectAndMask detects subject in img and returns its mask together with
// the method used. It returns capability.ErrUnavailable when no landmark
// detector is available. No detections is not an error: the mask is empty.
func (g *Generator) DetectAndMask(img *gocv.Mat, subject detector.Subject) (gocv.Mat, string, error) {
	params, err := ParamsFor(subject)
	if err != nil {
		return gocv.NewMat(), "", err
	}
	if !g.caps.Landmarks || g.detector == nil {
		return gocv.NewMat(), "", fmt.Errorf("%s landmarks: %w", subject, capability.ErrUnavailable)
	}
	if img.Empty() {
		return gocv.NewMat(), "", geom.ErrEmptyMat
	}

	instances, err := g.detector.Detect(img, subject, params.Options())
	if err != nil {
		return gocv.NewMat(), "", fmt.Errorf("detect %s: %w", subject, err)
	}
	if len(instances) > params.MaxInstances {
		instances = instances[:params.MaxInstances]
	}

	g.logger.Debug("landmarks detected",
		zap.String("subject", string(subject)),
		zap.Int("instances", len(instances)))

	return Rasterize(img.Rows(), img.Cols(), instances, params), params.Method, nil
}

// Close releases the detector.
func (g *Generator) Close() error {
	if g.detector == nil {
		return nil
	}
	return g.detector.Close()
}

// Rasterize fills the convex hull of every instance on a rows x cols
// background and dilates the union with the kernel from params.
func Rasterize(rows, cols int, instances []detector.Instance, params Params) gocv.Mat {
	m := geom.Blank(rows, cols)
	if len(instances) == 0 {
		return m
	}

	sets := make([][]image.Point, 0, len(instances))
	for _, in := range instances {
		sets = append(sets, ToPixels(in.Points, rows, cols))
	}
	geom.FillConvexHulls(&m, sets)

	dilated := geom.Dilate(&m, params.KernelSize, params.Iterations)
	m.Close()
	return dilated
}

// ToPixels converts normalized landmarks into pixel coordinates by
// truncating x*cols and y*rows.
func ToPixels(points []detector.Point3D, rows, cols int) []image.Point {
	out := make([]image.Point, len(points))
	for i, p := range points {
		out[i] = image.Point{X: int(p.X * float64(cols)), Y: int(p.Y * float64(rows))}
	}
	return out
}
