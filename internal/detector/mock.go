package detector

import (
	"math"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results per subject.
type MockDetector struct {
	instances map[Subject][]Instance
	errs      map[Subject]error
	calls     map[Subject]int
	closed    bool
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{
		instances: make(map[Subject][]Instance),
		errs:      make(map[Subject]error),
		calls:     make(map[Subject]int),
	}
}

// SetInstances sets what Detect returns for subject.
func (m *MockDetector) SetInstances(subject Subject, instances []Instance) {
	m.instances[subject] = instances
}

// SetError sets the error Detect returns for subject.
func (m *MockDetector) SetError(subject Subject, err error) {
	m.errs[subject] = err
}

// Calls returns how many times Detect ran for subject.
func (m *MockDetector) Calls(subject Subject) int {
	return m.calls[subject]
}

// Closed reports whether Close was called.
func (m *MockDetector) Closed() bool {
	return m.closed
}

// Detect returns the pre-configured instances or error, honoring
// opts.MaxInstances and opts.MinConfidence.
func (m *MockDetector) Detect(frame *gocv.Mat, subject Subject, opts Options) ([]Instance, error) {
	m.calls[subject]++
	if err := m.errs[subject]; err != nil {
		return nil, err
	}

	var out []Instance
	for _, in := range m.instances[subject] {
		if in.Score < opts.MinConfidence {
			continue
		}
		if opts.MaxInstances > 0 && len(out) == opts.MaxInstances {
			break
		}
		out = append(out, in)
	}
	return out, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	m.closed = true
	return nil
}

// OpenPalmLandmarks returns a right hand with all fingers extended, centered
// horizontally in the lower half of the frame.
func OpenPalmLandmarks() Instance {
	points := make([]Point3D, NumHandLandmarks)

	points[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0.0}

	points[ThumbCMC] = Point3D{X: 0.55, Y: 0.75, Z: 0.02}
	points[ThumbMCP] = Point3D{X: 0.62, Y: 0.70, Z: 0.03}
	points[ThumbIP] = Point3D{X: 0.68, Y: 0.65, Z: 0.03}
	points[ThumbTip] = Point3D{X: 0.73, Y: 0.60, Z: 0.03}

	points[IndexMCP] = Point3D{X: 0.55, Y: 0.68, Z: 0.0}
	points[IndexPIP] = Point3D{X: 0.57, Y: 0.55, Z: 0.0}
	points[IndexDIP] = Point3D{X: 0.58, Y: 0.45, Z: 0.0}
	points[IndexTip] = Point3D{X: 0.58, Y: 0.35, Z: 0.0}

	points[MiddleMCP] = Point3D{X: 0.50, Y: 0.66, Z: 0.0}
	points[MiddlePIP] = Point3D{X: 0.50, Y: 0.52, Z: 0.0}
	points[MiddleDIP] = Point3D{X: 0.50, Y: 0.40, Z: 0.0}
	points[MiddleTip] = Point3D{X: 0.50, Y: 0.28, Z: 0.0}

	points[RingMCP] = Point3D{X: 0.45, Y: 0.68, Z: 0.0}
	points[RingPIP] = Point3D{X: 0.43, Y: 0.55, Z: 0.0}
	points[RingDIP] = Point3D{X: 0.42, Y: 0.45, Z: 0.0}
	points[RingTip] = Point3D{X: 0.42, Y: 0.35, Z: 0.0}

	points[PinkyMCP] = Point3D{X: 0.40, Y: 0.70, Z: 0.0}
	points[PinkyPIP] = Point3D{X: 0.37, Y: 0.60, Z: 0.0}
	points[PinkyDIP] = Point3D{X: 0.35, Y: 0.50, Z: 0.0}
	points[PinkyTip] = Point3D{X: 0.34, Y: 0.42, Z: 0.0}

	return Instance{Points: points, Score: 0.95, Label: "Right"}
}

// FaceOvalLandmarks returns a face mesh approximated by an ellipse of n
// points centered at (cx, cy) with normalized radii rx and ry.
func FaceOvalLandmarks(cx, cy, rx, ry float64, n int) Instance {
	points := make([]Point3D, n)
	for i := range points {
		a := 2 * math.Pi * float64(i) / float64(n)
		points[i] = Point3D{X: cx + rx*math.Cos(a), Y: cy + ry*math.Sin(a)}
	}
	return Instance{Points: points, Score: 0.9}
}
