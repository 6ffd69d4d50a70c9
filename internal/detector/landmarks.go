// Package detector provides landmark detection for faces and hands.
package detector

import "fmt"

// Subject selects what a detector looks for.
type Subject string

const (
	// SubjectFace detects dense face meshes.
	SubjectFace Subject = "face"
	// SubjectHands detects hand skeletons.
	SubjectHands Subject = "hands"
)

// ParseSubject validates a subject name.
func ParseSubject(s string) (Subject, error) {
	switch Subject(s) {
	case SubjectFace, SubjectHands:
		return Subject(s), nil
	}
	return "", fmt.Errorf("unknown subject %q", s)
}

// Hand landmark indices following MediaPipe convention.
const (
	Wrist     = 0
	ThumbCMC  = 1
	ThumbMCP  = 2
	ThumbIP   = 3
	ThumbTip  = 4
	IndexMCP  = 5
	IndexPIP  = 6
	IndexDIP  = 7
	IndexTip  = 8
	MiddleMCP = 9
	MiddlePIP = 10
	MiddleDIP = 11
	MiddleTip = 12
	RingMCP   = 13
	RingPIP   = 14
	RingDIP   = 15
	RingTip   = 16
	PinkyMCP  = 17
	PinkyPIP  = 18
	PinkyDIP  = 19
	PinkyTip  = 20

	NumHandLandmarks = 21
)

// NumFaceLandmarks is the size of a refined face mesh.
const NumFaceLandmarks = 478

// Point3D is a landmark in normalized image coordinates: x and y in [0,1]
// relative to the image width and height, z relative depth.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Instance is one detected face or hand.
type Instance struct {
	Points []Point3D `json:"points"`
	Score  float64   `json:"score"`
	// Label is the handedness for hands ("Left" or "Right"), empty for faces.
	Label string `json:"label,omitempty"`
}

// Bounds returns the normalized bounding box of the instance.
func (in Instance) Bounds() (minX, minY, maxX, maxY float64) {
	if len(in.Points) == 0 {
		return 0, 0, 0, 0
	}
	minX, minY = in.Points[0].X, in.Points[0].Y
	maxX, maxY = minX, minY
	for _, p := range in.Points[1:] {
		minX = min(minX, p.X)
		minY = min(minY, p.Y)
		maxX = max(maxX, p.X)
		maxY = max(maxY, p.Y)
	}
	return minX, minY, maxX, maxY
}
