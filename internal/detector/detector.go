package detector

import (
	"errors"

	"gocv.io/x/gocv"
)

// ErrServiceNotFound is returned when the landmark service script cannot be located.
var ErrServiceNotFound = errors.New("landmark_service.py not found")

// Detector defines the interface for landmark detection implementations.
type Detector interface {
	// Detect analyzes a BGR image and returns the landmark sets found for
	// subject. Returns an empty slice if nothing is detected.
	Detect(frame *gocv.Mat, subject Subject, opts Options) ([]Instance, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Options holds per-call detection limits.
type Options struct {
	// MaxInstances is the maximum number of faces or hands to report.
	MaxInstances int `json:"maxInstances"`

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64 `json:"minConfidence"`
}
