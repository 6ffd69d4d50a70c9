// Package capability describes which optional backends are present for a
// pipeline run.
package capability

import (
	"errors"
	"os"
	"strings"
)

// ErrUnavailable is returned when an optional backend (learned depth model,
// landmark detector) is not present.
var ErrUnavailable = errors.New("capability unavailable")

// Device identifies a compute device for the learned depth path.
type Device string

const (
	// DeviceCUDA is an NVIDIA GPU through the CUDA backend.
	DeviceCUDA Device = "cuda"
	// DeviceOpenCL is the alternate accelerator through OpenCL.
	DeviceOpenCL Device = "opencl"
	// DeviceCPU is always available.
	DeviceCPU Device = "cpu"
)

// DevicePreference is the fixed order in which devices are picked.
var DevicePreference = []Device{DeviceCUDA, DeviceOpenCL, DeviceCPU}

// Set is the capability object constructed once at startup and handed to the
// depth estimator and the region mask generator.
type Set struct {
	// DepthModel reports whether a learned depth checkpoint can be loaded.
	DepthModel bool
	// Landmarks reports whether the landmark detector can be started.
	Landmarks bool
	// Devices lists the compute devices usable by the depth model.
	Devices []Device
}

// None returns a Set with every optional backend disabled.
func None() Set {
	return Set{Devices: []Device{DeviceCPU}}
}

// PickDevice returns the most preferred device present in available.
// The CPU is returned when nothing else matches.
func PickDevice(available []Device) Device {
	for _, want := range DevicePreference {
		for _, have := range available {
			if have == want {
				return want
			}
		}
	}
	return DeviceCPU
}

// ParseDevices converts device names into Devices, skipping unknown names.
func ParseDevices(names []string) []Device {
	devices := make([]Device, 0, len(names))
	for _, n := range names {
		switch d := Device(strings.ToLower(strings.TrimSpace(n))); d {
		case DeviceCUDA, DeviceOpenCL, DeviceCPU:
			devices = append(devices, d)
		}
	}
	return devices
}

// DetectOptions lists what Detect should look for.
type DetectOptions struct {
	// DepthEnabled allows the learned depth path at all.
	DepthEnabled bool
	// Checkpoints are candidate checkpoint paths in priority order.
	Checkpoints []string
	// LandmarksEnabled allows the landmark detector at all.
	LandmarksEnabled bool
	// LandmarkScript is the resolved detector service script, empty if not found.
	LandmarkScript string
	// Devices are the configured compute devices.
	Devices []string
}

// Detect builds a Set from the filesystem state.
func Detect(opts DetectOptions) Set {
	set := Set{
		Devices: ParseDevices(opts.Devices),
	}
	if len(set.Devices) == 0 {
		set.Devices = []Device{DeviceCPU}
	}

	if opts.DepthEnabled {
		for _, p := range opts.Checkpoints {
			if info, err := os.Stat(p); err == nil && !info.IsDir() {
				set.DepthModel = true
				break
			}
		}
	}

	if opts.LandmarksEnabled && opts.LandmarkScript != "" {
		if _, err := os.Stat(opts.LandmarkScript); err == nil {
			set.Landmarks = true
		}
	}

	return set
}
