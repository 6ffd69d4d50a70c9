package depth

import (
	"errors"
	"fmt"
	"image"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/controlmaps/internal/capability"
	"github.com/ayusman/controlmaps/internal/geom"
	"github.com/ayusman/controlmaps/internal/logging"
)

// ModelInputSize is the square input resolution of the depth network.
const ModelInputSize = 518

var (
	// ErrCheckpointNotFound is returned when no candidate checkpoint exists.
	ErrCheckpointNotFound = errors.New("depth checkpoint not found")
	// ErrModelLoad is returned when a checkpoint exists but cannot be loaded.
	ErrModelLoad = errors.New("depth model failed to load")
)

// ImageNet statistics in 8-bit units. The blob API takes a single scale
// factor, so the per-channel std is approximated by its mean.
var (
	modelMean  = gocv.NewScalar(123.675, 116.28, 103.53, 0)
	modelScale = 1.0 / (255.0 * 0.226)
)

// ModelConfig configures the learned depth strategy.
type ModelConfig struct {
	// Size is the model variant: vits, vitb or vitl.
	Size string
	// Checkpoints overrides the default candidate locations when non-empty.
	Checkpoints []string
	// Capabilities gates the strategy and lists the usable devices.
	Capabilities capability.Set
	Logger       *zap.Logger
}

// Model runs a Depth Anything V2 network exported to ONNX through OpenCV's
// dnn module. The network is loaded on first use and the compute device is
// picked once at that point.
type Model struct {
	size        string
	checkpoints []string
	caps        capability.Set
	logger      *zap.Logger

	net    *gocv.Net
	device capability.Device
}

// NewModel creates a Model. Nothing is loaded until Estimate is called.
func NewModel(cfg ModelConfig) *Model {
	size := NormalizeSize(cfg.Size)

	checkpoints := cfg.Checkpoints
	if len(checkpoints) == 0 {
		checkpoints = DefaultCheckpoints(size)
	}

	return &Model{
		size:        size,
		checkpoints: checkpoints,
		caps:        cfg.Capabilities,
		logger:      logging.OrNop(cfg.Logger),
	}
}

// Name implements Strategy.
func (m *Model) Name() string {
	return "depth-anything-v2-" + m.size
}

// Device returns the device picked at load time, empty before loading.
func (m *Model) Device() capability.Device {
	return m.device
}

// Estimate implements Strategy.
func (m *Model) Estimate(img *gocv.Mat) (gocv.Mat, error) {
	if !m.caps.DepthModel {
		return gocv.NewMat(), fmt.Errorf("depth model: %w", capability.ErrUnavailable)
	}
	if img.Empty() {
		return gocv.NewMat(), geom.ErrEmptyMat
	}
	if err := m.load(); err != nil {
		return gocv.NewMat(), err
	}

	rgb := gocv.NewMat()
	defer rgb.Close()
	if img.Channels() == 1 {
		gocv.CvtColor(*img, &rgb, gocv.ColorGrayToRGB)
	} else {
		gocv.CvtColor(*img, &rgb, gocv.ColorBGRToRGB)
	}

	blob := gocv.BlobFromImage(rgb, modelScale, image.Point{X: ModelInputSize, Y: ModelInputSize}, modelMean, false, false)
	defer blob.Close()

	m.net.SetInput(blob, "")
	out := m.net.Forward("")
	defer out.Close()

	dims := out.Size()
	if len(dims) < 2 {
		return gocv.NewMat(), fmt.Errorf("unexpected depth output shape %v", dims)
	}
	h, w := dims[len(dims)-2], dims[len(dims)-1]

	raw, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV32F, out.ToBytes())
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("read depth output: %w", err)
	}
	defer raw.Close()

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(raw, &resized, image.Point{X: img.Cols(), Y: img.Rows()}, 0, 0, gocv.InterpolationCubic)

	return geom.RescaleToByte(&resized)
}

// Close releases the network.
func (m *Model) Close() error {
	if m.net == nil {
		return nil
	}
	err := m.net.Close()
	m.net = nil
	return err
}

func (m *Model) load() error {
	if m.net != nil {
		return nil
	}

	path, ok := ResolveCheckpoint(m.checkpoints)
	if !ok {
		return fmt.Errorf("%w for %s", ErrCheckpointNotFound, m.size)
	}

	net := gocv.ReadNetFromONNX(path)
	if net.Empty() {
		net.Close()
		return fmt.Errorf("%w: %s", ErrModelLoad, path)
	}

	m.device = capability.PickDevice(m.caps.Devices)
	switch m.device {
	case capability.DeviceCUDA:
		net.SetPreferableBackend(gocv.NetBackendCUDA)
		net.SetPreferableTarget(gocv.NetTargetCUDA)
	case capability.DeviceOpenCL:
		net.SetPreferableBackend(gocv.NetBackendOpenCV)
		net.SetPreferableTarget(gocv.NetTargetFP32)
	default:
		net.SetPreferableBackend(gocv.NetBackendOpenCV)
		net.SetPreferableTarget(gocv.NetTargetCPU)
	}

	m.logger.Info("depth model loaded",
		zap.String("checkpoint", path),
		zap.String("device", string(m.device)))

	m.net = &net
	return nil
}
