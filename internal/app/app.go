// Package app wires the map generators into one pipeline invocation:
// load, resize, generate, persist.
package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/controlmaps/internal/artifact"
	"github.com/ayusman/controlmaps/internal/capability"
	"github.com/ayusman/controlmaps/internal/depth"
	"github.com/ayusman/controlmaps/internal/detector"
	"github.com/ayusman/controlmaps/internal/geom"
	"github.com/ayusman/controlmaps/internal/logging"
	"github.com/ayusman/controlmaps/internal/mask"
	"github.com/ayusman/controlmaps/internal/maps"
	"github.com/ayusman/controlmaps/internal/store"
)

// DefaultMaxDimension bounds the longer side of the working image.
const DefaultMaxDimension = 1024

// Config holds configuration options for the application.
type Config struct {
	Capabilities capability.Set
	// DepthModelSize selects the depth network variant.
	DepthModelSize string
	// Checkpoints are the depth checkpoint candidates, defaults when empty.
	Checkpoints []string
	// Landmarks configures the landmark service.
	Landmarks detector.MediaPipeConfig
	// MaxDimension applies when a request does not set one.
	MaxDimension int
	// Kinds applies when a request leaves Kinds nil.
	Kinds []maps.Kind
	// Store records every run when set.
	Store  *store.Store
	Logger *zap.Logger
	// Now stamps records, time.Now when nil.
	Now func() time.Time
}

// Request describes one invocation.
type Request struct {
	// RunID identifies the run, a new UUID when empty.
	RunID        string
	InputPath    string
	OutputDir    string
	// Kinds nil means the configured defaults; an empty, non-nil slice
	// requests nothing.
	Kinds        []maps.Kind
	MaxDimension int
	// Observer receives per-kind progress events.
	Observer     maps.Observer
}

// App generates control maps.
type App struct {
	config   Config
	logger   *zap.Logger
	mu       sync.RWMutex
	caps     capability.Set
	detector detector.Detector
}

// New creates a new App instance with the given configuration.
func New(config Config) *App {
	if config.MaxDimension == 0 {
		config.MaxDimension = DefaultMaxDimension
	}
	if config.Kinds == nil {
		config.Kinds = maps.DefaultKinds
	}

	a := &App{
		config: config,
		logger: logging.OrNop(config.Logger),
		caps:   config.Capabilities,
	}

	if a.caps.Landmarks {
		lm := config.Landmarks
		lm.Logger = a.logger
		if mp, err := detector.NewMediaPipeDetector(lm); err == nil {
			a.detector = mp
			a.logger.Info("using MediaPipe landmark detection")
		} else {
			a.logger.Warn("MediaPipe not available, mask maps disabled", zap.Error(err))
			a.caps.Landmarks = false
		}
	}

	return a
}

// SetDetector installs d as the landmark detector and marks the landmark
// capability present.
func (a *App) SetDetector(d detector.Detector) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.detector = d
	a.caps.Landmarks = d != nil
}

// Capabilities returns the effective capability set.
func (a *App) Capabilities() capability.Set {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.caps
}

// Store returns the history store, nil when history is disabled.
func (a *App) Store() *store.Store {
	return a.config.Store
}

// Generate loads req.InputPath and runs the pipeline on it. The only error
// returned for a decodable input is a failure to create the output
// directory; a failed input.png write and per-kind failures are logged and
// omitted from the result.
func (a *App) Generate(req Request) (maps.ResultSet, error) {
	img, err := artifact.Load(req.InputPath)
	if err != nil {
		return maps.ResultSet{}, err
	}
	defer img.Close()

	return a.GenerateImage(&img, req)
}

// GenerateImage runs the pipeline on an already decoded image.
func (a *App) GenerateImage(img *gocv.Mat, req Request) (maps.ResultSet, error) {
	if img.Empty() {
		return maps.ResultSet{}, fmt.Errorf("%w: %s", artifact.ErrUndecodable, req.InputPath)
	}

	kinds := req.Kinds
	if kinds == nil {
		kinds = a.config.Kinds
	}
	maxDim := req.MaxDimension
	if maxDim == 0 {
		maxDim = a.config.MaxDimension
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := a.logger.With(zap.String("run", runID))

	work := geom.FitWithin(img, maxDim)
	defer work.Close()

	writer, err := artifact.NewWriter(req.OutputDir)
	if err != nil {
		return maps.ResultSet{}, err
	}
	inputName, err := writer.WriteInput(&work)
	if err != nil {
		logger.Warn("failed to save working image", zap.Error(err))
	}

	a.mu.RLock()
	caps, det := a.caps, a.detector
	a.mu.RUnlock()

	// One estimator per invocation; the device is picked on its first use.
	estimator := depth.NewEstimator(depth.Config{
		Capabilities: caps,
		ModelSize:    a.config.DepthModelSize,
		Checkpoints:  a.config.Checkpoints,
		Logger:       logger,
	})
	defer estimator.Close()

	var observer maps.Observer
	if req.Observer != nil {
		observer = func(e maps.Event) {
			e.RunID = runID
			req.Observer(e)
		}
	}

	orchestrator := maps.NewOrchestrator(maps.Config{
		Depth:    estimator,
		Masks:    mask.NewGenerator(mask.Config{Capabilities: caps, Detector: det, Logger: logger}),
		Sink:     writer,
		Observer: observer,
		Logger:   logger,
		Now:      a.config.Now,
	})

	result := orchestrator.Run(&work, kinds)
	result.RunID = runID
	result.InputFilename = inputName

	logger.Info("maps generated",
		zap.Int("width", result.SourceWidth),
		zap.Int("height", result.SourceHeight),
		zap.Int("requested", len(kinds)),
		zap.Int("produced", len(result.Maps)))

	if a.config.Store != nil {
		run := store.NewRun(result, req.InputPath, req.OutputDir, kinds)
		if err := a.config.Store.Runs().Create(run); err != nil {
			logger.Warn("failed to record run", zap.Error(err))
		}
	}

	return result, nil
}

// Close releases the landmark detector.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.detector == nil {
		return nil
	}
	err := a.detector.Close()
	a.detector = nil
	return err
}
