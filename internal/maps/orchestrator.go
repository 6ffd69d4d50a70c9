package maps

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/controlmaps/internal/capability"
	"github.com/ayusman/controlmaps/internal/depth"
	"github.com/ayusman/controlmaps/internal/detector"
	"github.com/ayusman/controlmaps/internal/edges"
	"github.com/ayusman/controlmaps/internal/logging"
	"github.com/ayusman/controlmaps/internal/normals"
	"github.com/ayusman/controlmaps/internal/segment"
)

// ErrSizeMismatch is returned when a generator's output does not match the
// working image size.
var ErrSizeMismatch = errors.New("map size differs from the working image")

// DepthEstimator produces a tagged depth map.
type DepthEstimator interface {
	Estimate(img *gocv.Mat) (*depth.Map, error)
}

// MaskGenerator produces region masks for a landmark subject.
type MaskGenerator interface {
	DetectAndMask(img *gocv.Mat, subject detector.Subject) (gocv.Mat, string, error)
}

// Segmenter produces a foreground mask.
type Segmenter interface {
	Segment(img *gocv.Mat) (gocv.Mat, error)
}

// Sink persists a produced map and returns the artifact filename.
type Sink interface {
	Write(kind Kind, m *gocv.Mat) (string, error)
}

// Config configures an Orchestrator.
type Config struct {
	// Depth defaults to the heuristic-only chain.
	Depth DepthEstimator
	// Masks is optional; without it mask kinds fail as unavailable.
	Masks MaskGenerator
	// Segmenter defaults to GrabCut.
	Segmenter Segmenter
	// Sink is optional; without it records carry no filename.
	Sink     Sink
	Observer Observer
	Logger   *zap.Logger
	// Now stamps records, time.Now when nil.
	Now func() time.Time
}

// Orchestrator runs the requested generators over one image.
type Orchestrator struct {
	depth     DepthEstimator
	masks     MaskGenerator
	segmenter Segmenter
	sink      Sink
	observer  Observer
	logger    *zap.Logger
	now       func() time.Time
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(cfg Config) *Orchestrator {
	o := &Orchestrator{
		depth:     cfg.Depth,
		masks:     cfg.Masks,
		segmenter: cfg.Segmenter,
		sink:      cfg.Sink,
		observer:  cfg.Observer,
		logger:    logging.OrNop(cfg.Logger),
		now:       cfg.Now,
	}
	if o.depth == nil {
		o.depth = depth.NewChain(o.logger, depth.Heuristic{})
	}
	if o.segmenter == nil {
		o.segmenter = segment.New(nil)
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// run holds the state of a single Run call.
type run struct {
	img   *gocv.Mat
	cache map[Kind]*depth.Map
}

func (r *run) close() {
	for _, m := range r.cache {
		m.Close()
	}
}

// Run generates kinds in order, once per occurrence: a repeated kind yields
// one record per successful occurrence. Unknown kinds are skipped, and a
// failing kind is logged and omitted without affecting the others.
func (o *Orchestrator) Run(img *gocv.Mat, kinds []Kind) ResultSet {
	result := ResultSet{
		Maps:         []Record{},
		SourceWidth:  img.Cols(),
		SourceHeight: img.Rows(),
	}

	r := &run{img: img, cache: make(map[Kind]*depth.Map)}
	defer r.close()

	for _, kind := range kinds {
		if !kind.Valid() {
			o.logger.Debug("skipping unknown map kind", zap.String("kind", string(kind)))
			o.emit(kind, StatusSkipped, nil)
			continue
		}

		o.emit(kind, StatusStarted, nil)
		rec, err := o.isolate(r, kind)
		if err != nil {
			o.logger.Warn("failed to generate map",
				zap.String("kind", string(kind)),
				zap.Bool("unavailable", errors.Is(err, capability.ErrUnavailable)),
				zap.Error(err))
			o.emit(kind, StatusFailed, err)
			continue
		}

		result.Maps = append(result.Maps, rec)
		o.emit(kind, StatusSucceeded, nil)
	}

	return result
}

// isolate produces and persists one kind, converting panics into errors.
func (o *Orchestrator) isolate(r *run, kind Kind) (rec Record, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("generate %s: panic: %v", kind, p)
		}
	}()

	out, method, err := o.produce(r, kind)
	if err != nil {
		out.Close()
		return Record{}, fmt.Errorf("generate %s: %w", kind, err)
	}
	defer out.Close()

	if out.Rows() != r.img.Rows() || out.Cols() != r.img.Cols() {
		return Record{}, fmt.Errorf("generate %s: %w: got %dx%d, want %dx%d",
			kind, ErrSizeMismatch, out.Cols(), out.Rows(), r.img.Cols(), r.img.Rows())
	}

	var filename string
	if o.sink != nil {
		if filename, err = o.sink.Write(kind, &out); err != nil {
			return Record{}, fmt.Errorf("generate %s: %w", kind, err)
		}
	}

	return Record{
		Kind:        kind,
		Filename:    filename,
		Width:       out.Cols(),
		Height:      out.Rows(),
		GeneratedAt: o.now().UTC(),
		ModelUsed:   method,
	}, nil
}

func (o *Orchestrator) produce(r *run, kind Kind) (gocv.Mat, string, error) {
	switch kind {
	case KindDepth:
		d, err := o.depthMap(r)
		if err != nil {
			return gocv.NewMat(), "", err
		}
		return d.Mat.Clone(), d.Method, nil

	case KindNormals:
		d, err := o.depthMap(r)
		if err != nil {
			return gocv.NewMat(), "", err
		}
		out, err := normals.FromDepth(&d.Mat)
		return out, normals.Method, err

	case KindEdges:
		out, err := edges.Detect(r.img)
		return out, edges.Method, err

	case KindSegmentation:
		out, err := o.segmenter.Segment(r.img)
		return out, segment.Method, err

	case KindFaceMask:
		return o.mask(r, detector.SubjectFace)

	case KindHandsMask:
		return o.mask(r, detector.SubjectHands)
	}

	return gocv.NewMat(), "", fmt.Errorf("unknown map kind %q", kind)
}

// depthMap returns the run's depth map, estimating it on first use.
func (o *Orchestrator) depthMap(r *run) (*depth.Map, error) {
	if d, ok := r.cache[KindDepth]; ok {
		return d, nil
	}

	d, err := o.depth.Estimate(r.img)
	if err != nil {
		return nil, err
	}
	r.cache[KindDepth] = d
	return d, nil
}

func (o *Orchestrator) mask(r *run, subject detector.Subject) (gocv.Mat, string, error) {
	if o.masks == nil {
		return gocv.NewMat(), "", fmt.Errorf("%s landmarks: %w", subject, capability.ErrUnavailable)
	}
	return o.masks.DetectAndMask(r.img, subject)
}

func (o *Orchestrator) emit(kind Kind, status Status, err error) {
	if o.observer == nil {
		return
	}

	ev := Event{Kind: kind, Status: status, At: o.now().UTC()}
	if err != nil {
		ev.Error = err.Error()
	}
	o.observer(ev)
}
