// Package depth estimates a single-channel proximity map (brighter is closer)
// from a photograph. Estimation is a chain of strategies: a learned model when
// one is installed, then a heuristic that always works.
package depth

import (
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/controlmaps/internal/geom"
	"github.com/ayusman/controlmaps/internal/logging"
)

// ErrNoStrategy is returned when every strategy of a chain failed.
var ErrNoStrategy = errors.New("no depth strategy succeeded")

// Strategy is one way of estimating depth.
type Strategy interface {
	// Name is the method identifier recorded with the produced map.
	Name() string
	// Estimate returns an 8-bit single-channel map the size of img.
	Estimate(img *gocv.Mat) (gocv.Mat, error)
}

// Map is a depth map tagged with the method that produced it.
type Map struct {
	Mat    gocv.Mat
	Method string
}

// Close releases the underlying Mat.
func (m *Map) Close() error {
	if m == nil {
		return nil
	}
	return m.Mat.Close()
}

// Chain tries its strategies in order and returns the first success.
type Chain struct {
	strategies []Strategy
	logger     *zap.Logger
}

// NewChain creates a Chain over the given strategies.
func NewChain(logger *zap.Logger, strategies ...Strategy) *Chain {
	return &Chain{
		strategies: strategies,
		logger:     logging.OrNop(logger),
	}
}

// Names returns the method identifiers of the chain in order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.Name()
	}
	return names
}

// Estimate runs the chain. A failing strategy is logged as a warning and the
// next one is tried.
func (c *Chain) Estimate(img *gocv.Mat) (*Map, error) {
	if img == nil || img.Empty() {
		return nil, geom.ErrEmptyMat
	}

	var errs []error
	for _, s := range c.strategies {
		out, err := estimate(s, img)
		if err != nil {
			out.Close()
			c.logger.Warn("depth strategy failed, falling back",
				zap.String("strategy", s.Name()),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		return &Map{Mat: out, Method: s.Name()}, nil
	}

	return nil, fmt.Errorf("%w: %w", ErrNoStrategy, errors.Join(errs...))
}

// Close releases strategies that hold resources.
func (c *Chain) Close() error {
	var errs []error
	for _, s := range c.strategies {
		if closer, ok := s.(io.Closer); ok {
			errs = append(errs, closer.Close())
		}
	}
	return errors.Join(errs...)
}

// estimate calls s, turning a panic from the cgo layer into an error.
func estimate(s Strategy, img *gocv.Mat) (out gocv.Mat, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = gocv.NewMat()
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.Estimate(img)
}
