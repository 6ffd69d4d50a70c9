package depth

import (
	"go.uber.org/zap"

	"github.com/ayusman/controlmaps/internal/capability"
)

// Config configures NewEstimator.
type Config struct {
	Capabilities capability.Set
	ModelSize    string
	Checkpoints  []string
	Logger       *zap.Logger
}

// NewEstimator returns the standard chain: the learned model when the
// capability is present, then the heuristic.
func NewEstimator(cfg Config) *Chain {
	var strategies []Strategy

	if cfg.Capabilities.DepthModel {
		strategies = append(strategies, NewModel(ModelConfig{
			Size:         cfg.ModelSize,
			Checkpoints:  cfg.Checkpoints,
			Capabilities: cfg.Capabilities,
			Logger:       cfg.Logger,
		}))
	}
	strategies = append(strategies, Heuristic{})

	return NewChain(cfg.Logger, strategies...)
}
