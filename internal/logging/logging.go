// Package logging builds the zap loggers used across controlmaps.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Mode values accepted by New.
const (
	ModeDevelopment = "debug"
	ModeProduction  = "release"
)

// New returns a logger for the given mode. Both modes write to stderr so
// stdout stays reserved for the JSON result payload.
func New(mode string) (*zap.Logger, error) {
	var config zap.Config

	if mode == ModeProduction {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}

	return config.Build()
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
