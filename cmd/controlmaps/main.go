// Command controlmaps generates conditioning maps (depth, normals, edges,
// face and hands masks, segmentation) for one image, or serves the same
// pipeline over HTTP.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ayusman/controlmaps/internal/app"
	"github.com/ayusman/controlmaps/internal/artifact"
	"github.com/ayusman/controlmaps/internal/capability"
	"github.com/ayusman/controlmaps/internal/config"
	"github.com/ayusman/controlmaps/internal/detector"
	"github.com/ayusman/controlmaps/internal/logging"
	"github.com/ayusman/controlmaps/internal/server"
	"github.com/ayusman/controlmaps/internal/store"
)

const usage = `usage:
  controlmaps [generate] --input <path> --output-dir <dir> [--maps kinds] [--max-dimension n] [--config file] [--history db]
  controlmaps serve [--addr :8080] [--output-root dir] [--history db] [--static dir] [--config file]
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cmd := "generate"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "generate":
		return runGenerate(args, stdout, stderr)
	case "serve":
		return runServe(args, stderr)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n%s", cmd, usage)
		return 2
	}
}

func runGenerate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	input := fs.String("input", "", "source image path")
	outputDir := fs.String("output-dir", "", "directory receiving the artifacts")
	kinds := fs.String("maps", "", "comma-separated map kinds")
	maxDim := fs.Int("max-dimension", 0, "longest side of the working image")
	configPath := fs.String("config", "", "YAML config file")
	history := fs.String("history", "", "sqlite run history database")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *input == "" || *outputDir == "" {
		fmt.Fprint(stderr, usage)
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return writeError(stdout, err.Error())
	}
	if flagSet(fs, "maps") {
		cfg.Maps = *kinds
	}
	if *maxDim > 0 {
		cfg.MaxDimension = *maxDim
	}
	if *history != "" {
		cfg.History.Path = *history
	}

	logger, err := logging.New(cfg.Log.Mode)
	if err != nil {
		fmt.Fprintf(stderr, "failed to build logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	a, closeFn := newApp(cfg, logger)
	defer closeFn()

	result, err := a.Generate(app.Request{
		InputPath:    *input,
		OutputDir:    *outputDir,
		Kinds:        cfg.Kinds(),
		MaxDimension: cfg.MaxDimension,
	})
	if err != nil {
		if errors.Is(err, artifact.ErrUndecodable) {
			return writeError(stdout, fmt.Sprintf("Could not load image: %s", *input))
		}
		return writeError(stdout, err.Error())
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		logger.Error("failed to write result", zap.Error(err))
		return 1
	}
	return 0
}

func runServe(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", "", "listen address")
	outputRoot := fs.String("output-root", "", "directory holding one artifact directory per run")
	history := fs.String("history", "", "sqlite run history database")
	staticDir := fs.String("static", "", "optional directory served at /")
	configPath := fs.String("config", "", "YAML config file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *outputRoot != "" {
		cfg.Server.OutputRoot = *outputRoot
	}
	if *history != "" {
		cfg.History.Path = *history
	}
	if cfg.History.Path == "" {
		cfg.History.Path = filepath.Join(cfg.Server.OutputRoot, "history.db")
	}

	logger, err := logging.New(cfg.Log.Mode)
	if err != nil {
		fmt.Fprintf(stderr, "failed to build logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	if err := os.MkdirAll(cfg.Server.OutputRoot, 0755); err != nil {
		logger.Error("failed to create output root", zap.Error(err))
		return 1
	}

	a, closeFn := newApp(cfg, logger)
	defer closeFn()

	srv := server.New(server.Config{
		StaticDir:  *staticDir,
		OutputRoot: cfg.Server.OutputRoot,
		Store:      a.Store(),
		Generator:  a,
		Logger:     logger,
	})
	defer srv.Close()

	if err := srv.ListenAndServe(cfg.Server.Addr); err != nil {
		logger.Error("server failed", zap.Error(err))
		return 1
	}
	return 0
}

// newApp checks capabilities and opens the history store named by cfg.
// The returned func releases both.
func newApp(cfg *config.Config, logger *zap.Logger) (*app.App, func()) {
	script := cfg.Landmarks.Script
	if script == "" {
		script = detector.FindScript()
	}

	caps := capability.Detect(capability.DetectOptions{
		DepthEnabled:     cfg.Depth.Enabled,
		Checkpoints:      cfg.Checkpoints(),
		LandmarksEnabled: cfg.Landmarks.Enabled,
		LandmarkScript:   script,
		Devices:          cfg.Depth.Devices,
	})
	logger.Debug("capabilities",
		zap.Bool("depth_model", caps.DepthModel),
		zap.Bool("landmarks", caps.Landmarks),
		zap.String("device", string(capability.PickDevice(caps.Devices))))

	st := openHistory(cfg.History.Path, logger)

	a := app.New(app.Config{
		Capabilities:   caps,
		DepthModelSize: cfg.Depth.ModelSize,
		Checkpoints:    cfg.Checkpoints(),
		Landmarks: detector.MediaPipeConfig{
			Script: script,
			Python: cfg.Landmarks.Python,
		},
		MaxDimension: cfg.MaxDimension,
		Kinds:        cfg.Kinds(),
		Store:        st,
		Logger:       logger,
	})

	closeFn := func() {
		if err := a.Close(); err != nil {
			logger.Warn("failed to stop landmark detector", zap.Error(err))
		}
		if st != nil {
			st.Close()
		}
	}
	return a, closeFn
}

// flagSet reports whether name was given on the command line.
func flagSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// openHistory opens the run history at path. History is optional: a store
// that cannot be opened is logged and the run proceeds without it.
func openHistory(path string, logger *zap.Logger) *store.Store {
	if path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		logger.Warn("run history disabled", zap.String("path", path), zap.Error(err))
		return nil
	}
	st, err := store.New(path)
	if err != nil {
		logger.Warn("run history disabled", zap.String("path", path), zap.Error(err))
		return nil
	}
	return st
}

func writeError(w io.Writer, msg string) int {
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
	return 1
}
