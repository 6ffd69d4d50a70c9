package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/controlmaps/internal/logging"
)

// ScriptName is the file name of the Python landmark service.
const ScriptName = "landmark_service.py"

// DefaultIdleTimeout is how long the service may sit unused before it is stopped.
const DefaultIdleTimeout = 30 * time.Second

// MediaPipeConfig configures a MediaPipeDetector.
type MediaPipeConfig struct {
	// Script is the service script. Empty means FindScript is used.
	Script string
	// Python is the interpreter. Empty means FindPython, then python3.
	Python string
	// IdleTimeout stops the service after a period without requests.
	IdleTimeout time.Duration
	Logger      *zap.Logger
}

// MediaPipeDetector implements Detector using a Python MediaPipe subprocess.
type MediaPipeDetector struct {
	script      string
	python      string
	idleTimeout time.Duration
	logger      *zap.Logger

	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	started   bool
	idleTimer *time.Timer
}

// NewMediaPipeDetector creates a new MediaPipe detector.
// The Python process is started lazily on first detection.
func NewMediaPipeDetector(cfg MediaPipeConfig) (*MediaPipeDetector, error) {
	script := cfg.Script
	if script == "" {
		script = FindScript()
	}
	if script == "" {
		return nil, ErrServiceNotFound
	}
	if _, err := os.Stat(script); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, script)
	}

	python := cfg.Python
	if python == "" {
		python = FindPython()
	}
	if python == "" {
		python = "python3"
	}

	idle := cfg.IdleTimeout
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}

	return &MediaPipeDetector{
		script:      script,
		python:      python,
		idleTimeout: idle,
		logger:      logging.OrNop(cfg.Logger),
	}, nil
}

// Detect sends frame to the service and returns the detected landmark sets.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat, subject Subject, opts Options) ([]Instance, error) {
	if frame == nil || frame.Empty() {
		return nil, fmt.Errorf("detect %s: empty frame", subject)
	}

	// The service expects RGB.
	rgb := gocv.NewMat()
	defer rgb.Close()
	switch frame.Channels() {
	case 1:
		gocv.CvtColor(*frame, &rgb, gocv.ColorGrayToRGB)
	case 4:
		gocv.CvtColor(*frame, &rgb, gocv.ColorBGRAToRGB)
	default:
		gocv.CvtColor(*frame, &rgb, gocv.ColorBGRToRGB)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureStarted(); err != nil {
		return nil, err
	}

	req := request{
		Subject:       subject,
		MaxInstances:  opts.MaxInstances,
		MinConfidence: opts.MinConfidence,
		Width:         rgb.Cols(),
		Height:        rgb.Rows(),
		Channels:      rgb.Channels(),
	}
	if err := writeRequest(d.stdin, req, rgb.ToBytes()); err != nil {
		d.kill()
		return nil, err
	}

	instances, err := readResponse(d.stdout)
	if err != nil {
		d.kill()
		return nil, err
	}

	d.resetIdleTimer()
	return instances, nil
}

// Close shuts down the Python process.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

func (d *MediaPipeDetector) ensureStarted() error {
	if d.started {
		return nil
	}

	d.cmd = exec.Command(d.python, d.script)

	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	// stdout is the protocol channel; diagnostics go to our stderr.
	d.cmd.Stderr = os.Stderr

	if err := d.cmd.Start(); err != nil {
		return fmt.Errorf("start landmark service: %w", err)
	}

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true

	d.logger.Debug("landmark service started",
		zap.String("python", d.python),
		zap.String("script", d.script),
		zap.Int("pid", d.cmd.Process.Pid))

	return nil
}

func (d *MediaPipeDetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	d.logger.Debug("landmark service stopped")
	return err
}

// kill stops a service whose stream is out of sync after a protocol error.
func (d *MediaPipeDetector) kill() {
	if d.cmd != nil && d.cmd.Process != nil {
		d.cmd.Process.Kill()
	}
	if err := d.shutdown(); err != nil {
		d.logger.Debug("landmark service exited", zap.Error(err))
	}
}

func (d *MediaPipeDetector) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(d.idleTimeout, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.shutdown()
	})
}

// FindScript looks for the landmark service in the usual install locations.
func FindScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	return firstExisting([]string{
		filepath.Join("scripts", ScriptName),
		filepath.Join("..", "scripts", ScriptName),
		filepath.Join(execDir, "scripts", ScriptName),
		filepath.Join(os.Getenv("HOME"), ".controlmaps", "scripts", ScriptName),
	})
}

// FindPython looks for a Python interpreter in a virtual environment.
func FindPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	return firstExisting([]string{
		"venv/bin/python",
		"../venv/bin/python",
		"../../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".controlmaps/venv/bin/python"),
	})
}

func firstExisting(candidates []string) string {
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// request is the JSON header line preceding each frame.
type request struct {
	Subject       Subject `json:"subject"`
	MaxInstances  int     `json:"maxInstances"`
	MinConfidence float64 `json:"minConfidence"`
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	Channels      int     `json:"channels"`
}

type response struct {
	Instances []Instance `json:"instances"`
	Error     string     `json:"error,omitempty"`
}

// writeRequest writes the header line, then the pixel length (4 bytes
// big-endian) and the pixels.
func writeRequest(w io.Writer, req request, pixels []byte) error {
	header, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	header = append(header, '\n')

	if want := req.Width * req.Height * req.Channels; len(pixels) != want {
		return fmt.Errorf("pixel buffer has %d bytes, want %d", len(pixels), want)
	}

	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(pixels)))

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := w.Write(length); err != nil {
		return fmt.Errorf("write length: %w", err)
	}
	if _, err := w.Write(pixels); err != nil {
		return fmt.Errorf("write data: %w", err)
	}
	return nil
}

// readResponse reads one JSON response line.
func readResponse(r *bufio.Reader) ([]Instance, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var resp response
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("landmark service: %s", resp.Error)
	}
	return resp.Instances, nil
}
