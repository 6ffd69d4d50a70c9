// Package artifact loads input images and writes map artifacts to disk.
package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"

	"github.com/ayusman/controlmaps/internal/maps"
)

// InputFilename is the name of the resized working image.
const InputFilename = "input.png"

// ErrUndecodable is returned when an input cannot be decoded as an image.
var ErrUndecodable = errors.New("could not load image")

// FilenameFor returns the fixed artifact name of kind.
func FilenameFor(kind maps.Kind) string {
	return string(kind) + ".png"
}

// Load reads a color image from path.
func Load(path string) (gocv.Mat, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		img.Close()
		return gocv.NewMat(), fmt.Errorf("%w: %s", ErrUndecodable, path)
	}
	return img, nil
}

// Decode decodes an encoded image held in memory.
func Decode(data []byte) (gocv.Mat, error) {
	if len(data) == 0 {
		return gocv.NewMat(), fmt.Errorf("%w: empty upload", ErrUndecodable)
	}

	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil || img.Empty() {
		img.Close()
		return gocv.NewMat(), fmt.Errorf("%w: %d bytes", ErrUndecodable, len(data))
	}
	return img, nil
}

// Writer writes PNG artifacts into one output directory. It satisfies
// maps.Sink.
type Writer struct {
	dir string
}

// NewWriter creates dir if absent and returns a Writer for it.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Writer{dir: dir}, nil
}

// Dir returns the output directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Write encodes m as <kind>.png.
func (w *Writer) Write(kind maps.Kind, m *gocv.Mat) (string, error) {
	name := FilenameFor(kind)
	if err := w.write(name, m); err != nil {
		return "", err
	}
	return name, nil
}

// WriteInput encodes the working image as input.png.
func (w *Writer) WriteInput(m *gocv.Mat) (string, error) {
	if err := w.write(InputFilename, m); err != nil {
		return "", err
	}
	return InputFilename, nil
}

func (w *Writer) write(name string, m *gocv.Mat) error {
	if m.Empty() {
		return fmt.Errorf("write %s: empty image", name)
	}

	path := filepath.Join(w.dir, name)
	if ok := gocv.IMWrite(path, *m); !ok {
		return fmt.Errorf("write %s: encode failed", path)
	}
	return nil
}
