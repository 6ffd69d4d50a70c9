// Package testdata builds synthetic gocv images for tests.
package testdata

import (
	"fmt"
	"image"
	"image/color"
	"path/filepath"

	"gocv.io/x/gocv"
)

// Solid returns a rows x cols BGR image filled with one color.
func Solid(rows, cols int, b, g, r uint8) gocv.Mat {
	m := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8UC3)
	m.SetTo(gocv.NewScalar(float64(b), float64(g), float64(r), 0))
	return m
}

// Gradient returns a BGR image whose intensity ramps left to right.
func Gradient(rows, cols int) gocv.Mat {
	data := make([]byte, rows*cols*3)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			v := uint8(x * 255 / max(1, cols-1))
			i := (y*cols + x) * 3
			data[i], data[i+1], data[i+2] = v, v, v
		}
	}

	m, err := gocv.NewMatFromBytes(rows, cols, gocv.MatTypeCV8UC3, data)
	if err != nil {
		panic(fmt.Sprintf("gradient fixture: %v", err))
	}
	return m
}

// Subject returns a dark background with a bright textured disk in the
// middle, a rough stand-in for a photographed subject.
func Subject(rows, cols int) gocv.Mat {
	m := Solid(rows, cols, 30, 40, 50)

	center := image.Point{X: cols / 2, Y: rows / 2}
	radius := min(rows, cols) / 3
	gocv.Circle(&m, center, radius, color.RGBA{R: 220, G: 180, B: 160, A: 255}, -1)

	// Stripes give the edge and depth heuristics some structure.
	for i := -radius; i < radius; i += max(2, radius/4) {
		p1 := image.Point{X: center.X + i, Y: center.Y - radius/2}
		p2 := image.Point{X: center.X + i, Y: center.Y + radius/2}
		gocv.Line(&m, p1, p2, color.RGBA{R: 90, G: 60, B: 40, A: 255}, 2)
	}

	return m
}

// WritePNG writes m into dir under name and returns the full path.
func WritePNG(dir, name string, m gocv.Mat) (string, error) {
	path := filepath.Join(dir, name)
	if ok := gocv.IMWrite(path, m); !ok {
		return "", fmt.Errorf("write %s", path)
	}
	return path, nil
}

// Distinct returns the distinct byte values of a single-channel 8-bit mat.
func Distinct(m *gocv.Mat) map[uint8]int {
	values := make(map[uint8]int)
	for _, v := range m.ToBytes() {
		values[v]++
	}
	return values
}

// IsBinary reports whether every pixel of m is 0 or 255.
func IsBinary(m *gocv.Mat) bool {
	for v := range Distinct(m) {
		if v != 0 && v != 255 {
			return false
		}
	}
	return true
}
