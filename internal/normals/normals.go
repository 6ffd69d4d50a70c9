// Package normals reconstructs a surface normal map from a depth map.
package normals

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/ayusman/controlmaps/internal/geom"
)

// Method identifies maps produced by FromDepth.
const Method = "sobel-from-depth"

// ZScale is the z component of every unnormalized normal. Smaller values
// exaggerate the apparent steepness of the surface.
const ZScale = 0.5

// Field holds one unit vector per pixel, x/y/z interleaved in row-major order.
type Field struct {
	Rows, Cols int
	Data       []float32
}

// At returns the vector at row, col.
func (f *Field) At(row, col int) (x, y, z float32) {
	i := (row*f.Cols + col) * 3
	return f.Data[i], f.Data[i+1], f.Data[i+2]
}

// Vectors computes the unit normal of every pixel of an 8-bit depth map.
func Vectors(depth *gocv.Mat) (*Field, error) {
	if depth.Empty() {
		return nil, geom.ErrEmptyMat
	}
	if depth.Channels() != 1 {
		return nil, fmt.Errorf("depth map must have one channel, got %d", depth.Channels())
	}

	// Depth in [0,1].
	unit := gocv.NewMat()
	defer unit.Close()
	depth.ConvertToWithParams(&unit, gocv.MatTypeCV32F, 1.0/255.0, 0)

	dx, dy := geom.Gradients(&unit)
	defer dx.Close()
	defer dy.Close()

	gx, err := dx.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read x gradient: %w", err)
	}
	gy, err := dy.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read y gradient: %w", err)
	}

	field := &Field{
		Rows: depth.Rows(),
		Cols: depth.Cols(),
		Data: make([]float32, len(gx)*3),
	}
	for i := range gx {
		x, y, z := geom.UnitVector(-float64(gx[i]), -float64(gy[i]), ZScale)
		field.Data[i*3] = float32(x)
		field.Data[i*3+1] = float32(y)
		field.Data[i*3+2] = float32(z)
	}

	return field, nil
}

// Encode maps every component from [-1,1] onto 0..255 and writes a 3-channel
// mat in OpenCV's native BGR order, so x lands in the red channel.
func Encode(f *Field) (gocv.Mat, error) {
	data := make([]byte, len(f.Data))
	for i := 0; i < len(f.Data); i += 3 {
		data[i] = encode(f.Data[i+2])
		data[i+1] = encode(f.Data[i+1])
		data[i+2] = encode(f.Data[i])
	}

	m, err := gocv.NewMatFromBytes(f.Rows, f.Cols, gocv.MatTypeCV8UC3, data)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("build normal map: %w", err)
	}
	return m, nil
}

// FromDepth returns the encoded normal map of depth.
func FromDepth(depth *gocv.Mat) (gocv.Mat, error) {
	field, err := Vectors(depth)
	if err != nil {
		return gocv.NewMat(), err
	}
	return Encode(field)
}

func encode(v float32) byte {
	scaled := (v + 1) * 0.5 * 255
	switch {
	case scaled <= 0:
		return 0
	case scaled >= 255:
		return 255
	}
	return byte(scaled)
}
