package segment

import (
	"errors"
	"image"
	"testing"

	"gocv.io/x/gocv"

	"github.com/ayusman/controlmaps/testdata"
)

// recordingCut labels everything inside rect as probable foreground and
// counts invocations.
type recordingCut struct {
	calls int
	rect  image.Rectangle
	iters int
}

func (c *recordingCut) cut(img *gocv.Mat, rect image.Rectangle, iterations int) (gocv.Mat, error) {
	c.calls++
	c.rect = rect
	c.iters = iterations

	rows, cols := img.Rows(), img.Cols()
	data := make([]byte, rows*cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			if (image.Point{X: x, Y: y}).In(rect) {
				data[y*cols+x] = labelProbableForeground
			} else {
				data[y*cols+x] = 2
			}
		}
	}
	return gocv.NewMatFromBytes(rows, cols, gocv.MatTypeCV8U, data)
}

func TestSegment_DegenerateInputSkipsCut(t *testing.T) {
	sizes := [][2]int{{1, 1}, {2, 50}, {50, 2}, {1, 300}}

	for _, s := range sizes {
		img := testdata.Solid(s[0], s[1], 10, 20, 30)

		rec := &recordingCut{}
		out, err := New(rec.cut).Segment(&img)
		if err != nil {
			t.Fatalf("%dx%d: Segment() error = %v", s[1], s[0], err)
		}

		if rec.calls != 0 {
			t.Errorf("%dx%d: cut invoked %d times, want 0", s[1], s[0], rec.calls)
		}
		if out.Rows() != s[0] || out.Cols() != s[1] {
			t.Errorf("%dx%d: output is %dx%d", s[1], s[0], out.Cols(), out.Rows())
		}
		if gocv.CountNonZero(out) != 0 {
			t.Errorf("%dx%d: degenerate input should be all background", s[1], s[0])
		}

		out.Close()
		img.Close()
	}
}

func TestSegment_UsesSeedRectangle(t *testing.T) {
	img := testdata.Subject(100, 200)
	defer img.Close()

	rec := &recordingCut{}
	out, err := New(rec.cut).Segment(&img)
	if err != nil {
		t.Fatalf("Segment() error = %v", err)
	}
	defer out.Close()

	if rec.calls != 1 {
		t.Fatalf("cut invoked %d times, want 1", rec.calls)
	}
	if rec.iters != Iterations {
		t.Errorf("iterations = %d, want %d", rec.iters, Iterations)
	}
	if want := image.Rect(10, 10, 190, 90); rec.rect != want {
		t.Errorf("rect = %v, want %v", rec.rect, want)
	}

	if !testdata.IsBinary(&out) {
		t.Error("mask should be binary")
	}
	if out.GetUCharAt(50, 100) != 255 {
		t.Error("the center should be foreground")
	}
	if out.GetUCharAt(2, 2) != 0 {
		t.Error("the border should be background")
	}
}

func TestSegment_TooSmallForSeed(t *testing.T) {
	img := testdata.Solid(8, 8, 1, 1, 1)
	defer img.Close()

	rec := &recordingCut{}
	out, err := New(rec.cut).Segment(&img)
	if err != nil {
		t.Fatalf("Segment() error = %v", err)
	}
	defer out.Close()

	if rec.calls != 0 {
		t.Error("cut should not run when the seed rectangle leaves the image")
	}
	if gocv.CountNonZero(out) != 0 {
		t.Error("expected an all-background mask")
	}
}

func TestSegment_CutFailures(t *testing.T) {
	img := testdata.Subject(60, 80)
	defer img.Close()

	cutErr := errors.New("cv::Exception: not enough samples")

	tests := []struct {
		name string
		cut  CutFunc
		want error
	}{
		{
			name: "cut error",
			cut: func(*gocv.Mat, image.Rectangle, int) (gocv.Mat, error) {
				return gocv.NewMat(), cutErr
			},
			want: cutErr,
		},
		{
			name: "empty labels",
			cut: func(*gocv.Mat, image.Rectangle, int) (gocv.Mat, error) {
				return gocv.NewMat(), nil
			},
			want: ErrNoLabels,
		},
		{
			name: "labels of another size",
			cut: func(*gocv.Mat, image.Rectangle, int) (gocv.Mat, error) {
				return gocv.NewMatWithSize(5, 5, gocv.MatTypeCV8U), nil
			},
			want: ErrNoLabels,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := New(tt.cut).Segment(&img)
			defer out.Close()

			if !errors.Is(err, tt.want) {
				t.Errorf("Segment() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestGrabCut_TinySeedFails(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping GrabCut in short mode")
	}

	// The clipped seed is a single pixel, too few samples for the colour
	// models.
	img := testdata.Subject(21, 20)
	defer img.Close()

	out, err := New(nil).Segment(&img)
	defer out.Close()

	if err == nil {
		t.Fatalf("Segment() succeeded with a %dx%d mask, want an error", out.Cols(), out.Rows())
	}
}

func TestSegment_Empty(t *testing.T) {
	img := gocv.NewMat()
	defer img.Close()

	out, err := New(nil).Segment(&img)
	defer out.Close()
	if err == nil {
		t.Error("expected an error for an empty image")
	}
}

func TestInitRect(t *testing.T) {
	tests := []struct {
		name       string
		cols, rows int
		want       image.Rectangle
	}{
		{name: "minimum margin", cols: 100, rows: 60, want: image.Rect(10, 10, 90, 50)},
		{name: "fractional margin", cols: 1000, rows: 400, want: image.Rect(50, 20, 950, 380)},
		{name: "one pixel wide seed", cols: 20, rows: 21, want: image.Rect(10, 10, 11, 11)},
		{name: "outside the image", cols: 8, rows: 40, want: image.Rectangle{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InitRect(tt.cols, tt.rows)
			if tt.want.Empty() {
				if !got.Empty() {
					t.Errorf("InitRect(%d, %d) = %v, want empty", tt.cols, tt.rows, got)
				}
				return
			}
			if got != tt.want {
				t.Errorf("InitRect(%d, %d) = %v, want %v", tt.cols, tt.rows, got, tt.want)
			}
		})
	}
}

func TestForeground(t *testing.T) {
	labels, err := gocv.NewMatFromBytes(1, 4, gocv.MatTypeCV8U, []byte{0, 1, 2, 3})
	if err != nil {
		t.Fatalf("NewMatFromBytes() error = %v", err)
	}
	defer labels.Close()

	fg := Foreground(&labels)
	defer fg.Close()

	got := fg.ToBytes()
	want := []byte{0, 255, 0, 255}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("label %d -> %d, want %d", i, got[i], want[i])
		}
	}
}

func TestGrabCut(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping GrabCut in short mode")
	}

	img := testdata.Subject(120, 160)
	defer img.Close()

	out, err := New(nil).Segment(&img)
	if err != nil {
		t.Fatalf("Segment() error = %v", err)
	}
	defer out.Close()

	if out.Rows() != 120 || out.Cols() != 160 {
		t.Errorf("size = %dx%d, want 160x120", out.Cols(), out.Rows())
	}
	if !testdata.IsBinary(&out) {
		t.Error("mask should be binary")
	}
	if out.GetUCharAt(0, 0) != 0 {
		t.Error("the corner lies outside the seed and should be background")
	}
}
