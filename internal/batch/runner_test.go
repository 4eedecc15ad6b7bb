package batch

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ironsheep/image-deskew/internal/deskew"
	"github.com/ironsheep/image-deskew/internal/imaging"
)

// createSkewedPage creates a white page with a black bar rotated ccw degrees.
func createSkewedPage(ccw float64) *image.Gray {
	const w, h = 100, 80
	img := image.NewGray(image.Rect(0, 0, w, h))
	rad := ccw * math.Pi / 180
	c, s := math.Cos(rad), math.Sin(rad)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := float64(x)+0.5-w/2, float64(y)+0.5-h/2
			u := dx*c - dy*s
			v := dx*s + dy*c
			if math.Abs(u) <= 30 && math.Abs(v) <= 10 {
				img.SetGray(x, y, color.Gray{Y: 0})
			} else {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

func writeImage(t *testing.T, path string, img image.Image) {
	t.Helper()
	if err := imaging.Save(img, path); err != nil {
		t.Fatalf("Save %s failed: %v", path, err)
	}
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		name  string
		opts  []Option
		input string
		want  string
	}{
		{"default", nil, "/scans/page.png", "/scans/page_deskewed.png"},
		{"jpeg", nil, "/scans/page.v2.jpg", "/scans/page.v2_deskewed.jpg"},
		{"relative", nil, "page.tif", "page_deskewed.tif"},
		{"custom suffix", []Option{WithSuffix("-fixed")}, "/a/b.png", "/a/b-fixed.png"},
		{"output dir", []Option{WithOutputDir("/out")}, "/a/b.png", "/out/b_deskewed.png"},
		{"output dir no suffix", []Option{WithOutputDir("/out"), WithSuffix("")}, "/a/b.png", "/out/b.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRunner(deskew.New(), tt.opts...)
			if got := r.OutputPath(tt.input); got != filepath.FromSlash(tt.want) {
				t.Errorf("OutputPath(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsOutput(t *testing.T) {
	r := NewRunner(deskew.New())
	if !r.IsOutput("/a/page_deskewed.png") {
		t.Error("suffixed file not recognized as output")
	}
	if r.IsOutput("/a/page.png") {
		t.Error("input recognized as output")
	}

	r = NewRunner(deskew.New(), WithOutputDir("/out"), WithSuffix(""))
	if !r.IsOutput("/out/page.png") {
		t.Error("file in output dir not recognized as output")
	}
	if r.IsOutput("/in/page.png") {
		t.Error("file outside output dir recognized as output")
	}
}

func TestExpand(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.png", "a.jpg", "a_deskewed.png", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.png"), 0o755); err != nil {
		t.Fatal(err)
	}
	explicit := filepath.Join(dir, "notes.txt")

	r := NewRunner(deskew.New())
	files, err := r.Expand([]string{dir, explicit, filepath.Join(dir, "b.png")})
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}

	want := []string{
		filepath.Join(dir, "a.jpg"),
		filepath.Join(dir, "b.png"),
		explicit,
	}
	if len(files) != len(want) {
		t.Fatalf("Expand = %v, want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %q, want %q", i, files[i], want[i])
		}
	}

	if _, err := r.Expand([]string{filepath.Join(dir, "missing")}); err == nil {
		t.Error("expected error for missing path")
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "one.png"), createSkewedPage(-6))
	writeImage(t, filepath.Join(dir, "two.png"), createSkewedPage(4))
	if err := os.WriteFile(filepath.Join(dir, "three.png"), []byte("corrupt"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewRunner(deskew.New(), WithWorkers(2))
	results, err := r.Run(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if n := Failed(results); n != 1 {
		t.Errorf("Failed = %d, want 1", n)
	}

	wantAngle := map[string]float64{"one.png": 6, "two.png": -4}
	for _, res := range results {
		name := filepath.Base(res.Input)
		if name == "three.png" {
			if !errors.Is(res.Err, imaging.ErrDecode) {
				t.Errorf("corrupt file error = %v, want ErrDecode", res.Err)
			}
			if res.Output != "" {
				t.Error("output reported for failed file")
			}
			continue
		}
		if res.Err != nil {
			t.Errorf("%s failed: %v", name, res.Err)
			continue
		}
		if math.Abs(res.Angle-wantAngle[name]) > 1 {
			t.Errorf("%s angle = %.3f, want about %.1f", name, res.Angle, wantAngle[name])
		}
		out, err := imaging.Open(res.Output)
		if err != nil {
			t.Fatalf("Open output failed: %v", err)
		}
		if out.Bounds().Dx() != 100 || out.Bounds().Dy() != 80 {
			t.Errorf("%s output size = %v, want 100x80", name, out.Bounds())
		}
	}
}

func TestRun_OutputDir(t *testing.T) {
	in := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "nested", "out")
	input := filepath.Join(in, "page.png")
	writeImage(t, input, createSkewedPage(3))

	r := NewRunner(deskew.New(), WithOutputDir(outDir))
	results, err := r.Run(context.Background(), []string{input})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(results) != 1 || results[0].Err != nil {
		t.Fatalf("results = %+v", results)
	}
	if want := filepath.Join(outDir, "page_deskewed.png"); results[0].Output != want {
		t.Errorf("Output = %q, want %q", results[0].Output, want)
	}
	if _, err := os.Stat(results[0].Output); err != nil {
		t.Errorf("output not written: %v", err)
	}
}

func TestRun_OutputConflict(t *testing.T) {
	root := t.TempDir()
	dirA := filepath.Join(root, "a")
	dirB := filepath.Join(root, "b")
	for _, d := range []string{dirA, dirB} {
		if err := os.Mkdir(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	writeImage(t, filepath.Join(dirA, "page.png"), createSkewedPage(5))
	writeImage(t, filepath.Join(dirB, "page.png"), createSkewedPage(-8))
	writeImage(t, filepath.Join(dirB, "other.png"), createSkewedPage(2))
	outDir := filepath.Join(root, "out")

	r := NewRunner(deskew.New(), WithOutputDir(outDir), WithWorkers(3))
	results, err := r.Run(context.Background(), []string{dirA, dirB})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}

	first, conflict, other := results[0], results[2], results[1]
	if first.Input != filepath.Join(dirA, "page.png") || first.Err != nil {
		t.Errorf("first page = %+v, want success for a/page.png", first)
	}
	if math.Abs(first.Angle-(-5)) > 1 {
		t.Errorf("first page angle = %.3f, want about -5", first.Angle)
	}
	if other.Err != nil {
		t.Errorf("other.png failed: %v", other.Err)
	}
	if conflict.Input != filepath.Join(dirB, "page.png") {
		t.Fatalf("results[2].Input = %q, want b/page.png", conflict.Input)
	}
	if !errors.Is(conflict.Err, ErrOutputConflict) {
		t.Errorf("conflicting page error = %v, want ErrOutputConflict", conflict.Err)
	}
	if conflict.Output != "" {
		t.Error("output reported for conflicting page")
	}
	if n := Failed(results); n != 1 {
		t.Errorf("Failed = %d, want 1", n)
	}

	// The kept output is the first input's correction.
	out, err := imaging.Open(filepath.Join(outDir, "page_deskewed.png"))
	if err != nil {
		t.Fatalf("Open output failed: %v", err)
	}
	angle, err := deskew.New().EstimateAngle(out)
	if err != nil {
		t.Fatalf("EstimateAngle failed: %v", err)
	}
	if math.Abs(angle) > 1 {
		t.Errorf("output angle = %.3f, want about 0", angle)
	}
}

func TestRun_BlankPageIsCopied(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "blank.png")
	blank := image.NewGray(image.Rect(0, 0, 40, 30))
	for i := range blank.Pix {
		blank.Pix[i] = 255
	}
	writeImage(t, input, blank)

	results, err := NewRunner(deskew.New()).Run(context.Background(), []string{input})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if results[0].Err != nil {
		t.Fatalf("blank page failed: %v", results[0].Err)
	}
	if !results[0].Fallback || results[0].Angle != 0 {
		t.Errorf("result = %+v, want fallback with angle 0", results[0])
	}
}

func TestRun_Canceled(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "a.png"), createSkewedPage(2))
	writeImage(t, filepath.Join(dir, "b.png"), createSkewedPage(2))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := NewRunner(deskew.New(), WithWorkers(1)).Run(ctx, []string{dir})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for _, res := range results {
		if !errors.Is(res.Err, context.Canceled) {
			t.Errorf("%s error = %v, want context.Canceled", res.Input, res.Err)
		}
	}
}

func TestRun_Empty(t *testing.T) {
	results, err := NewRunner(deskew.New()).Run(context.Background(), []string{t.TempDir()})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results for empty directory", len(results))
	}
}

func TestProcessFile_Concurrent(t *testing.T) {
	dir := t.TempDir()
	r := NewRunner(deskew.New())

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		input := filepath.Join(dir, string(rune('a'+i))+".png")
		writeImage(t, input, createSkewedPage(float64(i)))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if res := r.ProcessFile(context.Background(), input); res.Err != nil {
				errs <- res.Err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("ProcessFile failed: %v", err)
	}
}
