package preprocess

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writeTestPNG(t *testing.T, path string, w, h int, c color.NRGBA) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
}

func TestFromFileShape(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "in.png")
	writeTestPNG(t, path, 64, 48, color.NRGBA{R: 120, G: 60, B: 200, A: 255})

	p, err := New(Options{Width: 32, Height: 24, Mean: DefaultMean, Std: DefaultStd})
	if err != nil {
		t.Fatalf("new preprocessor: %v", err)
	}
	out, err := p.FromFile(path)
	if err != nil {
		t.Fatalf("preprocess: %v", err)
	}

	wantShape := []int64{1, 3, 24, 32}
	if len(out.Shape) != len(wantShape) {
		t.Fatalf("shape rank = %d, want %d", len(out.Shape), len(wantShape))
	}
	for i, d := range wantShape {
		if out.Shape[i] != d {
			t.Fatalf("shape = %v, want %v", out.Shape, wantShape)
		}
	}
	if len(out.Data) != 3*24*32 {
		t.Fatalf("data len = %d, want %d", len(out.Data), 3*24*32)
	}
}

func TestNormalizationRange(t *testing.T) {
	t.Parallel()
	// For 8-bit input every normalized value must stay inside
	// [(0 - mean)/std, (1 - mean)/std] per channel.
	path := filepath.Join(t.TempDir(), "in.png")
	writeTestPNG(t, path, 16, 16, color.NRGBA{R: 255, G: 0, B: 128, A: 255})

	p, err := New(DefaultOptions())
	if err != nil {
		t.Fatalf("new preprocessor: %v", err)
	}
	out, err := p.FromFile(path)
	if err != nil {
		t.Fatalf("preprocess: %v", err)
	}

	plane := 224 * 224
	for c := 0; c < 3; c++ {
		lo := (0 - DefaultMean[c]) / DefaultStd[c]
		hi := (1 - DefaultMean[c]) / DefaultStd[c]
		for i := c * plane; i < (c+1)*plane; i++ {
			v := out.Data[i]
			if v < lo-1e-5 || v > hi+1e-5 {
				t.Fatalf("channel %d value %f outside [%f, %f]", c, v, lo, hi)
			}
		}
	}
}

func TestKnownPixelValue(t *testing.T) {
	t.Parallel()
	// A solid-color image must map to (px/255 - mean) / std exactly,
	// regardless of resampling.
	path := filepath.Join(t.TempDir(), "solid.png")
	writeTestPNG(t, path, 10, 10, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	p, err := New(Options{Width: 4, Height: 4, Mean: DefaultMean, Std: DefaultStd})
	if err != nil {
		t.Fatalf("new preprocessor: %v", err)
	}
	out, err := p.FromFile(path)
	if err != nil {
		t.Fatalf("preprocess: %v", err)
	}

	for c := 0; c < 3; c++ {
		want := (1 - DefaultMean[c]) / DefaultStd[c]
		got := out.Data[c*16]
		if diff := got - want; diff > 1e-4 || diff < -1e-4 {
			t.Fatalf("channel %d: got %f, want %f", c, got, want)
		}
	}
}

func TestDecodeError(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "not-an-image.png")
	if err := os.WriteFile(path, []byte("plain text"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	p, err := New(DefaultOptions())
	if err != nil {
		t.Fatalf("new preprocessor: %v", err)
	}
	_, err = p.FromFile(path)
	if err == nil {
		t.Fatal("expected decode error")
	}
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DecodeError, got %T: %v", err, err)
	}
	if de.Path != path {
		t.Fatalf("DecodeError.Path = %q, want %q", de.Path, path)
	}
}

func TestInvalidOptions(t *testing.T) {
	t.Parallel()
	if _, err := New(Options{Width: 0, Height: 10, Mean: DefaultMean, Std: DefaultStd}); err == nil {
		t.Fatal("expected error for zero width")
	}
	if _, err := New(Options{Width: 10, Height: 10}); err == nil {
		t.Fatal("expected error for zero std")
	}
}
