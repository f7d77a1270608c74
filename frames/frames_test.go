package frames

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestScale(t *testing.T) {
	src := solid(4, 3, color.RGBA{100, 149, 237, 255})
	if Scale(src, 1) != src {
		t.Error("factor 1 should return the source image")
	}
	dst := Scale(src, 3)
	if dst.Bounds().Dx() != 12 || dst.Bounds().Dy() != 9 {
		t.Fatalf("bounds = %v, want 12x9", dst.Bounds())
	}
	// A flat image stays flat under interpolation.
	if got := dst.RGBAAt(6, 4); got != (color.RGBA{100, 149, 237, 255}) {
		t.Errorf("center = %v", got)
	}
}

func TestEncodeDecodes(t *testing.T) {
	src := solid(5, 5, color.RGBA{10, 20, 30, 255})
	data, err := Encode(src, 2)
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 10 {
		t.Errorf("width = %d, want 10", img.Bounds().Dx())
	}
}

func TestWriterNumbersFrames(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "frames")
	w, err := NewWriter(dir, 1)
	if err != nil {
		t.Fatal(err)
	}
	img := solid(2, 2, color.RGBA{255, 0, 0, 255})
	for i := 0; i < 3; i++ {
		if _, err := w.Write(img); err != nil {
			t.Fatal(err)
		}
	}
	if w.Count() != 3 {
		t.Errorf("Count() = %d", w.Count())
	}
	for _, name := range []string{"frame_000000.png", "frame_000002.png"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
}

func TestWriterDisabled(t *testing.T) {
	w, err := NewWriter("", 1)
	if err != nil || w != nil {
		t.Fatalf("NewWriter(\"\") = %v, %v", w, err)
	}
	if path, err := w.Write(solid(1, 1, color.RGBA{})); path != "" || err != nil {
		t.Errorf("nil writer Write = %q, %v", path, err)
	}
}
