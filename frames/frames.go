// Package frames encodes rendered frames as PNG, optionally upscaled.
package frames

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	xdraw "golang.org/x/image/draw"
)

// Scale returns src enlarged by an integer factor with Catmull-Rom filtering.
// factor <= 1 returns src unchanged.
func Scale(src *image.RGBA, factor int) *image.RGBA {
	if factor <= 1 {
		return src
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}

// Encode returns the PNG encoding of img scaled by factor.
func Encode(img *image.RGBA, factor int) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, Scale(img, factor)); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}

// Writer saves numbered PNG frames into a directory.
type Writer struct {
	dir    string
	factor int
	next   int
}

// NewWriter creates dir if needed. Returns nil if dir is empty (output disabled).
func NewWriter(dir string, factor int) (*Writer, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating frames directory: %w", err)
	}
	return &Writer{dir: dir, factor: factor}, nil
}

// Write saves img as the next frame and returns its path.
func (w *Writer) Write(img *image.RGBA) (string, error) {
	if w == nil {
		return "", nil
	}
	data, err := Encode(img, w.factor)
	if err != nil {
		return "", err
	}
	path := filepath.Join(w.dir, fmt.Sprintf("frame_%06d.png", w.next))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing frame: %w", err)
	}
	w.next++
	return path, nil
}

// Count returns the number of frames written.
func (w *Writer) Count() int {
	if w == nil {
		return 0
	}
	return w.next
}
