package renderer

import (
	"image"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/smoke/fluid"
)

// Renderer draws density volumes into caller-owned images, one row range per
// worker.
type Renderer struct {
	opts Options
	pool *fluid.Pool
}

// New creates a renderer sharing the simulator's worker pool.
func New(opts Options, pool *fluid.Pool) *Renderer {
	if opts.Samples <= 0 {
		opts.Samples = 128
	}
	if opts.LightSamples <= 0 {
		opts.LightSamples = 32
	}
	return &Renderer{opts: opts, pool: pool}
}

// Options returns the active settings.
func (r *Renderer) Options() Options { return r.opts }

// SetLightModel switches between directional and point lighting.
func (r *Renderer) SetLightModel(m LightModel) { r.opts.LightModel = m }

// Render marches one ray per pixel of dst. The density view must stay
// unmodified until Render returns.
func (r *Renderer) Render(dst *image.RGBA, density fluid.View[float32], light Light, cam Camera) {
	m := NewMarcher(r.opts, density, light, cam.Light)
	bg := Encode(m.Background())
	b := dst.Bounds()
	w := b.Dx()

	r.pool.ForEach(b.Dy(), func(start, end int) {
		for y := start; y < end; y++ {
			row := dst.Pix[dst.PixOffset(b.Min.X, b.Min.Y+y):]
			for x := 0; x < w; x++ {
				px := row[4*x : 4*x+4 : 4*x+4]
				c, ok := r.pixel(m, cam, x, y)
				if !ok {
					if !r.opts.ClearMissed {
						continue
					}
					c = bg
				}
				px[0], px[1], px[2], px[3] = c[0], c[1], c[2], 255
			}
		}
	})
}

// pixel shades the pixel at image-relative (x, y).
func (r *Renderer) pixel(m *Marcher, cam Camera, x, y int) ([3]uint8, bool) {
	pos, dir := PixelRay(cam, x, y)
	start, ok := EntryPoint(pos, dir)
	if !ok {
		return [3]uint8{}, false
	}
	return Encode(m.March(start, dir).Color), true
}

// PixelRay unprojects a pixel onto the near plane and returns the ray from
// the eye through it.
func PixelRay(cam Camera, x, y int) (pos, dir mgl32.Vec3) {
	h := cam.ScreenToLocal.Mul4x1(mgl32.Vec4{float32(x), float32(y), 0, 1})
	pos = h.Vec3().Mul(1 / h[3])
	d := pos.Sub(cam.Eye)
	if d.Len() == 0 {
		return pos, mgl32.Vec3{0, 0, 1}
	}
	return pos, d.Normalize()
}
