package renderer

import (
	"image"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/smoke/fluid"
)

const testSize = 16

// testCamera looks down +z from (0,0,-5) through a 3x3 near plane at z=-3.
func testCamera() Camera {
	s := float32(3) / testSize
	return Camera{
		ScreenToLocal: mgl32.Translate3D(-1.5, 1.5, -3).Mul4(mgl32.Scale3D(s, -s, 1)),
		Eye:           mgl32.Vec3{0, 0, -5},
		Light:         mgl32.Vec3{10, 45, -75}.Mul(1 / 6.4),
	}
}

func testLight() Light {
	return Light{
		Directional: mgl32.Vec3{1, 1, 1}.Mul(1.6),
		Ambient:     mgl32.Vec3{1, 1, 1}.Mul(0.08),
	}
}

func uniformDensity(t testing.TB, n int, value float32) fluid.View[float32] {
	g, err := fluid.NewGrid(n, n, n)
	if err != nil {
		t.Fatal(err)
	}
	f := fluid.NewField[float32](g)
	for i := range f.Data() {
		f.Data()[i] = value
	}
	return f.View()
}

func newTestRenderer(t testing.TB, opts Options) *Renderer {
	pool := fluid.NewPool(2)
	t.Cleanup(pool.Close)
	return New(opts, pool)
}

func TestEncodeBackground(t *testing.T) {
	m := NewMarcher(DefaultOptions(), uniformDensity(t, 4, 0), testLight(), mgl32.Vec3{1, 1, 1})
	got := Encode(m.Background())
	want := [3]uint8{100, 149, 237}
	if got != want {
		t.Errorf("background = %v, want %v", got, want)
	}
}

func TestEmptyVolumeRendersBackground(t *testing.T) {
	r := newTestRenderer(t, DefaultOptions())
	dst := image.NewRGBA(image.Rect(0, 0, testSize, testSize))
	cam := testCamera()
	density := uniformDensity(t, 8, 0)

	r.Render(dst, density, testLight(), cam)

	m := NewMarcher(r.Options(), density, testLight(), cam.Light)
	bg := Encode(m.Background())
	for y := 0; y < testSize; y++ {
		for x := 0; x < testSize; x++ {
			c := dst.RGBAAt(x, y)
			if c.R != bg[0] || c.G != bg[1] || c.B != bg[2] || c.A != 255 {
				t.Fatalf("pixel (%d,%d) = %v, want background %v", x, y, c, bg)
			}
		}
	}

	pos, dir := PixelRay(cam, testSize/2, testSize/2)
	start, ok := EntryPoint(pos, dir)
	if !ok {
		t.Fatal("center ray missed the volume")
	}
	s := m.March(start, dir)
	if s.Transmittance != 1 {
		t.Errorf("transmittance = %v, want 1", s.Transmittance)
	}
	if s.Color != m.Background() {
		t.Errorf("color = %v, want exactly %v", s.Color, m.Background())
	}
}

func TestMissedPixelsUntouchedWithoutClear(t *testing.T) {
	opts := DefaultOptions()
	opts.ClearMissed = false
	r := newTestRenderer(t, opts)
	dst := image.NewRGBA(image.Rect(0, 0, testSize, testSize))
	for i := range dst.Pix {
		dst.Pix[i] = 7
	}

	r.Render(dst, uniformDensity(t, 8, 0), testLight(), testCamera())

	if c := dst.RGBAAt(0, 0); c.R != 7 || c.A != 7 {
		t.Errorf("corner pixel = %v, want untouched", c)
	}
	if c := dst.RGBAAt(testSize/2, testSize/2); c.A != 255 {
		t.Errorf("center pixel = %v, want written", c)
	}
}

func TestDenseVolumeAttenuates(t *testing.T) {
	m := NewMarcher(DefaultOptions(), uniformDensity(t, 8, 1), testLight(), testCamera().Light)
	start, ok := EntryPoint(mgl32.Vec3{0, 0, -5}, mgl32.Vec3{0, 0, 1})
	if !ok {
		t.Fatal("axis ray missed")
	}
	s := m.March(start, mgl32.Vec3{0, 0, 1})
	if s.Transmittance <= 0 || s.Transmittance >= 0.5 {
		t.Errorf("transmittance = %v, want in (0, 0.5)", s.Transmittance)
	}
	if s.Color == m.Background() {
		t.Error("dense volume rendered as background")
	}
}

func TestOpaqueVolumeStopsEarly(t *testing.T) {
	m := NewMarcher(DefaultOptions(), uniformDensity(t, 8, 1000), testLight(), testCamera().Light)
	s := m.March(mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 0, 1})
	if s.Transmittance >= 0.01 {
		t.Errorf("transmittance = %v, want below threshold", s.Transmittance)
	}

	capped := NewMarcher(DefaultOptions(), uniformDensity(t, 8, 16), testLight(), testCamera().Light)
	c := capped.March(mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 0, 1})
	if c != s {
		t.Errorf("density above the cap changed the result: %+v vs %+v", s, c)
	}
}

func TestEntryPoint(t *testing.T) {
	tests := []struct {
		name     string
		pos, dir mgl32.Vec3
		want     mgl32.Vec3
		hit      bool
	}{
		{"inside", mgl32.Vec3{0.2, -0.3, 0.9}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0.2, -0.3, 0.9}, true},
		{"front face", mgl32.Vec3{0, 0, -5}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 0, -1}, true},
		{"right face", mgl32.Vec3{5, 0.5, 0}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{1, 0.5, 0}, true},
		{"pointing away", mgl32.Vec3{0, 0, -5}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{}, false},
		{"parallel offset", mgl32.Vec3{0, 2, -5}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := EntryPoint(tt.pos, tt.dir)
			if ok != tt.hit {
				t.Fatalf("hit = %v, want %v", ok, tt.hit)
			}
			if ok && !got.ApproxEqualThreshold(tt.want, 1e-5) {
				t.Errorf("entry = %v, want %v", got, tt.want)
			}
		})
	}

	// Diagonal ray enters through the nearest face.
	dir := mgl32.Vec3{1, 1, 1}.Normalize()
	got, ok := EntryPoint(mgl32.Vec3{-3, -2, -2}, dir)
	if !ok {
		t.Fatal("diagonal ray missed")
	}
	if !got.ApproxEqualThreshold(mgl32.Vec3{-1, 0, 0}, 1e-5) {
		t.Errorf("diagonal entry = %v, want (-1,0,0)", got)
	}
}

func TestPointLightDiffersFromDirectional(t *testing.T) {
	g, _ := fluid.NewGrid(8, 8, 8)
	f := fluid.NewField[float32](g)
	// A slab in the upper half shadows points below it from a light above.
	for i := range f.Data() {
		_, y, _ := g.Coords(i)
		if y < 3 {
			f.Data()[i] = 4
		} else if y == 5 {
			f.Data()[i] = 0.5
		}
	}
	dir := DefaultOptions()
	point := DefaultOptions()
	point.LightModel = Point

	lightPt := mgl32.Vec3{0, 0, -0.2}
	start := mgl32.Vec3{-1, -0.3, 0}
	ray := mgl32.Vec3{1, 0, 0}
	a := NewMarcher(dir, f.View(), testLight(), mgl32.Vec3{0, 1, 0}).March(start, ray)
	b := NewMarcher(point, f.View(), testLight(), lightPt).March(start, ray)
	if a.Color == b.Color {
		t.Errorf("light models produced identical color %v", a.Color)
	}
	if a.Transmittance != b.Transmittance {
		t.Errorf("light model changed view transmittance: %v vs %v", a.Transmittance, b.Transmittance)
	}
}

func TestParseLightModel(t *testing.T) {
	if m, err := ParseLightModel("point"); err != nil || m != Point {
		t.Errorf("point = %v, %v", m, err)
	}
	if m, err := ParseLightModel(""); err != nil || m != Directional {
		t.Errorf("empty = %v, %v", m, err)
	}
	if _, err := ParseLightModel("spot"); err == nil {
		t.Error("expected error")
	}
}

func BenchmarkRender(b *testing.B) {
	pool := fluid.NewPool(0)
	defer pool.Close()
	r := New(DefaultOptions(), pool)
	dst := image.NewRGBA(image.Rect(0, 0, 128, 128))
	density := uniformDensity(b, 32, 0.5)
	s := float32(3) / 128
	cam := Camera{
		ScreenToLocal: mgl32.Translate3D(-1.5, 1.5, -3).Mul4(mgl32.Scale3D(s, -s, 1)),
		Eye:           mgl32.Vec3{0, 0, -5},
		Light:         mgl32.Vec3{1, 1, 1},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.Render(dst, density, testLight(), cam)
	}
}
