package fluid

import "math"

// texel holds the two clamped lattice indices and blend weight along one axis.
type texel struct {
	i0, i1 int
	f      float32
}

// axisTexel clamps a texel-space coordinate (cell centers at integers) to
// [0, n-1] and splits it into neighbor indices and a fraction.
func axisTexel(t float32, n int) texel {
	hi := float32(n - 1)
	if !(t > 0) { // also catches NaN
		return texel{0, 0, 0}
	}
	if t >= hi {
		return texel{n - 1, n - 1, 0}
	}
	fl := float32(math.Floor(float64(t)))
	i0 := int(fl)
	i1 := i0 + 1
	if i1 > n-1 {
		i1 = n - 1
	}
	return texel{i0, i1, t - fl}
}

// SampleScalar trilinearly interpolates a scalar field at texel-space
// position p with clamp addressing.
func SampleScalar(v View[float32], p Vec3) float32 {
	g := v.Grid()
	tx := axisTexel(p[0], g.W)
	ty := axisTexel(p[1], g.H)
	tz := axisTexel(p[2], g.D)
	d := v.f.data

	row := func(y, z int) float32 {
		base := g.W * (y + g.H*z)
		a := d[base+tx.i0]
		b := d[base+tx.i1]
		return a + (b-a)*tx.f
	}
	plane := func(z int) float32 {
		a := row(ty.i0, z)
		b := row(ty.i1, z)
		return a + (b-a)*ty.f
	}
	a := plane(tz.i0)
	b := plane(tz.i1)
	return a + (b-a)*tz.f
}

// SampleVector trilinearly interpolates a vector field at texel-space
// position p with clamp addressing.
func SampleVector(v View[Vec3], p Vec3) Vec3 {
	g := v.Grid()
	tx := axisTexel(p[0], g.W)
	ty := axisTexel(p[1], g.H)
	tz := axisTexel(p[2], g.D)
	d := v.f.data

	row := func(y, z int) Vec3 {
		base := g.W * (y + g.H*z)
		return lerp3(d[base+tx.i0], d[base+tx.i1], tx.f)
	}
	plane := func(z int) Vec3 {
		return lerp3(row(ty.i0, z), row(ty.i1, z), ty.f)
	}
	return lerp3(plane(tz.i0), plane(tz.i1), tz.f)
}

// TexToTexel converts normalized texture coordinates in [0,1]^3 to
// texel-space coordinates.
func TexToTexel(g Grid, tex Vec3) Vec3 {
	return Vec3{
		tex[0]*float32(g.W) - 0.5,
		tex[1]*float32(g.H) - 0.5,
		tex[2]*float32(g.D) - 0.5,
	}
}

func lerp3(a, b Vec3, t float32) Vec3 {
	return Vec3{
		a[0] + (b[0]-a[0])*t,
		a[1] + (b[1]-a[1])*t,
		a[2] + (b[2]-a[2])*t,
	}
}
