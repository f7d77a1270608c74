package fluid

import "math"

// impulseSupport is the cutoff, in radii, past which the Gaussian basis is
// treated as zero. exp(-4*3^2) is below 3e-16.
const impulseSupport = 3

// Gaussian returns exp(-4*|d|^2/r^2).
func Gaussian(d Vec3, radius float32) float32 {
	return float32(math.Exp(float64(-4 * d.Dot(d) / (radius * radius))))
}

// Impulse describes one localized injection.
type Impulse struct {
	Force    Vec4 // xyz: direction * strength, w: density magnitude
	Location Vec3 // normalized [0,1]^3 grid position
	Radius   float32
	// ScaleDensity multiplies injected density by |Force.xyz|, so stronger
	// pushes carry more smoke.
	ScaleDensity bool
}

// densityAmount returns the density added at basis 1.
func (im Impulse) densityAmount() float32 {
	w := im.Force[3]
	if im.ScaleDensity {
		w *= im.Force.Vec3().Len()
	}
	return w
}

// ApplyImpulse adds force*basis*dt to velocity and density*basis to density in
// a single pass. Cell positions are normalized as index/size.
func ApplyImpulse(pool *Pool, dt float32, im Impulse, vel View[Vec3], den View[float32], velOut RWView[Vec3], denOut RWView[float32]) {
	mustDistinct("impulse velocity", vel, velOut)
	mustDistinct("impulse density", den, denOut)

	g := vel.Grid()
	inv := Vec3{1 / float32(g.W), 1 / float32(g.H), 1 / float32(g.D)}
	force := im.Force.Vec3().Mul(dt)
	amount := im.densityAmount()
	cutoff := impulseSupport * impulseSupport * im.Radius * im.Radius

	pool.ForEach(g.Len(), func(start, end int) {
		for i := start; i < end; i++ {
			x, y, z := g.Coords(i)
			d := Vec3{
				float32(x)*inv[0] - im.Location[0],
				float32(y)*inv[1] - im.Location[1],
				float32(z)*inv[2] - im.Location[2],
			}
			u := vel.AtIndex(i)
			rho := den.AtIndex(i)
			if d.Dot(d) < cutoff {
				basis := Gaussian(d, im.Radius)
				u = u.Add(force.Mul(basis))
				rho += amount * basis
			}
			velOut.Set(i, u)
			denOut.Set(i, rho)
		}
	})
}
