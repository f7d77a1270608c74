package fluid

import "math"

// Divergence writes the central-difference divergence of vel into out.
// Neighbors outside the grid are edge-clamped.
func Divergence(pool *Pool, vel View[Vec3], out RWView[float32]) {
	g := vel.Grid()
	pool.ForEach(g.Len(), func(start, end int) {
		for i := start; i < end; i++ {
			x, y, z := g.Coords(i)
			out.Set(i, divergenceAt(vel, x, y, z))
		}
	})
}

func divergenceAt(vel View[Vec3], x, y, z int) float32 {
	return 0.5 * (vel.At(x+1, y, z)[0] - vel.At(x-1, y, z)[0] +
		vel.At(x, y+1, z)[1] - vel.At(x, y-1, z)[1] +
		vel.At(x, y, z+1)[2] - vel.At(x, y, z-1)[2])
}

// SubtractGradient writes vel - grad(p)/restDensity into out.
func SubtractGradient(pool *Pool, restDensity float32, vel View[Vec3], p View[float32], out RWView[Vec3]) {
	mustDistinct("project", vel, out)
	g := vel.Grid()
	inv := 0.5 / restDensity

	pool.ForEach(g.Len(), func(start, end int) {
		for i := start; i < end; i++ {
			x, y, z := g.Coords(i)
			grad := Vec3{
				p.At(x+1, y, z) - p.At(x-1, y, z),
				p.At(x, y+1, z) - p.At(x, y-1, z),
				p.At(x, y, z+1) - p.At(x, y, z-1),
			}
			out.Set(i, vel.AtIndex(i).Sub(grad.Mul(inv)))
		}
	})
}

// Copy duplicates src into dst.
func Copy[T Cell](pool *Pool, src View[T], dst RWView[T]) {
	if src.same(dst) {
		return
	}
	s, d := src.f.data, dst.f.data
	pool.ForEach(len(s), func(start, end int) {
		copy(d[start:end], s[start:end])
	})
}

// Clear zeroes every cell of dst.
func Clear[T Cell](pool *Pool, dst RWView[T]) {
	d := dst.f.data
	pool.ForEach(len(d), func(start, end int) {
		clear(d[start:end])
	})
}

// MeanAbsDivergence returns the mean absolute divergence over all cells.
func MeanAbsDivergence(vel View[Vec3]) float64 {
	g := vel.Grid()
	var sum float64
	for i := 0; i < g.Len(); i++ {
		x, y, z := g.Coords(i)
		sum += math.Abs(float64(divergenceAt(vel, x, y, z)))
	}
	return sum / float64(g.Len())
}

// MeanAbsInteriorDivergence is MeanAbsDivergence restricted to cells whose
// stencil does not touch the boundary layer.
func MeanAbsInteriorDivergence(vel View[Vec3]) float64 {
	g := vel.Grid()
	var sum float64
	var n int
	for z := 2; z < g.D-2; z++ {
		for y := 2; y < g.H-2; y++ {
			for x := 2; x < g.W-2; x++ {
				sum += math.Abs(float64(divergenceAt(vel, x, y, z)))
				n++
			}
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Energy returns the mean of 0.5*|u|^2 over all cells.
func Energy(vel View[Vec3]) float64 {
	var sum float64
	for _, u := range vel.Slice() {
		sum += 0.5 * float64(u.Dot(u))
	}
	return sum / float64(vel.Len())
}

// Total returns the sum of a scalar field.
func Total(v View[float32]) float64 {
	var sum float64
	for _, d := range v.Slice() {
		sum += float64(d)
	}
	return sum
}
