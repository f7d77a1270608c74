package fluid

// Advect moves velocity and density along the velocity field by tracing each
// cell center backward over dt and resampling both fields at the departure
// point. Density is multiplied by decay. Velocity is in normalized texture
// units per second, so the trace distance in cells is u*dt*size.
func Advect(pool *Pool, dt, decay float32, vel View[Vec3], den View[float32], velOut RWView[Vec3], denOut RWView[float32]) {
	mustDistinct("advect velocity", vel, velOut)
	mustDistinct("advect density", den, denOut)

	g := vel.Grid()
	scale := g.Size().Mul(dt)

	pool.ForEach(g.Len(), func(start, end int) {
		for i := start; i < end; i++ {
			x, y, z := g.Coords(i)
			u := vel.AtIndex(i)
			p := Vec3{
				float32(x) - u[0]*scale[0],
				float32(y) - u[1]*scale[1],
				float32(z) - u[2]*scale[2],
			}
			velOut.Set(i, SampleVector(vel, p))
			denOut.Set(i, SampleScalar(den, p)*decay)
		}
	})
}

// AdvectScalar carries a single scalar field along vel without decay.
func AdvectScalar(pool *Pool, dt float32, vel View[Vec3], src View[float32], dst RWView[float32]) {
	mustDistinct("advect scalar", src, dst)

	g := vel.Grid()
	scale := g.Size().Mul(dt)

	pool.ForEach(g.Len(), func(start, end int) {
		for i := start; i < end; i++ {
			x, y, z := g.Coords(i)
			u := vel.AtIndex(i)
			p := Vec3{
				float32(x) - u[0]*scale[0],
				float32(y) - u[1]*scale[1],
				float32(z) - u[2]*scale[2],
			}
			dst.Set(i, SampleScalar(src, p))
		}
	})
}
