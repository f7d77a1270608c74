package fluid

// boundaryOffset returns the inward step for coordinate v on an axis of n cells.
func boundaryOffset(v, n int) int {
	switch {
	case v >= n-1:
		return -1
	case v <= 0:
		return 1
	}
	return 0
}

// EnforceBoundary copies vel into out, replacing every face cell with the
// negated velocity of its inward neighbor (one step along each violated axis).
func EnforceBoundary(pool *Pool, vel View[Vec3], out RWView[Vec3]) {
	mustDistinct("boundary", vel, out)
	g := vel.Grid()

	pool.ForEach(g.Len(), func(start, end int) {
		for i := start; i < end; i++ {
			x, y, z := g.Coords(i)
			ox := boundaryOffset(x, g.W)
			oy := boundaryOffset(y, g.H)
			oz := boundaryOffset(z, g.D)
			if ox == 0 && oy == 0 && oz == 0 {
				out.Set(i, vel.AtIndex(i))
				continue
			}
			out.Set(i, vel.AtIndex(g.Index(x+ox, y+oy, z+oz)).Mul(-1))
		}
	})
}
