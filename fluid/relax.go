package fluid

// Coefficients parameterize one Jacobi sweep:
//
//	next = (sum of six neighbors of current + Alpha*known) / Beta
type Coefficients struct {
	Alpha, Beta float32
}

// PressureCoefficients solve laplacian(p) = div on a unit-spaced grid.
var PressureCoefficients = Coefficients{Alpha: -1, Beta: 6}

// DiffusionCoefficients solve (I - nu*dt*laplacian) u = u0 on a unit-spaced
// grid. A non-positive viscosity or dt yields zero coefficients, which callers
// treat as "skip diffusion".
func DiffusionCoefficients(viscosity, dt float32) Coefficients {
	if viscosity <= 0 || dt <= 0 {
		return Coefficients{}
	}
	alpha := 1 / (viscosity * dt)
	return Coefficients{Alpha: alpha, Beta: 6 + alpha}
}

// RelaxScalar performs one Jacobi sweep over a scalar unknown.
func RelaxScalar(pool *Pool, c Coefficients, known, cur View[float32], next RWView[float32]) {
	mustDistinct("relax", cur, next)
	g := cur.Grid()
	inv := 1 / c.Beta

	pool.ForEach(g.Len(), func(start, end int) {
		for i := start; i < end; i++ {
			x, y, z := g.Coords(i)
			sum := cur.At(x-1, y, z) + cur.At(x+1, y, z) +
				cur.At(x, y-1, z) + cur.At(x, y+1, z) +
				cur.At(x, y, z-1) + cur.At(x, y, z+1)
			next.Set(i, (sum+c.Alpha*known.AtIndex(i))*inv)
		}
	})
}

// RelaxVector performs one Jacobi sweep over a vector unknown.
func RelaxVector(pool *Pool, c Coefficients, known, cur View[Vec3], next RWView[Vec3]) {
	mustDistinct("relax", cur, next)
	g := cur.Grid()
	inv := 1 / c.Beta

	pool.ForEach(g.Len(), func(start, end int) {
		for i := start; i < end; i++ {
			x, y, z := g.Coords(i)
			sum := cur.At(x-1, y, z).Add(cur.At(x+1, y, z)).
				Add(cur.At(x, y-1, z)).Add(cur.At(x, y+1, z)).
				Add(cur.At(x, y, z-1)).Add(cur.At(x, y, z+1))
			next.Set(i, sum.Add(known.AtIndex(i).Mul(c.Alpha)).Mul(inv))
		}
	})
}

// Relaxation is the working set of an iterative solve: a known right-hand
// side and a double-buffered unknown. The unknown may be shared with the
// owning simulator (diffusion relaxes the velocity field in place).
type Relaxation[T Cell] struct {
	Known   *Field[T]
	Unknown *DoubleBuffer[T]
	sweep   func(*Pool, Coefficients, View[T], View[T], RWView[T])
}

// NewScalarRelaxation allocates a scalar working set with its own unknown.
func NewScalarRelaxation(g Grid) *Relaxation[float32] {
	return &Relaxation[float32]{
		Known:   NewField[float32](g),
		Unknown: NewDoubleBuffer[float32](g),
		sweep:   RelaxScalar,
	}
}

// NewVectorRelaxation allocates a vector working set over an existing unknown.
func NewVectorRelaxation(g Grid, unknown *DoubleBuffer[Vec3]) *Relaxation[Vec3] {
	return &Relaxation[Vec3]{
		Known:   NewField[Vec3](g),
		Unknown: unknown,
		sweep:   RelaxVector,
	}
}

// Solve runs the given number of sweeps, swapping after each so the latest
// result is always current. Zero iterations leave the unknown untouched.
func (r *Relaxation[T]) Solve(pool *Pool, c Coefficients, iterations int) {
	known := r.Known.View()
	for it := 0; it < iterations; it++ {
		r.sweep(pool, c, known, r.Unknown.Read(), r.Unknown.Write())
		r.Unknown.Swap()
	}
}

// LoadKnown copies src into the known field.
func (r *Relaxation[T]) LoadKnown(pool *Pool, src View[T]) {
	Copy(pool, src, r.Known.RW())
}
