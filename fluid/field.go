package fluid

// Field is a dense array of cells over a grid.
type Field[T Cell] struct {
	grid Grid
	data []T
}

// NewField allocates a zeroed field.
func NewField[T Cell](g Grid) *Field[T] {
	return &Field[T]{grid: g, data: make([]T, g.Len())}
}

// Grid returns the field's lattice.
func (f *Field[T]) Grid() Grid { return f.grid }

// Data exposes the backing slice for bulk initialization and export.
func (f *Field[T]) Data() []T { return f.data }

// View returns a read-only view of the field.
func (f *Field[T]) View() View[T] { return View[T]{f: f} }

// RW returns a writable view of the field.
func (f *Field[T]) RW() RWView[T] { return RWView[T]{f: f} }

// View is a read-only window onto one buffer.
type View[T Cell] struct {
	f *Field[T]
}

// Grid returns the lattice of the viewed buffer.
func (v View[T]) Grid() Grid { return v.f.grid }

// Len returns the number of cells.
func (v View[T]) Len() int { return len(v.f.data) }

// AtIndex returns the cell at a linear index.
func (v View[T]) AtIndex(i int) T { return v.f.data[i] }

// At returns the cell at (x, y, z) with edge-clamp addressing.
func (v View[T]) At(x, y, z int) T { return v.f.data[v.f.grid.Clamp(x, y, z)] }

// Slice returns the read-only backing data. Callers must not modify it.
func (v View[T]) Slice() []T { return v.f.data }

func (v View[T]) same(w RWView[T]) bool { return v.f == w.f }

// RWView is a writable window onto one buffer.
type RWView[T Cell] struct {
	f *Field[T]
}

// Grid returns the lattice of the viewed buffer.
func (w RWView[T]) Grid() Grid { return w.f.grid }

// Set stores a cell at a linear index.
func (w RWView[T]) Set(i int, val T) { w.f.data[i] = val }

// SetAt stores a cell at in-range coordinates.
func (w RWView[T]) SetAt(x, y, z int, val T) { w.f.data[w.f.grid.Index(x, y, z)] = val }

// View downgrades to a read-only view of the same buffer.
func (w RWView[T]) View() View[T] { return View[T]{f: w.f} }

// DoubleBuffer pairs two buffers of one logical field. The buffers keep their
// identity for the lifetime of the pair; only the read index moves.
type DoubleBuffer[T Cell] struct {
	bufs [2]*Field[T]
	cur  int
}

// NewDoubleBuffer allocates both buffers.
func NewDoubleBuffer[T Cell](g Grid) *DoubleBuffer[T] {
	return &DoubleBuffer[T]{bufs: [2]*Field[T]{NewField[T](g), NewField[T](g)}}
}

// Read returns the current buffer.
func (b *DoubleBuffer[T]) Read() View[T] { return b.bufs[b.cur].View() }

// Write returns the buffer the next pass writes into.
func (b *DoubleBuffer[T]) Write() RWView[T] { return b.bufs[1-b.cur].RW() }

// Current returns the current buffer for bulk access.
func (b *DoubleBuffer[T]) Current() *Field[T] { return b.bufs[b.cur] }

// Swap makes the written buffer current.
func (b *DoubleBuffer[T]) Swap() { b.cur = 1 - b.cur }

// Reset zeroes both buffers.
func (b *DoubleBuffer[T]) Reset() {
	for _, f := range b.bufs {
		clear(f.data)
	}
}

func mustDistinct[T Cell](pass string, in View[T], out RWView[T]) {
	if in.same(out) {
		panic("fluid: " + pass + " reads and writes the same buffer")
	}
}
