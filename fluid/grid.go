// Package fluid implements a grid-based smoke solver: semi-Lagrangian
// advection, Jacobi relaxation for viscosity and pressure, Gaussian impulse
// injection and free-slip-style boundary enforcement over a fixed 3D lattice.
//
// Every field is double-buffered. A compute pass reads one buffer through a
// View and writes the other through an RWView; the controlling Simulator swaps
// buffers between passes.
package fluid

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// ErrInvalidGrid is returned when grid dimensions are not usable.
var ErrInvalidGrid = errors.New("fluid: invalid grid dimensions")

// Vec3 is the element type of vector fields.
type Vec3 = mgl32.Vec3

// Vec4 carries a force direction scaled by magnitude in XYZ and a density
// magnitude in W.
type Vec4 = mgl32.Vec4

// Cell is the set of element types a field may hold.
type Cell interface {
	float32 | Vec3
}

// Grid is the immutable lattice shape shared by every field of a simulator.
// Cells are stored x-fastest: index = x + W*(y + H*z).
type Grid struct {
	W, H, D int
}

// NewGrid validates the dimensions. Each axis needs at least two cells so
// that every boundary cell has an interior neighbor.
func NewGrid(w, h, d int) (Grid, error) {
	if w < 2 || h < 2 || d < 2 {
		return Grid{}, fmt.Errorf("%w: %dx%dx%d", ErrInvalidGrid, w, h, d)
	}
	return Grid{W: w, H: h, D: d}, nil
}

// Len returns the number of cells.
func (g Grid) Len() int { return g.W * g.H * g.D }

// Size returns the dimensions as a float vector.
func (g Grid) Size() Vec3 {
	return Vec3{float32(g.W), float32(g.H), float32(g.D)}
}

// Index returns the linear index of an in-range cell.
func (g Grid) Index(x, y, z int) int { return x + g.W*(y+g.H*z) }

// Clamp returns the linear index of the nearest in-range cell (edge-clamp addressing).
func (g Grid) Clamp(x, y, z int) int {
	return clampInt(x, g.W-1) + g.W*(clampInt(y, g.H-1)+g.H*clampInt(z, g.D-1))
}

// Coords inverts Index.
func (g Grid) Coords(i int) (x, y, z int) {
	x = i % g.W
	i /= g.W
	y = i % g.H
	z = i / g.H
	return
}

func clampInt(v, hi int) int {
	if v < 0 {
		return 0
	}
	if v > hi {
		return hi
	}
	return v
}
