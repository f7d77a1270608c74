package scenario

import "github.com/pthm-cable/smoke/fluid"

const minDragStrength = 1e-7

// Drag converts successive mouse positions in volume-local space
// ([-1,1] per axis) into impulses.
type Drag struct {
	ForceScale  float32
	MinStrength float32
	Density     float32
	Min, Max    float32 // location clamp in normalized grid units

	prev       fluid.Vec3
	active     bool
	hasImpulse bool
	impulse    Impulse
}

// Move records a new position. The first sample of a drag only sets the
// reference point. A stationary sample keeps the previous impulse.
func (g *Drag) Move(local fluid.Vec3) {
	if !g.active {
		g.active = true
		g.prev = local
		return
	}
	force := local.Sub(g.prev).Mul(g.ForceScale)
	strength := force.Len()
	if strength > minDragStrength {
		dir := force.Mul(1 / strength)
		force = dir.Mul(max(strength, g.MinStrength))
		loc := g.prev.Mul(0.5).Add(fluid.Vec3{0.5, 0.5, 0.5})
		g.impulse = Impulse{
			Force:    force.Vec4(g.Density),
			Location: clampVec(loc, g.Min, g.Max),
		}
		g.hasImpulse = true
	}
	g.prev = local
}

// Release ends the drag.
func (g *Drag) Release() {
	g.active = false
	g.hasImpulse = false
	g.impulse = Impulse{}
}

// Active reports whether a drag is in progress.
func (g *Drag) Active() bool { return g.active }

// Impulse returns the latest drag impulse, if any.
func (g *Drag) Impulse() (Impulse, bool) { return g.impulse, g.hasImpulse }
