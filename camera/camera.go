// Package camera provides an orbit camera around the smoke volume and the
// transforms the ray marcher needs.
package camera

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/smoke/renderer"
)

// Params holds the tunable camera parameters.
type Params struct {
	FOV         float32 // vertical field of view in radians
	Near, Far   float32
	Distance    float32 // eye distance from the volume center
	MinDistance float32
	MaxDistance float32
	Yaw, Pitch  float32 // radians
	WorldScale  float32 // half-extent of the volume cube in world units
	LightPos    mgl32.Vec3
}

// DefaultParams returns the stock view: 45 degree FOV, eye 32 units out at
// yaw 45 and pitch 30 degrees, volume scaled to 6.4.
func DefaultParams() Params {
	return Params{
		FOV:         math.Pi / 4,
		Near:        1,
		Far:         1000,
		Distance:    32,
		MinDistance: 12,
		MaxDistance: 96,
		Yaw:         math.Pi / 4,
		Pitch:       math.Pi / 6,
		WorldScale:  6.4,
		LightPos:    mgl32.Vec3{10, 45, -75},
	}
}

// Camera orbits the origin. The volume's local cube [-1,1]^3 is scaled by
// WorldScale into world space.
type Camera struct {
	Params

	// Viewport dimensions (render target size in pixels)
	ViewportW, ViewportH float32

	initial Params
}

// New creates a camera for the given viewport.
func New(viewportW, viewportH float32, p Params) *Camera {
	if p.MinDistance <= 0 {
		p.MinDistance = p.Near * 2
	}
	if p.MaxDistance < p.MinDistance {
		p.MaxDistance = p.Far / 2
	}
	return &Camera{
		Params:    p,
		ViewportW: viewportW,
		ViewportH: viewportH,
		initial:   p,
	}
}

// Resize updates viewport dimensions.
func (c *Camera) Resize(viewportW, viewportH float32) {
	c.ViewportW = viewportW
	c.ViewportH = viewportH
}

// Orbit rotates the eye by the given angles. Pitch stays short of the poles.
func (c *Camera) Orbit(dYaw, dPitch float32) {
	c.Yaw = float32(math.Mod(float64(c.Yaw+dYaw), 2*math.Pi))
	const limit = math.Pi/2 - 0.01
	c.Pitch = mgl32.Clamp(c.Pitch+dPitch, -limit, limit)
}

// ZoomBy scales the eye distance, clamped to the configured range.
func (c *Camera) ZoomBy(factor float32) {
	c.Distance = mgl32.Clamp(c.Distance*factor, c.MinDistance, c.MaxDistance)
}

// Reset returns the camera to its initial parameters.
func (c *Camera) Reset() {
	c.Params = c.initial
}

// Eye returns the eye position in world space.
func (c *Camera) Eye() mgl32.Vec3 {
	cp := float32(math.Cos(float64(c.Pitch)))
	return mgl32.Vec3{
		c.Distance * cp * float32(math.Sin(float64(c.Yaw))),
		c.Distance * float32(math.Sin(float64(c.Pitch))),
		-c.Distance * cp * float32(math.Cos(float64(c.Yaw))),
	}
}

// World maps local volume space to world space.
func (c *Camera) World() mgl32.Mat4 {
	return mgl32.Scale3D(c.WorldScale, c.WorldScale, c.WorldScale)
}

// View returns the world-to-view transform.
func (c *Camera) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Eye(), mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
}

// Projection returns the perspective transform.
func (c *Camera) Projection() mgl32.Mat4 {
	aspect := c.ViewportW / c.ViewportH
	return mgl32.Perspective(c.FOV, aspect, c.Near, c.Far)
}

// WorldViewProjection maps local space to clip space.
func (c *Camera) WorldViewProjection() mgl32.Mat4 {
	return c.Projection().Mul4(c.View()).Mul4(c.World())
}

// toScreen maps clip space to pixel coordinates with y down and depth in
// [0,1], so that screen z = 0 is the near plane.
func (c *Camera) toScreen() mgl32.Mat4 {
	return mgl32.Mat4{
		0.5 * c.ViewportW, 0, 0, 0,
		0, -0.5 * c.ViewportH, 0, 0,
		0, 0, 0.5, 0,
		0.5 * c.ViewportW, 0.5 * c.ViewportH, 0.5, 1,
	}
}

// LocalToScreen maps local volume space to homogeneous pixel coordinates.
func (c *Camera) LocalToScreen() mgl32.Mat4 {
	return c.toScreen().Mul4(c.WorldViewProjection())
}

// ScreenToLocal inverts LocalToScreen.
func (c *Camera) ScreenToLocal() mgl32.Mat4 {
	return c.LocalToScreen().Inv()
}

// ToLocal transforms a world-space point into local volume space.
func (c *Camera) ToLocal(p mgl32.Vec3) mgl32.Vec3 {
	return p.Mul(1 / c.WorldScale)
}

// RenderCamera returns the per-frame parameters for the ray marcher.
func (c *Camera) RenderCamera() renderer.Camera {
	return renderer.Camera{
		ScreenToLocal: c.ScreenToLocal(),
		Eye:           c.ToLocal(c.Eye()),
		Light:         c.ToLocal(c.LightPos),
	}
}

// PickLocal unprojects a pixel at the depth of the volume center and returns
// the local-space point with y flipped into texture orientation. Pixel
// coordinates are relative to the viewport.
func (c *Camera) PickLocal(sx, sy float32) mgl32.Vec3 {
	wvp := c.WorldViewProjection()
	center := mgl32.TransformCoordinate(mgl32.Vec3{}, wvp)

	ndc := mgl32.Vec3{
		sx/c.ViewportW*2 - 1,
		1 - sy/c.ViewportH*2,
		center[2],
	}
	p := mgl32.TransformCoordinate(ndc, wvp.Inv())
	p[1] = -p[1]
	return p
}
