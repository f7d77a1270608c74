// Package renderer ray-marches a density volume into an RGBA image.
//
// The volume occupies the local-space cube [-1,1]^3. Each pixel is unprojected
// into local space, entered into the cube and marched front to back, with a
// secondary march toward the light at every occupied sample.
package renderer

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/smoke/fluid"
)

// LightModel selects how the light direction is computed per sample.
type LightModel int

const (
	// Directional treats the light position as a direction from the origin.
	Directional LightModel = iota
	// Point aims every light ray at the light position.
	Point
)

// ParseLightModel maps a config name to a light model.
func ParseLightModel(name string) (LightModel, error) {
	switch name {
	case "", "directional":
		return Directional, nil
	case "point":
		return Point, nil
	}
	return 0, fmt.Errorf("renderer: unknown light model %q", name)
}

// Options configure the marcher.
type Options struct {
	Samples       int
	LightSamples  int
	Absorption    float32
	ZeroThreshold float32 // skip densities and stop transmittances below this
	MaxDensity    float32 // samples are capped here
	Background    mgl32.Vec3
	LightModel    LightModel
	// ClearMissed fills pixels whose ray misses the volume with the
	// background. When false they are left untouched.
	ClearMissed bool
}

// CornflowerBlue is the default background in display space.
var CornflowerBlue = mgl32.Vec3{0.392156899, 0.584313750, 0.929411829}

// DefaultOptions returns the stock marcher settings.
func DefaultOptions() Options {
	return Options{
		Samples:       128,
		LightSamples:  32,
		Absorption:    1,
		ZeroThreshold: 0.01,
		MaxDensity:    16,
		Background:    CornflowerBlue,
		LightModel:    Directional,
		ClearMissed:   true,
	}
}

// Light holds radiances, already scaled by intensity.
type Light struct {
	Directional mgl32.Vec3
	Ambient     mgl32.Vec3
}

// Camera holds the per-frame view of the volume in its local space.
type Camera struct {
	ScreenToLocal mgl32.Mat4
	Eye           mgl32.Vec3
	Light         mgl32.Vec3
}

// Sample is the result of marching one ray.
type Sample struct {
	Color         mgl32.Vec3 // linear radiance before encoding
	Transmittance float32
}

// maxDist is the cube diagonal, the longest chord through [-1,1]^3.
var maxDist = float32(2 * math.Sqrt(3))

// Marcher holds derived per-frame constants for marching individual rays.
type Marcher struct {
	opts    Options
	density fluid.View[float32]
	grid    fluid.Grid
	light   Light
	lightPt mgl32.Vec3

	step, lstep float32
	lightStep   mgl32.Vec3 // directional light step
	clear       mgl32.Vec3 // linear background
}

// NewMarcher prepares a marcher over one density snapshot.
func NewMarcher(opts Options, density fluid.View[float32], light Light, lightPt mgl32.Vec3) *Marcher {
	m := &Marcher{
		opts:    opts,
		density: density,
		grid:    density.Grid(),
		light:   light,
		lightPt: lightPt,
		step:    maxDist / float32(opts.Samples),
		lstep:   maxDist / float32(opts.LightSamples),
	}
	m.clear = mgl32.Vec3{
		opts.Background[0] * opts.Background[0],
		opts.Background[1] * opts.Background[1],
		opts.Background[2] * opts.Background[2],
	}
	if lightPt.Len() > 0 {
		m.lightStep = lightPt.Normalize().Mul(m.lstep)
	}
	return m
}

// Background returns the linear background radiance.
func (m *Marcher) Background() mgl32.Vec3 { return m.clear }

func outside(p mgl32.Vec3) bool {
	return abs32(p[0]) > 1 || abs32(p[1]) > 1 || abs32(p[2]) > 1
}

// densityAt samples the volume at a local-space point. Local y points up
// while texture y points down.
func (m *Marcher) densityAt(p mgl32.Vec3) float32 {
	tex := mgl32.Vec3{0.5*p[0] + 0.5, -0.5*p[1] + 0.5, 0.5*p[2] + 0.5}
	d := fluid.SampleScalar(m.density, fluid.TexToTexel(m.grid, tex))
	if d > m.opts.MaxDensity {
		d = m.opts.MaxDensity
	}
	return d
}

// lightTransmittance marches from p toward the light.
func (m *Marcher) lightTransmittance(p mgl32.Vec3) float32 {
	step := m.lightStep
	if m.opts.LightModel == Point {
		toLight := m.lightPt.Sub(p)
		if toLight.Len() == 0 {
			return 1
		}
		step = toLight.Normalize().Mul(m.lstep)
	}

	trans := float32(1)
	lp := p.Add(step)
	for j := 0; j < m.opts.LightSamples; j++ {
		if outside(lp) {
			break
		}
		d := m.densityAt(lp)
		trans *= saturate(1 - m.opts.Absorption*m.lstep*d)
		if trans < m.opts.ZeroThreshold {
			break
		}
		lp = lp.Add(step)
	}
	return trans
}

// March integrates one ray that already starts inside the cube.
func (m *Marcher) March(pos, dir mgl32.Vec3) Sample {
	step := dir.Mul(m.step)
	trans := float32(1)
	var scatter float32

	for i := 0; i < m.opts.Samples; i++ {
		if outside(pos) {
			break
		}
		d := m.densityAt(pos)
		if d > m.opts.ZeroThreshold {
			scaled := d * m.step
			trans *= saturate(1 - scaled*m.opts.Absorption)
			if trans < m.opts.ZeroThreshold {
				break
			}
			scatter += m.lightTransmittance(pos) * trans * scaled
		}
		pos = pos.Add(step)
	}

	radiance := m.light.Directional.Mul(scatter).Add(m.light.Ambient)
	return Sample{
		Color:         lerpVec(radiance, m.clear, trans),
		Transmittance: trans,
	}
}

// EntryPoint moves pos onto the cube along dir. A point already inside is
// returned as is; otherwise the nearest forward face hit whose other two
// coordinates lie within the cube is used. ok is false when the ray misses.
func EntryPoint(pos, dir mgl32.Vec3) (mgl32.Vec3, bool) {
	if !outside(pos) {
		return pos, true
	}

	best := float32(math.MaxFloat32)
	hit := false
	for i := 0; i < 3; i++ {
		if dir[i] == 0 {
			continue
		}
		face := float32(-1)
		if dir[i] < 0 {
			face = 1
		}
		u := (face - pos[i]) / dir[i]
		if u < 0 {
			continue
		}
		j, k := (i+1)%3, (i+2)%3
		if abs32(dir[j]*u+pos[j]) > 1 || abs32(dir[k]*u+pos[k]) > 1 {
			continue
		}
		if u < best {
			best = u
			hit = true
		}
	}
	if !hit {
		return pos, false
	}

	p := pos.Add(dir.Mul(best))
	for i := range p {
		p[i] = mgl32.Clamp(p[i], -1, 1)
	}
	return p, true
}

// Encode converts linear radiance to display bytes (square root per channel).
func Encode(c mgl32.Vec3) [3]uint8 {
	return [3]uint8{unorm(c[0]), unorm(c[1]), unorm(c[2])}
}

func unorm(v float32) uint8 {
	s := float32(math.Sqrt(float64(saturate(v))))
	return uint8(s*255 + 0.5)
}

func saturate(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// lerpVec returns exactly b at t == 1.
func lerpVec(a, b mgl32.Vec3, t float32) mgl32.Vec3 {
	return a.Mul(1 - t).Add(b.Mul(t))
}
