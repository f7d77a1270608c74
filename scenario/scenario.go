// Package scenario decides which impulse drives the simulator each frame.
//
// Scripted emitters live as entities in an ECS world. Interactive input
// (mouse drags and the jet key) overrides them while it is active.
package scenario

import (
	"math"

	"github.com/mlange-42/ark/ecs"
	"github.com/ojrac/opensimplex-go"

	"github.com/pthm-cable/smoke/config"
	"github.com/pthm-cable/smoke/fluid"
)

// Impulse is the force/density pair and location handed to Simulate.
type Impulse struct {
	Force    fluid.Vec4 // xyz force, w density
	Location fluid.Vec3 // normalized grid coordinates
}

// Source names where the current impulse came from.
type Source uint8

const (
	SourceIdle Source = iota
	SourceEmitter
	SourceDrag
	SourceJet
)

func (s Source) String() string {
	switch s {
	case SourceEmitter:
		return "emitter"
	case SourceDrag:
		return "drag"
	case SourceJet:
		return "jet"
	default:
		return "idle"
	}
}

// Emitter is the timing and strength of one scripted impulse.
type Emitter struct {
	Name     string
	Start    float64
	Duration float64 // 0 = never ends
	Force    fluid.Vec3
	Density  float32
}

// Anchor is an emitter's resting location in normalized grid coordinates.
type Anchor struct {
	Location fluid.Vec3
}

// Wander drifts an emitter around its anchor.
type Wander struct {
	Amplitude float32
	Hz        float32
	Phase     float64 // noise-space offset so emitters drift independently
}

// Director owns the emitter world and the interactive input state.
type Director struct {
	world   *ecs.World
	mapper  *ecs.Map3[Emitter, Anchor, Wander]
	filter  *ecs.Filter3[Emitter, Anchor, Wander]
	noise   opensimplex.Noise
	specs   []config.EmitterConfig
	loop    float64
	time    float64
	lo, hi  float32
	idle    Impulse
	current Impulse
	source  Source

	// Scripted enables the emitters. Interactive input works either way.
	Scripted bool

	drag Drag
	jet  bool
	jetF float32
	jetD float32
}

// NewDirector builds a director from the scenario and impulse config sections.
func NewDirector(sc config.ScenarioConfig, im config.ImpulseConfig) *Director {
	world := ecs.NewWorld()
	d := &Director{
		world:    world,
		mapper:   ecs.NewMap3[Emitter, Anchor, Wander](world),
		filter:   ecs.NewFilter3[Emitter, Anchor, Wander](world),
		noise:    opensimplex.New(sc.Seed),
		specs:    sc.Emitters,
		loop:     sc.Loop,
		lo:       float32(im.LocationMin),
		hi:       float32(im.LocationMax),
		Scripted: true,
		drag: Drag{
			ForceScale:  float32(im.ForceScale),
			MinStrength: float32(im.MinStrength),
			Density:     float32(im.Density),
			Min:         float32(im.LocationMin),
			Max:         float32(im.LocationMax),
		},
		jetF: float32(im.JetForce),
		jetD: float32(im.Density),
	}
	d.idle = Impulse{Location: vec3(im.Location)}
	d.current = d.idle
	d.spawnAll()
	return d
}

func vec3(a [3]float64) fluid.Vec3 {
	return fluid.Vec3{float32(a[0]), float32(a[1]), float32(a[2])}
}

func (d *Director) spawnAll() {
	for i, spec := range d.specs {
		d.Spawn(spec, float64(i)*17.3)
	}
}

// Spawn adds one emitter entity. phase offsets its wander noise.
func (d *Director) Spawn(spec config.EmitterConfig, phase float64) ecs.Entity {
	em := Emitter{
		Name:     spec.Name,
		Start:    spec.Start,
		Duration: spec.Duration,
		Force:    vec3(spec.Force),
		Density:  float32(spec.Density),
	}
	anchor := Anchor{Location: vec3(spec.Location)}
	wander := Wander{Amplitude: float32(spec.Wander), Hz: float32(spec.WanderHz), Phase: phase}
	return d.mapper.NewEntity(&em, &anchor, &wander)
}

// Step advances scenario time and returns the impulse for this frame.
func (d *Director) Step(dt float32) Impulse {
	d.time += float64(dt)

	switch {
	case d.jet:
		d.current = Impulse{
			Force:    fluid.Vec4{0, -d.jetF, 0, d.jetD},
			Location: d.idle.Location,
		}
		d.source = SourceJet
	case d.drag.active && d.drag.hasImpulse:
		d.current = d.drag.impulse
		d.source = SourceDrag
	case d.drag.active:
		d.current = d.idle
		d.source = SourceIdle
	default:
		d.current, d.source = d.idle, SourceIdle
		if d.Scripted {
			if im, ok := d.scripted(); ok {
				d.current, d.source = im, SourceEmitter
			}
		}
	}
	return d.current
}

// scripted picks the most recently started active emitter.
func (d *Director) scripted() (Impulse, bool) {
	t := d.time
	if d.loop > 0 {
		t = math.Mod(t, d.loop)
	}

	var (
		best      Impulse
		bestStart = math.Inf(-1)
		found     bool
		expired   []ecs.Entity
	)
	query := d.filter.Query()
	for query.Next() {
		em, anchor, wander := query.Get()
		if em.Duration > 0 && t >= em.Start+em.Duration {
			if d.loop <= 0 {
				expired = append(expired, query.Entity())
			}
			continue
		}
		if t < em.Start || em.Start <= bestStart {
			continue
		}
		bestStart = em.Start
		found = true
		best = Impulse{
			Force:    em.Force.Vec4(em.Density),
			Location: d.wander(anchor.Location, wander, t-em.Start),
		}
	}

	// Remove outside the query; the world is locked while iterating.
	for _, e := range expired {
		d.mapper.Remove(e)
	}
	return best, found
}

func (d *Director) wander(loc fluid.Vec3, w *Wander, t float64) fluid.Vec3 {
	if w.Amplitude > 0 {
		s := t * float64(w.Hz)
		a := w.Amplitude
		loc = loc.Add(fluid.Vec3{
			a * float32(d.noise.Eval3(s, w.Phase, 0)),
			a * float32(d.noise.Eval3(s, w.Phase, 31.7)),
			a * float32(d.noise.Eval3(s, w.Phase, 63.1)),
		})
	}
	return clampVec(loc, d.lo, d.hi)
}

func clampVec(v fluid.Vec3, lo, hi float32) fluid.Vec3 {
	for i := range v {
		v[i] = min(max(v[i], lo), hi)
	}
	return v
}

// Drag feeds a left-button drag position in volume-local coordinates.
// pressed=false ends the drag and returns the director to idle.
func (d *Director) Drag(local fluid.Vec3, pressed bool) {
	if pressed {
		d.drag.Move(local)
	} else {
		d.drag.Release()
	}
}

// Jet holds or releases the vertical jet.
func (d *Director) Jet(on bool) { d.jet = on }

// Reset rewinds time, respawns every configured emitter and drops input state.
func (d *Director) Reset() {
	var all []ecs.Entity
	query := d.filter.Query()
	for query.Next() {
		all = append(all, query.Entity())
	}
	for _, e := range all {
		d.mapper.Remove(e)
	}
	d.time = 0
	d.jet = false
	d.drag.Release()
	d.current, d.source = d.idle, SourceIdle
	d.spawnAll()
}

// Active returns the number of emitter entities still alive.
func (d *Director) Active() int {
	n := 0
	query := d.filter.Query()
	for query.Next() {
		n++
	}
	return n
}

// Time returns elapsed scenario time in seconds.
func (d *Director) Time() float64 { return d.time }

// Current returns the impulse chosen by the last Step.
func (d *Director) Current() Impulse { return d.current }

// Source returns where the last impulse came from.
func (d *Director) Source() Source { return d.source }

// Idle returns the impulse used when nothing is driving the fluid.
func (d *Director) Idle() Impulse { return d.idle }
