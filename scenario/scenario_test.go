package scenario

import (
	"math"
	"testing"

	"github.com/pthm-cable/smoke/config"
	"github.com/pthm-cable/smoke/fluid"
)

func testImpulseConfig() config.ImpulseConfig {
	return config.ImpulseConfig{
		Radius:      0.032,
		Location:    [3]float64{0.5, 0.9, 0.5},
		ForceScale:  2000,
		MinStrength: 300,
		Density:     0.25,
		JetForce:    300,
		LocationMin: 0.1,
		LocationMax: 0.9,
	}
}

func twoEmitters(loop float64) config.ScenarioConfig {
	return config.ScenarioConfig{
		Seed: 1,
		Loop: loop,
		Emitters: []config.EmitterConfig{
			{Name: "a", Start: 0, Duration: 2, Location: [3]float64{0.3, 0.5, 0.5}, Force: [3]float64{0, -100, 0}, Density: 0.5},
			{Name: "b", Start: 1, Duration: 2, Location: [3]float64{0.7, 0.5, 0.5}, Force: [3]float64{100, 0, 0}, Density: 0.2},
		},
	}
}

func TestDirectorIdleWithoutEmitters(t *testing.T) {
	d := NewDirector(config.ScenarioConfig{}, testImpulseConfig())
	im := d.Step(0.1)
	if im.Force != (fluid.Vec4{}) {
		t.Errorf("idle force = %v, want zero", im.Force)
	}
	if im.Location != (fluid.Vec3{0.5, 0.9, 0.5}) {
		t.Errorf("idle location = %v", im.Location)
	}
	if d.Source() != SourceIdle {
		t.Errorf("source = %v, want idle", d.Source())
	}
}

func TestDirectorLatestStartedWins(t *testing.T) {
	d := NewDirector(twoEmitters(0), testImpulseConfig())

	tests := []struct {
		dt       float32
		wantName string
		force    fluid.Vec4
	}{
		{0.5, "a", fluid.Vec4{0, -100, 0, 0.5}},
		{1.0, "b", fluid.Vec4{100, 0, 0, 0.2}}, // t=1.5, both active
		{1.0, "b", fluid.Vec4{100, 0, 0, 0.2}}, // t=2.5, a expired
		{1.0, "", fluid.Vec4{}},                // t=3.5, both expired
	}
	for i, tt := range tests {
		im := d.Step(tt.dt)
		if im.Force != tt.force {
			t.Errorf("step %d: force = %v, want %v", i, im.Force, tt.force)
		}
	}
	if d.Active() != 0 {
		t.Errorf("Active() = %d, want expired emitters removed", d.Active())
	}
}

func TestDirectorLoopKeepsEmitters(t *testing.T) {
	d := NewDirector(twoEmitters(4), testImpulseConfig())
	for i := 0; i < 10; i++ {
		d.Step(0.5)
	}
	if d.Active() != 2 {
		t.Fatalf("Active() = %d, want 2 while looping", d.Active())
	}
	// t=5.25 wraps to 1.25: emitter b.
	d.Step(0.25)
	if d.Source() != SourceEmitter || d.Current().Force[0] != 100 {
		t.Errorf("after wrap: source %v force %v", d.Source(), d.Current().Force)
	}
}

func TestDirectorWanderStaysInBounds(t *testing.T) {
	sc := config.ScenarioConfig{
		Seed: 3,
		Emitters: []config.EmitterConfig{
			{Name: "w", Location: [3]float64{0.85, 0.15, 0.5}, Force: [3]float64{0, 1, 0}, Density: 1, Wander: 0.5, WanderHz: 2},
		},
	}
	d := NewDirector(sc, testImpulseConfig())
	moved := false
	first := d.Step(0.01).Location
	for i := 0; i < 200; i++ {
		loc := d.Step(0.05).Location
		for a := 0; a < 3; a++ {
			if loc[a] < 0.1 || loc[a] > 0.9 {
				t.Fatalf("location %v outside [0.1, 0.9]", loc)
			}
		}
		if loc != first {
			moved = true
		}
	}
	if !moved {
		t.Error("wander never moved the emitter")
	}
}

func TestDirectorWanderDeterministic(t *testing.T) {
	sc := twoEmitters(0)
	sc.Emitters[0].Wander = 0.1
	sc.Emitters[0].WanderHz = 1
	a := NewDirector(sc, testImpulseConfig())
	b := NewDirector(sc, testImpulseConfig())
	for i := 0; i < 20; i++ {
		if x, y := a.Step(0.05), b.Step(0.05); x != y {
			t.Fatalf("step %d: %v != %v", i, x, y)
		}
	}
}

func TestDirectorScriptedToggle(t *testing.T) {
	d := NewDirector(twoEmitters(0), testImpulseConfig())
	d.Scripted = false
	if im := d.Step(0.5); im.Force != (fluid.Vec4{}) {
		t.Errorf("force = %v with scripting off", im.Force)
	}
}

func TestDirectorJetOverrides(t *testing.T) {
	d := NewDirector(twoEmitters(0), testImpulseConfig())
	d.Jet(true)
	im := d.Step(0.1)
	want := fluid.Vec4{0, -300, 0, 0.25}
	if im.Force != want {
		t.Errorf("jet force = %v, want %v", im.Force, want)
	}
	if d.Source() != SourceJet {
		t.Errorf("source = %v", d.Source())
	}
	d.Jet(false)
	d.Step(0.1)
	if d.Source() != SourceEmitter {
		t.Errorf("after release source = %v, want emitter", d.Source())
	}
}

func TestDragFirstSampleOnlySetsReference(t *testing.T) {
	d := NewDirector(config.ScenarioConfig{}, testImpulseConfig())
	d.Drag(fluid.Vec3{0, 0, 0}, true)
	if im := d.Step(0.1); im.Force != (fluid.Vec4{}) {
		t.Errorf("first drag sample produced force %v", im.Force)
	}
}

func TestDragForceAndLocation(t *testing.T) {
	d := NewDirector(config.ScenarioConfig{}, testImpulseConfig())
	d.Drag(fluid.Vec3{0.2, 0, 0}, true)
	d.Drag(fluid.Vec3{0.3, 0, 0}, true) // 0.1 * 2000 = 200, floored to 300
	im := d.Step(0.1)

	if math.Abs(float64(im.Force[0]-300)) > 1e-3 || im.Force[1] != 0 || im.Force[2] != 0 {
		t.Errorf("force = %v, want (300, 0, 0)", im.Force)
	}
	if im.Force[3] != 0.25 {
		t.Errorf("density = %v, want 0.25", im.Force[3])
	}
	// Location uses the previous sample: 0.2*0.5+0.5 = 0.6.
	if math.Abs(float64(im.Location[0]-0.6)) > 1e-6 || im.Location[1] != 0.5 {
		t.Errorf("location = %v", im.Location)
	}

	// Large strokes keep their magnitude.
	d.Drag(fluid.Vec3{0.3, -0.5, 0}, true)
	im = d.Step(0.1)
	if math.Abs(float64(im.Force[1]+1000)) > 1e-2 {
		t.Errorf("force = %v, want y=-1000", im.Force)
	}
}

func TestDragClampsLocation(t *testing.T) {
	d := NewDirector(config.ScenarioConfig{}, testImpulseConfig())
	d.Drag(fluid.Vec3{-1, 1, 0}, true)
	d.Drag(fluid.Vec3{-0.9, 1, 0}, true)
	im := d.Step(0.1)
	if im.Location[0] != 0.1 || im.Location[1] != 0.9 {
		t.Errorf("location = %v, want clamped to [0.1, 0.9]", im.Location)
	}
}

func TestDragStationaryKeepsImpulse(t *testing.T) {
	var g Drag
	g.ForceScale, g.MinStrength, g.Density, g.Min, g.Max = 2000, 300, 0.25, 0.1, 0.9
	g.Move(fluid.Vec3{0, 0, 0})
	g.Move(fluid.Vec3{0, 0.5, 0})
	before, ok := g.Impulse()
	if !ok {
		t.Fatal("no impulse after movement")
	}
	g.Move(fluid.Vec3{0, 0.5, 0})
	after, _ := g.Impulse()
	if before != after {
		t.Errorf("stationary sample changed impulse: %v -> %v", before, after)
	}
}

func TestDragReleaseReturnsToIdle(t *testing.T) {
	d := NewDirector(config.ScenarioConfig{}, testImpulseConfig())
	d.Drag(fluid.Vec3{0, 0, 0}, true)
	d.Drag(fluid.Vec3{0.5, 0, 0}, true)
	d.Step(0.1)
	d.Drag(fluid.Vec3{}, false)
	im := d.Step(0.1)
	if im != d.Idle() {
		t.Errorf("after release = %v, want idle %v", im, d.Idle())
	}
}

func TestDirectorReset(t *testing.T) {
	d := NewDirector(twoEmitters(0), testImpulseConfig())
	for i := 0; i < 10; i++ {
		d.Step(1)
	}
	if d.Active() != 0 {
		t.Fatalf("Active() = %d before reset", d.Active())
	}
	d.Jet(true)
	d.Reset()
	if d.Active() != 2 || d.Time() != 0 {
		t.Errorf("after reset: active %d time %v", d.Active(), d.Time())
	}
	if d.Step(0.1); d.Source() != SourceEmitter {
		t.Errorf("source = %v after reset, want emitter", d.Source())
	}
}
