package fluid

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAlreadyInitialized is returned by a second call to Init.
var ErrAlreadyInitialized = errors.New("fluid: simulator already initialized")

// Phase names reported to a PhaseTimer.
const (
	PhaseAdvect     = "advect"
	PhaseDiffuse    = "diffuse"
	PhaseImpulse    = "impulse"
	PhaseDivergence = "divergence"
	PhasePressure   = "pressure"
	PhaseProject    = "project"
)

// PhaseTimer receives a call at the start of each solver phase.
type PhaseTimer interface {
	StartPhase(phase string)
}

// PressureStrategy selects what the pressure solve starts from each step.
type PressureStrategy int

const (
	// PressureReuse warm-starts from the previous step's pressure.
	PressureReuse PressureStrategy = iota
	// PressureClear starts every solve from zero.
	PressureClear
	// PressureAdvect carries pressure along the projected velocity after
	// each step, so the next solve starts from a transported guess.
	PressureAdvect
)

// ParsePressureStrategy maps a config name to a strategy.
func ParsePressureStrategy(name string) (PressureStrategy, error) {
	switch name {
	case "", "reuse":
		return PressureReuse, nil
	case "clear":
		return PressureClear, nil
	case "advect":
		return PressureAdvect, nil
	}
	return 0, fmt.Errorf("fluid: unknown pressure strategy %q", name)
}

func (s PressureStrategy) String() string {
	switch s {
	case PressureReuse:
		return "reuse"
	case PressureClear:
		return "clear"
	case PressureAdvect:
		return "advect"
	}
	return fmt.Sprintf("PressureStrategy(%d)", int(s))
}

// Options configure a Simulator. Zero values select defaults.
type Options struct {
	Decay               float32 // density multiplier per step (default 0.996)
	Viscosity           float32 // cells^2 per second (default 0.5)
	PressureIterations  int     // Jacobi sweeps for pressure (default 32, -1 for none)
	RestDensity         float32 // divides the pressure gradient (default 1)
	ImpulseRadius       float32 // normalized Gaussian radius (default 0.032)
	ScaleDensityByForce bool
	PressureStrategy    PressureStrategy
	Workers             int // 0 = GOMAXPROCS
	Pool                *Pool
	Logger              *slog.Logger
}

// DefaultOptions returns the stock solver parameters.
func DefaultOptions() Options {
	return Options{
		Decay:              0.996,
		Viscosity:          0.5,
		PressureIterations: 32,
		RestDensity:        1,
		ImpulseRadius:      0.032,
	}
}

func (o *Options) applyDefaults() {
	d := DefaultOptions()
	if o.Decay == 0 {
		o.Decay = d.Decay
	}
	if o.Viscosity == 0 {
		o.Viscosity = d.Viscosity
	}
	if o.PressureIterations == 0 {
		o.PressureIterations = d.PressureIterations
	} else if o.PressureIterations < 0 {
		o.PressureIterations = 0
	}
	if o.RestDensity == 0 {
		o.RestDensity = d.RestDensity
	}
	if o.ImpulseRadius == 0 {
		o.ImpulseRadius = d.ImpulseRadius
	}
	if o.Logger == nil {
		o.Logger = newNopLogger()
	}
}

// Simulator owns every field of one smoke volume and advances it in time.
// It is not safe for concurrent use; passes inside a step run on the pool.
type Simulator struct {
	opts    Options
	grid    Grid
	pool    *Pool
	ownPool bool
	log     *slog.Logger
	timer   PhaseTimer

	velocity *DoubleBuffer[Vec3]
	density  *DoubleBuffer[float32]
	diffuse  *Relaxation[Vec3]
	pressure *Relaxation[float32]

	ready bool
	steps int64
	time  float64
}

// New creates an uninitialized simulator.
func New(opts Options) *Simulator {
	opts.applyDefaults()
	return &Simulator{opts: opts, log: opts.Logger}
}

// NewSimulator creates and initializes a simulator in one call.
func NewSimulator(w, h, d int, opts Options) (*Simulator, error) {
	s := New(opts)
	if err := s.Init(w, h, d); err != nil {
		return nil, err
	}
	return s, nil
}

// Init allocates all fields for a w x h x d grid. It may be called once.
func (s *Simulator) Init(w, h, d int) error {
	if s.ready {
		return ErrAlreadyInitialized
	}
	g, err := NewGrid(w, h, d)
	if err != nil {
		return err
	}

	s.grid = g
	s.velocity = NewDoubleBuffer[Vec3](g)
	s.density = NewDoubleBuffer[float32](g)
	s.diffuse = NewVectorRelaxation(g, s.velocity)
	s.pressure = NewScalarRelaxation(g)

	s.pool = s.opts.Pool
	if s.pool == nil {
		s.pool = NewPool(s.opts.Workers)
		s.ownPool = true
	}
	s.ready = true

	s.log.Info("simulator initialized",
		"grid", fmt.Sprintf("%dx%dx%d", w, h, d),
		"cells", g.Len(),
		"workers", s.pool.Workers(),
		"pressure_iterations", s.opts.PressureIterations,
		"pressure_strategy", s.opts.PressureStrategy.String(),
	)
	return nil
}

// SetPhaseTimer installs a timer notified at each phase boundary. Nil disables it.
func (s *Simulator) SetPhaseTimer(t PhaseTimer) { s.timer = t }

// Options returns the effective options.
func (s *Simulator) Options() Options { return s.opts }

// SetPressureIterations changes the pressure sweep count for later steps.
func (s *Simulator) SetPressureIterations(n int) {
	if n < 0 {
		n = 0
	}
	s.opts.PressureIterations = n
}

// SetViscosity changes the diffusion viscosity for later steps.
func (s *Simulator) SetViscosity(nu float32) { s.opts.Viscosity = nu }

func (s *Simulator) phase(name string) {
	if s.timer != nil {
		s.timer.StartPhase(name)
	}
}

func (s *Simulator) mustReady() {
	if !s.ready {
		panic("fluid: Simulator used before Init()")
	}
}

// Simulate advances one step: advect, diffuse, impulse, project.
// force.xyz is the impulse direction times strength and force.w the density
// magnitude; loc is the normalized impulse center. viscosityIterations of
// zero skips diffusion.
func (s *Simulator) Simulate(dt float32, force Vec4, loc Vec3, viscosityIterations int) {
	s.mustReady()

	s.phase(PhaseAdvect)
	Advect(s.pool, dt, s.opts.Decay,
		s.velocity.Read(), s.density.Read(),
		s.velocity.Write(), s.density.Write())
	s.velocity.Swap()
	s.density.Swap()

	if viscosityIterations > 0 {
		if c := DiffusionCoefficients(s.opts.Viscosity, dt); c.Beta != 0 {
			s.phase(PhaseDiffuse)
			s.diffuse.LoadKnown(s.pool, s.velocity.Read())
			s.diffuse.Solve(s.pool, c, viscosityIterations)
		}
	}

	if force != (Vec4{}) {
		s.phase(PhaseImpulse)
		im := Impulse{
			Force:        force,
			Location:     loc,
			Radius:       s.opts.ImpulseRadius,
			ScaleDensity: s.opts.ScaleDensityByForce,
		}
		ApplyImpulse(s.pool, dt, im,
			s.velocity.Read(), s.density.Read(),
			s.velocity.Write(), s.density.Write())
		s.velocity.Swap()
		s.density.Swap()
	}

	s.project(dt)

	s.steps++
	s.time += float64(dt)
	s.log.Debug("step", "n", s.steps, "dt", dt, "visc_iterations", viscosityIterations)
}

// project removes the divergent part of the velocity field.
func (s *Simulator) project(dt float32) {
	s.phase(PhaseDivergence)
	Divergence(s.pool, s.velocity.Read(), s.pressure.Known.RW())

	s.phase(PhasePressure)
	if s.opts.PressureStrategy == PressureClear {
		Clear(s.pool, s.pressure.Unknown.Current().RW())
	}
	s.pressure.Solve(s.pool, PressureCoefficients, s.opts.PressureIterations)

	s.phase(PhaseProject)
	s.bound()
	SubtractGradient(s.pool, s.opts.RestDensity,
		s.velocity.Read(), s.pressure.Unknown.Read(), s.velocity.Write())
	s.velocity.Swap()
	s.bound()

	if s.opts.PressureStrategy == PressureAdvect {
		AdvectScalar(s.pool, dt, s.velocity.Read(),
			s.pressure.Unknown.Read(), s.pressure.Unknown.Write())
		s.pressure.Unknown.Swap()
	}
}

func (s *Simulator) bound() {
	EnforceBoundary(s.pool, s.velocity.Read(), s.velocity.Write())
	s.velocity.Swap()
}

// Reset zeroes every field without reallocating.
func (s *Simulator) Reset() {
	s.mustReady()
	s.velocity.Reset()
	s.density.Reset()
	s.pressure.Unknown.Reset()
	Clear(s.pool, s.pressure.Known.RW())
	Clear(s.pool, s.diffuse.Known.RW())
	s.steps = 0
	s.time = 0
}

// Restore overwrites density and velocity with saved cell data and sets the
// simulated time. Pressure restarts from zero.
func (s *Simulator) Restore(density []float32, velocity []Vec3, time float64) error {
	s.mustReady()
	n := s.grid.Len()
	if len(density) != n || len(velocity) != n {
		return fmt.Errorf("restore: got %d density and %d velocity cells, grid has %d",
			len(density), len(velocity), n)
	}
	s.Reset()
	copy(s.density.Current().Data(), density)
	copy(s.velocity.Current().Data(), velocity)
	s.time = time
	return nil
}

// Grid returns the lattice shape.
func (s *Simulator) Grid() Grid { return s.grid }

// Pool returns the worker pool so renderers can share it.
func (s *Simulator) Pool() *Pool { return s.pool }

// Density returns the current density field.
func (s *Simulator) Density() View[float32] { s.mustReady(); return s.density.Read() }

// Velocity returns the current velocity field.
func (s *Simulator) Velocity() View[Vec3] { s.mustReady(); return s.velocity.Read() }

// Pressure returns the latest pressure solution.
func (s *Simulator) Pressure() View[float32] { s.mustReady(); return s.pressure.Unknown.Read() }

// DensityField returns the current density buffer for bulk initialization.
// Writes are visible to the next step.
func (s *Simulator) DensityField() *Field[float32] { s.mustReady(); return s.density.Current() }

// VelocityField returns the current velocity buffer for bulk initialization.
func (s *Simulator) VelocityField() *Field[Vec3] { s.mustReady(); return s.velocity.Current() }

// Steps returns the number of completed steps.
func (s *Simulator) Steps() int64 { return s.steps }

// Time returns the accumulated simulated seconds.
func (s *Simulator) Time() float64 { return s.time }

// Close stops the worker pool if the simulator created it.
func (s *Simulator) Close() {
	if s.ownPool && s.pool != nil {
		s.pool.Close()
	}
}
