// Package app wires the simulator, renderer, camera, scenario and telemetry
// into a frame loop shared by the headless runner and the viewer.
package app

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/smoke/camera"
	"github.com/pthm-cable/smoke/config"
	"github.com/pthm-cable/smoke/fluid"
	"github.com/pthm-cable/smoke/frames"
	"github.com/pthm-cable/smoke/renderer"
	"github.com/pthm-cable/smoke/scenario"
	"github.com/pthm-cable/smoke/stream"
	"github.com/pthm-cable/smoke/telemetry"
)

// Options holds app configuration beyond the config file.
type Options struct {
	OutputDir    string       // CSV logs and config snapshot (empty = disabled)
	FramesDir    string       // numbered PNG frames (empty = disabled)
	Snapshot     string       // field snapshot to start from (empty = empty volume)
	Hub          *stream.Hub  // websocket frame broadcast (nil = disabled)
	LogStats     bool         // log field and perf stats via slog
	AlwaysRender bool         // render every frame even without frame consumers
	Logger       *slog.Logger // nil = slog.Default()
}

// App holds the complete runtime state of one smoke volume.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	sim      *fluid.Simulator
	renderer *renderer.Renderer
	camera   *camera.Camera
	director *scenario.Director
	light    renderer.Light
	img      *image.RGBA

	// Telemetry
	perf      *telemetry.PerfCollector
	output    *telemetry.OutputManager
	scratch   telemetry.StatsScratch
	last      telemetry.FieldStats
	bookmarks *telemetry.BookmarkDetector

	frames       *frames.Writer
	hub          *stream.Hub
	logStats     bool
	alwaysRender bool

	// State
	frame    int64
	viscous  bool
	paused   bool
	rendered bool
}

// New builds an app from cfg.
func New(cfg *config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	simOpts, err := SimulatorOptions(cfg)
	if err != nil {
		return nil, err
	}
	simOpts.Logger = logger
	sim, err := fluid.NewSimulator(cfg.Grid.Width, cfg.Grid.Height, cfg.Grid.Depth, simOpts)
	if err != nil {
		return nil, fmt.Errorf("creating simulator: %w", err)
	}
	sim.SetViscosity(float32(cfg.Simulation.Viscosity))

	renderOpts, err := RendererOptions(cfg)
	if err != nil {
		sim.Close()
		return nil, err
	}

	output, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		sim.Close()
		return nil, err
	}
	if err := output.WriteConfig(cfg); err != nil {
		sim.Close()
		output.Close()
		return nil, fmt.Errorf("writing config snapshot: %w", err)
	}

	fw, err := frames.NewWriter(opts.FramesDir, 1)
	if err != nil {
		sim.Close()
		output.Close()
		return nil, err
	}

	a := &App{
		cfg:          cfg,
		logger:       logger,
		sim:          sim,
		renderer:     renderer.New(renderOpts, sim.Pool()),
		camera:       camera.New(float32(cfg.Render.Width), float32(cfg.Render.Height), CameraParams(cfg)),
		director:     scenario.NewDirector(cfg.Scenario, cfg.Impulse),
		light:        LightFromConfig(cfg),
		img:          image.NewRGBA(image.Rect(0, 0, cfg.Render.Width, cfg.Render.Height)),
		perf:         telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow),
		bookmarks:    telemetry.NewBookmarkDetector(cfg.Telemetry.BookmarkHistory),
		output:       output,
		frames:       fw,
		hub:          opts.Hub,
		logStats:     opts.LogStats,
		alwaysRender: opts.AlwaysRender,
		viscous:      cfg.Simulation.Viscous,
	}
	sim.SetPhaseTimer(a.perf)

	if opts.Snapshot != "" {
		if err := a.restore(opts.Snapshot); err != nil {
			a.Close()
			return nil, err
		}
	}

	logger.Info("smoke initialized",
		"grid", fmt.Sprintf("%dx%dx%d", cfg.Grid.Width, cfg.Grid.Height, cfg.Grid.Depth),
		"render", fmt.Sprintf("%dx%d", cfg.Render.Width, cfg.Render.Height),
		"workers", sim.Pool().Workers(),
		"pressure_strategy", simOpts.PressureStrategy.String(),
		"light_model", cfg.Render.LightModel,
	)
	return a, nil
}

// SimulatorOptions maps the simulation and impulse sections onto solver options.
func SimulatorOptions(cfg *config.Config) (fluid.Options, error) {
	strategy, err := fluid.ParsePressureStrategy(cfg.Simulation.PressureStrategy)
	if err != nil {
		return fluid.Options{}, err
	}
	iters := cfg.Simulation.PressureIterations
	if iters == 0 {
		iters = -1
	}
	return fluid.Options{
		Decay:               float32(cfg.Simulation.Decay),
		Viscosity:           float32(cfg.Simulation.Viscosity),
		PressureIterations:  iters,
		RestDensity:         float32(cfg.Simulation.RestDensity),
		ImpulseRadius:       float32(cfg.Impulse.Radius),
		ScaleDensityByForce: cfg.Impulse.ScaleDensityByForce,
		PressureStrategy:    strategy,
		Workers:             cfg.Parallel.Workers,
	}, nil
}

// RendererOptions maps the render section onto marcher options.
func RendererOptions(cfg *config.Config) (renderer.Options, error) {
	model, err := renderer.ParseLightModel(cfg.Render.LightModel)
	if err != nil {
		return renderer.Options{}, err
	}
	r := cfg.Render
	return renderer.Options{
		Samples:       r.Samples,
		LightSamples:  r.LightSamples,
		Absorption:    float32(r.Absorption),
		ZeroThreshold: float32(r.ZeroThreshold),
		MaxDensity:    float32(r.MaxDensity),
		Background:    vec3(r.Background),
		LightModel:    model,
		ClearMissed:   r.ClearMissed,
	}, nil
}

// CameraParams maps the camera section onto orbit camera parameters.
func CameraParams(cfg *config.Config) camera.Params {
	c := cfg.Camera
	return camera.Params{
		FOV:         cfg.Derived.FOVRadians,
		Near:        float32(c.Near),
		Far:         float32(c.Far),
		Distance:    float32(c.Distance),
		MinDistance: float32(c.MinDistance),
		MaxDistance: float32(c.MaxDistance),
		Yaw:         cfg.Derived.YawRadians,
		Pitch:       cfg.Derived.PitchRadians,
		WorldScale:  float32(c.WorldScale),
		LightPos:    vec3(c.LightPosition),
	}
}

// LightFromConfig scales the configured colors by their intensities.
func LightFromConfig(cfg *config.Config) renderer.Light {
	scaled := func(c [4]float64) mgl32.Vec3 {
		return mgl32.Vec3{float32(c[0]), float32(c[1]), float32(c[2])}.Mul(float32(c[3]))
	}
	return renderer.Light{
		Directional: scaled(cfg.Render.Directional),
		Ambient:     scaled(cfg.Render.Ambient),
	}
}

func vec3(a [3]float64) mgl32.Vec3 {
	return mgl32.Vec3{float32(a[0]), float32(a[1]), float32(a[2])}
}

// ClampDT bounds a frame's elapsed time to [lo, hi]. hi <= 0 leaves it
// unbounded above.
func ClampDT(elapsed, lo, hi float32) float32 {
	dt := max(elapsed, lo)
	if hi > 0 {
		dt = min(dt, hi)
	}
	return dt
}

// Step advances the scenario and the simulation by one frame and returns
// the dt used.
func (a *App) Step(elapsed float32) float32 {
	dt := ClampDT(elapsed, a.cfg.Derived.MinDT32, a.cfg.Derived.MaxDT32)

	a.perf.StartPhase(telemetry.PhaseScenario)
	im := a.director.Step(dt)

	iters := 0
	if a.viscous {
		iters = a.cfg.Simulation.ViscosityIterations
	}
	a.sim.Simulate(dt, im.Force, im.Location, iters)
	a.frame++
	return dt
}

// Update runs one full frame: pending controls, simulation, rendering when
// something consumes the image, and telemetry.
func (a *App) Update(elapsed float32) error {
	a.drainControls()

	a.perf.StartTick()
	if !a.paused {
		a.Step(elapsed)
	}
	a.rendered = false
	if a.needsImage() {
		a.RenderFrame()
	}
	err := a.emit()
	a.perf.EndTick()
	return err
}

// UpdateHeadless runs one frame at the fixed minimum dt.
func (a *App) UpdateHeadless() error {
	return a.Update(a.cfg.Derived.MinDT32)
}

func (a *App) needsImage() bool {
	if a.alwaysRender || a.frames != nil {
		return true
	}
	return a.streaming() && a.frame%int64(a.cfg.Stream.Interval) == 0
}

func (a *App) streaming() bool {
	return a.hub != nil && a.hub.Clients() > 0
}

// RenderFrame ray-marches the current density into the app's image.
func (a *App) RenderFrame() *image.RGBA {
	a.perf.StartPhase(telemetry.PhaseRender)
	a.renderer.Render(a.img, a.sim.Density(), a.light, a.camera.RenderCamera())
	a.rendered = true
	return a.img
}

// emit writes frames, streams and stats for the current frame.
func (a *App) emit() error {
	a.perf.StartPhase(telemetry.PhaseOutput)

	if a.rendered && !a.paused {
		if _, err := a.frames.Write(a.img); err != nil {
			return err
		}
	}
	if a.rendered && a.streaming() && a.frame%int64(a.cfg.Stream.Interval) == 0 {
		data, err := frames.Encode(a.img, a.cfg.Stream.Scale)
		if err != nil {
			return err
		}
		a.hub.Broadcast(data)
	}

	interval := int64(a.cfg.Telemetry.StatsInterval)
	if interval <= 0 || a.paused || a.frame%interval != 0 {
		return nil
	}
	a.last = a.FieldStats()
	perf := a.perf.Stats()
	if a.logStats {
		a.logger.Info("fields", "stats", a.last)
		a.logger.Info("perf", "stats", perf)
	}
	if a.hub != nil {
		a.hub.BroadcastJSON(a.last)
	}
	if err := a.output.WriteFieldStats(a.last); err != nil {
		return err
	}
	if err := a.output.WritePerf(perf, a.frame); err != nil {
		return err
	}
	for _, b := range a.bookmarks.Check(a.last) {
		if err := a.bookmark(b); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) bookmark(b telemetry.Bookmark) error {
	b.LogBookmark(a.logger)
	if a.hub != nil {
		a.hub.BroadcastJSON(b)
	}
	if err := a.output.WriteBookmark(b); err != nil {
		return err
	}
	if !a.cfg.Telemetry.SnapshotOnBookmark {
		return nil
	}
	snap := telemetry.CaptureSnapshot(a.sim, a.frame)
	snap.Bookmark = &b
	_, err := a.output.WriteSnapshot(snap)
	return err
}

// SaveSnapshot writes the current fields to the output directory and
// returns the file path. It returns "" when output is disabled.
func (a *App) SaveSnapshot() (string, error) {
	path, err := a.output.WriteSnapshot(telemetry.CaptureSnapshot(a.sim, a.frame))
	if err == nil && path != "" {
		a.logger.Info("snapshot saved", "path", path, "frame", a.frame)
	}
	return path, err
}

func (a *App) restore(path string) error {
	snap, err := telemetry.LoadSnapshot(path)
	if err != nil {
		return err
	}
	if err := snap.Apply(a.sim); err != nil {
		return fmt.Errorf("restoring %s: %w", path, err)
	}
	a.frame = snap.Frame
	a.logger.Info("snapshot restored", "path", path, "frame", snap.Frame, "sim_time", snap.SimTime)
	return nil
}

// FieldStats samples the current fields.
func (a *App) FieldStats() telemetry.FieldStats {
	s := telemetry.ComputeFieldStats(a.sim.Density(), a.sim.Velocity(),
		float32(a.cfg.Render.ZeroThreshold), &a.scratch)
	s.Frame = a.frame
	s.SimTime = a.sim.Time()
	return s
}

func (a *App) drainControls() {
	if a.hub == nil {
		return
	}
	for {
		select {
		case c := <-a.hub.Controls():
			a.ApplyControl(c)
		default:
			return
		}
	}
}

// ApplyControl applies a remote control message.
func (a *App) ApplyControl(c stream.Control) {
	if c.Jet != nil {
		a.director.Jet(*c.Jet)
	}
	if c.Viscous != nil {
		a.viscous = *c.Viscous
	}
	if c.Paused != nil {
		a.paused = *c.Paused
	}
	if c.Reset {
		a.Reset()
	}
	a.logger.Debug("control", "viscous", a.viscous, "paused", a.paused, "reset", c.Reset)
}

// Reset clears the fields and rewinds the scenario.
func (a *App) Reset() {
	a.sim.Reset()
	a.director.Reset()
	a.bookmarks.Reset()
}

// ToggleViscous flips diffusion on or off and returns the new state.
func (a *App) ToggleViscous() bool {
	a.viscous = !a.viscous
	return a.viscous
}

// Viscous reports whether diffusion runs each step.
func (a *App) Viscous() bool { return a.viscous }

// SetPaused stops or resumes simulation steps.
func (a *App) SetPaused(p bool) { a.paused = p }

// Paused reports whether steps are suspended.
func (a *App) Paused() bool { return a.paused }

// Frame returns the number of simulation steps taken.
func (a *App) Frame() int64 { return a.frame }

// Image returns the most recently rendered image.
func (a *App) Image() *image.RGBA { return a.img }

// LastStats returns the most recent field stats record.
func (a *App) LastStats() telemetry.FieldStats { return a.last }

// Perf returns the frame timing collector.
func (a *App) Perf() *telemetry.PerfCollector { return a.perf }

// Simulator returns the fluid simulator.
func (a *App) Simulator() *fluid.Simulator { return a.sim }

// Camera returns the orbit camera.
func (a *App) Camera() *camera.Camera { return a.camera }

// Director returns the impulse director.
func (a *App) Director() *scenario.Director { return a.director }

// Renderer returns the ray marcher.
func (a *App) Renderer() *renderer.Renderer { return a.renderer }

// Config returns the configuration the app was built from.
func (a *App) Config() *config.Config { return a.cfg }

// Close releases the worker pool and flushes output files.
func (a *App) Close() error {
	a.sim.Close()
	return a.output.Close()
}
