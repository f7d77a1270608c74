// Package config provides configuration loading and access for the smoke simulator.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulator configuration parameters.
type Config struct {
	Screen     ScreenConfig     `yaml:"screen"`
	Grid       GridConfig       `yaml:"grid"`
	Simulation SimulationConfig `yaml:"simulation"`
	Impulse    ImpulseConfig    `yaml:"impulse"`
	Render     RenderConfig     `yaml:"render"`
	Camera     CameraConfig     `yaml:"camera"`
	Parallel   ParallelConfig   `yaml:"parallel"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Stream     StreamConfig     `yaml:"stream"`
	Scenario   ScenarioConfig   `yaml:"scenario"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ScreenConfig holds display settings.
type ScreenConfig struct {
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	TargetFPS int `yaml:"target_fps"`
}

// GridConfig holds the simulation lattice dimensions in cells.
type GridConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	Depth  int `yaml:"depth"`
}

// SimulationConfig holds solver parameters.
type SimulationConfig struct {
	MinDT               float64 `yaml:"min_dt"`               // Frame time floor
	MaxDT               float64 `yaml:"max_dt"`               // Frame time ceiling (0 = unbounded)
	Decay               float64 `yaml:"decay"`                // Density multiplier per advection
	Viscosity           float64 `yaml:"viscosity"`            // Kinematic viscosity in cells^2/s
	ViscosityIterations int     `yaml:"viscosity_iterations"` // Relaxation sweeps when viscous
	Viscous             bool    `yaml:"viscous"`              // Start with diffusion enabled
	PressureIterations  int     `yaml:"pressure_iterations"`
	PressureStrategy    string  `yaml:"pressure_strategy"` // reuse, clear, advect
	RestDensity         float64 `yaml:"rest_density"`
}

// ImpulseConfig holds impulse injection parameters.
type ImpulseConfig struct {
	Radius              float64    `yaml:"radius"`   // Gaussian radius in normalized grid units
	Location            [3]float64 `yaml:"location"` // Idle impulse location
	ScaleDensityByForce bool       `yaml:"scale_density_by_force"`
	ForceScale          float64    `yaml:"force_scale"`  // Mouse drag distance to force
	MinStrength         float64    `yaml:"min_strength"` // Floor for drag force magnitude
	Density             float64    `yaml:"density"`      // Density magnitude for interactive impulses
	JetForce            float64    `yaml:"jet_force"`    // Downward force of the jet key
	LocationMin         float64    `yaml:"location_min"`
	LocationMax         float64    `yaml:"location_max"`
}

// RenderConfig holds ray marcher parameters.
type RenderConfig struct {
	Width         int        `yaml:"width"`
	Height        int        `yaml:"height"`
	Samples       int        `yaml:"samples"`
	LightSamples  int        `yaml:"light_samples"`
	Absorption    float64    `yaml:"absorption"`
	ZeroThreshold float64    `yaml:"zero_threshold"`
	MaxDensity    float64    `yaml:"max_density"`
	LightModel    string     `yaml:"light_model"` // directional, point
	Directional   [4]float64 `yaml:"directional"` // rgb, intensity
	Ambient       [4]float64 `yaml:"ambient"`     // rgb, intensity
	Background    [3]float64 `yaml:"background"`  // display-space color
	ClearMissed   bool       `yaml:"clear_missed"`
}

// CameraConfig holds orbit camera parameters.
type CameraConfig struct {
	FOVDegrees    float64    `yaml:"fov_degrees"`
	Near          float64    `yaml:"near"`
	Far           float64    `yaml:"far"`
	Distance      float64    `yaml:"distance"`
	MinDistance   float64    `yaml:"min_distance"`
	MaxDistance   float64    `yaml:"max_distance"`
	YawDegrees    float64    `yaml:"yaw_degrees"`
	PitchDegrees  float64    `yaml:"pitch_degrees"`
	WorldScale    float64    `yaml:"world_scale"`
	LightPosition [3]float64 `yaml:"light_position"`
	OrbitSpeed    float64    `yaml:"orbit_speed"` // radians per pixel dragged
}

// ParallelConfig holds worker pool settings.
type ParallelConfig struct {
	Workers int `yaml:"workers"` // 0 = GOMAXPROCS
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	PerfCollectorWindow int  `yaml:"perf_collector_window"`
	StatsInterval       int  `yaml:"stats_interval"`       // frames between field stats records
	BookmarkHistory     int  `yaml:"bookmark_history"`     // stats records kept for bookmark detection
	SnapshotOnBookmark  bool `yaml:"snapshot_on_bookmark"` // save field snapshots when a bookmark fires
}

// StreamConfig holds frame streaming parameters.
type StreamConfig struct {
	Interval int `yaml:"interval"` // frames between broadcasts
	Scale    int `yaml:"scale"`    // upscale factor for streamed frames
}

// ScenarioConfig holds scripted emitters.
type ScenarioConfig struct {
	Seed     int64           `yaml:"seed"`
	Loop     float64         `yaml:"loop"` // seconds; 0 = play once
	Emitters []EmitterConfig `yaml:"emitters"`
}

// EmitterConfig describes one timed impulse emitter.
type EmitterConfig struct {
	Name     string     `yaml:"name"`
	Start    float64    `yaml:"start"`
	Duration float64    `yaml:"duration"` // 0 = until the scenario ends
	Location [3]float64 `yaml:"location"`
	Force    [3]float64 `yaml:"force"`
	Density  float64    `yaml:"density"`
	Wander   float64    `yaml:"wander"`    // amplitude of simplex drift in normalized units
	WanderHz float64    `yaml:"wander_hz"` // drift frequency
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	MinDT32      float32
	MaxDT32      float32
	FOVRadians   float32
	YawRadians   float32
	PitchRadians float32
	CellCount    int
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg, err := Defaults()
	if err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Finalize validates c and recomputes derived values. Call it after
// modifying a loaded config in code.
func (c *Config) Finalize() error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	c.computeDerived()
	return nil
}

// Defaults returns the embedded default configuration without validation.
func Defaults() (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	return cfg, nil
}

// Validate reports every configuration error found.
func (c *Config) Validate() error {
	var errs []error
	if c.Grid.Width < 2 || c.Grid.Height < 2 || c.Grid.Depth < 2 {
		errs = append(errs, fmt.Errorf("grid dimensions must be >= 2, got %dx%dx%d",
			c.Grid.Width, c.Grid.Height, c.Grid.Depth))
	}
	if c.Simulation.MinDT <= 0 {
		errs = append(errs, errors.New("simulation.min_dt must be positive"))
	}
	if c.Simulation.MaxDT != 0 && c.Simulation.MaxDT < c.Simulation.MinDT {
		errs = append(errs, errors.New("simulation.max_dt must be >= min_dt"))
	}
	if c.Simulation.PressureIterations < 0 || c.Simulation.ViscosityIterations < 0 {
		errs = append(errs, errors.New("iteration counts must be non-negative"))
	}
	if c.Simulation.Decay <= 0 || c.Simulation.Decay > 1 {
		errs = append(errs, fmt.Errorf("simulation.decay must be in (0, 1], got %v", c.Simulation.Decay))
	}
	if c.Simulation.Viscosity < 0 {
		errs = append(errs, errors.New("simulation.viscosity must be non-negative"))
	}
	if c.Simulation.RestDensity <= 0 {
		errs = append(errs, errors.New("simulation.rest_density must be positive"))
	}
	switch c.Simulation.PressureStrategy {
	case "", "reuse", "clear", "advect":
	default:
		errs = append(errs, fmt.Errorf("unknown pressure_strategy %q", c.Simulation.PressureStrategy))
	}
	if c.Impulse.Radius <= 0 {
		errs = append(errs, errors.New("impulse.radius must be positive"))
	}
	if c.Render.Width <= 0 || c.Render.Height <= 0 {
		errs = append(errs, errors.New("render dimensions must be positive"))
	}
	if c.Render.Samples <= 0 || c.Render.LightSamples <= 0 {
		errs = append(errs, errors.New("render sample counts must be positive"))
	}
	switch c.Render.LightModel {
	case "", "directional", "point":
	default:
		errs = append(errs, fmt.Errorf("unknown light_model %q", c.Render.LightModel))
	}
	if c.Camera.WorldScale <= 0 {
		errs = append(errs, errors.New("camera.world_scale must be positive"))
	}
	if c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near {
		errs = append(errs, errors.New("camera clip planes must satisfy 0 < near < far"))
	}
	for i, e := range c.Scenario.Emitters {
		if e.Start < 0 || e.Duration < 0 {
			errs = append(errs, fmt.Errorf("scenario.emitters[%d]: negative timing", i))
		}
	}
	return errors.Join(errs...)
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.MinDT32 = float32(c.Simulation.MinDT)
	c.Derived.MaxDT32 = float32(c.Simulation.MaxDT)
	c.Derived.FOVRadians = float32(c.Camera.FOVDegrees * math.Pi / 180)
	c.Derived.YawRadians = float32(c.Camera.YawDegrees * math.Pi / 180)
	c.Derived.PitchRadians = float32(c.Camera.PitchDegrees * math.Pi / 180)
	c.Derived.CellCount = c.Grid.Width * c.Grid.Height * c.Grid.Depth

	if c.Simulation.PressureStrategy == "" {
		c.Simulation.PressureStrategy = "reuse"
	}
	if c.Render.LightModel == "" {
		c.Render.LightModel = "directional"
	}
	if c.Stream.Interval <= 0 {
		c.Stream.Interval = 1
	}
	if c.Stream.Scale <= 0 {
		c.Stream.Scale = 1
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
