package telemetry

import (
	"log/slog"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/smoke/fluid"
)

// Phase names for one frame. Solver phases come from the fluid package.
const (
	PhaseAdvect     = fluid.PhaseAdvect
	PhaseDiffuse    = fluid.PhaseDiffuse
	PhaseImpulse    = fluid.PhaseImpulse
	PhaseDivergence = fluid.PhaseDivergence
	PhasePressure   = fluid.PhasePressure
	PhaseProject    = fluid.PhaseProject
	PhaseScenario   = "scenario"
	PhaseRender     = "render"
	PhaseOutput     = "output"
)

// allPhases fixes the logging order.
var allPhases = []string{
	PhaseScenario, PhaseAdvect, PhaseDiffuse, PhaseImpulse, PhaseDivergence,
	PhasePressure, PhaseProject, PhaseRender, PhaseOutput,
}

// Phases returns the phase names in logging order.
func Phases() []string { return allPhases }

// phaseSlot maps a phase name to its column in a sample.
var phaseSlot = func() map[string]int {
	m := make(map[string]int, len(allPhases))
	for i, p := range allPhases {
		m[p] = i
	}
	return m
}()

// frameSample holds the timing of one frame, phases in allPhases order.
type frameSample struct {
	total  time.Duration
	phases []time.Duration
}

// PerfCollector keeps per-phase frame timings over a rolling window.
// It satisfies fluid.PhaseTimer; phases outside Phases() are not recorded.
type PerfCollector struct {
	ring  []frameSample
	next  int
	count int

	open      frameSample
	openStart time.Time
	phase     int // slot of the running phase, -1 for none
	phaseFrom time.Time

	// Wall-clock interval between rendered frames (graphics mode)
	lastFrame time.Time
	frameGap  time.Duration
}

// NewPerfCollector creates a collector averaging over windowSize frames.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 60
	}
	ring := make([]frameSample, windowSize)
	for i := range ring {
		ring[i].phases = make([]time.Duration, len(allPhases))
	}
	return &PerfCollector{
		ring:  ring,
		open:  frameSample{phases: make([]time.Duration, len(allPhases))},
		phase: -1,
	}
}

// StartTick begins timing a new frame.
func (p *PerfCollector) StartTick() {
	p.openStart = time.Now()
	clear(p.open.phases)
	p.phase = -1
}

// StartPhase ends the running phase and starts timing the named one.
func (p *PerfCollector) StartPhase(phase string) {
	now := time.Now()
	p.closePhase(now)
	if slot, ok := phaseSlot[phase]; ok {
		p.phase = slot
		p.phaseFrom = now
	}
}

func (p *PerfCollector) closePhase(now time.Time) {
	if p.phase >= 0 {
		p.open.phases[p.phase] += now.Sub(p.phaseFrom)
		p.phase = -1
	}
}

// EndTick closes the frame and stores it in the window.
func (p *PerfCollector) EndTick() {
	now := time.Now()
	p.closePhase(now)

	slot := &p.ring[p.next]
	slot.total = now.Sub(p.openStart)
	copy(slot.phases, p.open.phases)
	p.next = (p.next + 1) % len(p.ring)
	p.count = min(p.count+1, len(p.ring))
}

// RecordFrame marks a presented frame in graphics mode.
func (p *PerfCollector) RecordFrame() {
	now := time.Now()
	if !p.lastFrame.IsZero() {
		p.frameGap = now.Sub(p.lastFrame)
	}
	p.lastFrame = now
}

// PerfStats holds aggregated performance statistics.
type PerfStats struct {
	AvgTickDuration time.Duration
	MinTickDuration time.Duration
	MaxTickDuration time.Duration

	// Phase breakdown (average durations and share of the frame)
	PhaseAvg map[string]time.Duration
	PhasePct map[string]float64

	TicksPerSecond float64

	// Frame timing (graphics mode)
	FrameDuration time.Duration
	FPS           float64
}

// Stats aggregates the window. Phases that never ran are omitted.
func (p *PerfCollector) Stats() PerfStats {
	out := PerfStats{
		PhaseAvg:      make(map[string]time.Duration),
		PhasePct:      make(map[string]float64),
		FrameDuration: p.frameGap,
	}
	if p.frameGap > 0 {
		out.FPS = float64(time.Second) / float64(p.frameGap)
	}
	if p.count == 0 {
		return out
	}

	totals := make([]float64, p.count)
	column := make([]float64, p.count)
	for i := range totals {
		totals[i] = float64(p.ring[i].total)
	}
	avg := stat.Mean(totals, nil)
	out.AvgTickDuration = time.Duration(avg)
	out.MinTickDuration = time.Duration(floats.Min(totals))
	out.MaxTickDuration = time.Duration(floats.Max(totals))
	if avg > 0 {
		out.TicksPerSecond = float64(time.Second) / avg
	}

	for slot, name := range allPhases {
		for i := range column {
			column[i] = float64(p.ring[i].phases[slot])
		}
		if floats.Max(column) == 0 {
			continue
		}
		phaseAvg := stat.Mean(column, nil)
		out.PhaseAvg[name] = time.Duration(phaseAvg)
		if avg > 0 {
			out.PhasePct[name] = phaseAvg / avg * 100
		}
	}
	return out
}

// LogValue implements slog.LogValuer for structured logging.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_frame_us", s.AvgTickDuration.Microseconds()),
		slog.Int64("min_frame_us", s.MinTickDuration.Microseconds()),
		slog.Int64("max_frame_us", s.MaxTickDuration.Microseconds()),
		slog.Float64("frames_per_sec", s.TicksPerSecond),
	}
	if s.FPS > 0 {
		attrs = append(attrs, slog.Float64("fps", s.FPS))
	}
	for _, phase := range allPhases {
		if pct, ok := s.PhasePct[phase]; ok && pct > 0.1 {
			attrs = append(attrs, slog.Float64(phase+"_pct", float64(int(pct*10))/10))
		}
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is a flat struct for CSV export of performance stats.
type PerfStatsCSV struct {
	Frame         int64   `csv:"frame"`
	AvgFrameUS    int64   `csv:"avg_frame_us"`
	MinFrameUS    int64   `csv:"min_frame_us"`
	MaxFrameUS    int64   `csv:"max_frame_us"`
	FramesPerSec  float64 `csv:"frames_per_sec"`
	FPS           float64 `csv:"fps"`
	ScenarioPct   float64 `csv:"scenario_pct"`
	AdvectPct     float64 `csv:"advect_pct"`
	DiffusePct    float64 `csv:"diffuse_pct"`
	ImpulsePct    float64 `csv:"impulse_pct"`
	DivergencePct float64 `csv:"divergence_pct"`
	PressurePct   float64 `csv:"pressure_pct"`
	ProjectPct    float64 `csv:"project_pct"`
	RenderPct     float64 `csv:"render_pct"`
	OutputPct     float64 `csv:"output_pct"`
}

// ToCSV converts PerfStats to a flat CSV-friendly struct.
func (s PerfStats) ToCSV(frame int64) PerfStatsCSV {
	return PerfStatsCSV{
		Frame:         frame,
		AvgFrameUS:    s.AvgTickDuration.Microseconds(),
		MinFrameUS:    s.MinTickDuration.Microseconds(),
		MaxFrameUS:    s.MaxTickDuration.Microseconds(),
		FramesPerSec:  s.TicksPerSecond,
		FPS:           s.FPS,
		ScenarioPct:   s.PhasePct[PhaseScenario],
		AdvectPct:     s.PhasePct[PhaseAdvect],
		DiffusePct:    s.PhasePct[PhaseDiffuse],
		ImpulsePct:    s.PhasePct[PhaseImpulse],
		DivergencePct: s.PhasePct[PhaseDivergence],
		PressurePct:   s.PhasePct[PhasePressure],
		ProjectPct:    s.PhasePct[PhaseProject],
		RenderPct:     s.PhasePct[PhaseRender],
		OutputPct:     s.PhasePct[PhaseOutput],
	}
}
