// Package telemetry collects frame timing and field statistics, flags
// notable moments as bookmarks, saves field snapshots and writes CSV logs.
package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/smoke/fluid"
)

// FieldStats summarizes the simulation state at one frame.
type FieldStats struct {
	Frame   int64   `csv:"frame"`
	SimTime float64 `csv:"sim_time"`

	DensityTotal float64 `csv:"density_total"`
	DensityMean  float64 `csv:"density_mean"`
	DensityStd   float64 `csv:"density_std"`
	DensityMax   float64 `csv:"density_max"`
	DensityP99   float64 `csv:"density_p99"`
	Occupied     float64 `csv:"occupied"` // fraction of cells above the render threshold

	SpeedMean     float64 `csv:"speed_mean"`
	SpeedMax      float64 `csv:"speed_max"`
	KineticEnergy float64 `csv:"kinetic_energy"`
	Divergence    float64 `csv:"divergence"` // mean absolute
}

// StatsScratch holds reusable buffers so repeated sampling does not allocate.
type StatsScratch struct {
	density []float64
	speed   []float64
}

// ComputeFieldStats summarizes density and velocity. occupiedThreshold is
// the density below which a cell counts as empty.
func ComputeFieldStats(density fluid.View[float32], velocity fluid.View[fluid.Vec3], occupiedThreshold float32, scratch *StatsScratch) FieldStats {
	if scratch == nil {
		scratch = &StatsScratch{}
	}
	n := density.Len()
	scratch.density = resize(scratch.density, n)
	scratch.speed = resize(scratch.speed, velocity.Len())

	occupied := 0
	for i, d := range density.Slice() {
		scratch.density[i] = float64(d)
		if d > occupiedThreshold {
			occupied++
		}
	}
	for i, u := range velocity.Slice() {
		scratch.speed[i] = float64(u.Len())
	}

	var s FieldStats
	s.DensityTotal = floats.Sum(scratch.density)
	s.DensityMean, s.DensityStd = stat.MeanStdDev(scratch.density, nil)
	s.DensityMax = floats.Max(scratch.density)
	s.Occupied = float64(occupied) / float64(n)

	s.SpeedMean = stat.Mean(scratch.speed, nil)
	s.SpeedMax = floats.Max(scratch.speed)
	s.KineticEnergy = fluid.Energy(velocity)
	s.Divergence = fluid.MeanAbsDivergence(velocity)

	sort.Float64s(scratch.density)
	s.DensityP99 = stat.Quantile(0.99, stat.Empirical, scratch.density, nil)
	return s
}

func resize(buf []float64, n int) []float64 {
	if cap(buf) < n {
		return make([]float64, n)
	}
	return buf[:n]
}

// LogValue implements slog.LogValuer for structured logging.
func (s FieldStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("frame", s.Frame),
		slog.Float64("sim_time", s.SimTime),
		slog.Float64("density_total", s.DensityTotal),
		slog.Float64("density_max", s.DensityMax),
		slog.Float64("occupied", s.Occupied),
		slog.Float64("speed_max", s.SpeedMax),
		slog.Float64("kinetic_energy", s.KineticEnergy),
		slog.Float64("divergence", s.Divergence),
	)
}
