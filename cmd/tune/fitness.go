package main

import (
	"io"
	"log/slog"
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/smoke/app"
	"github.com/pthm-cable/smoke/config"
	"github.com/pthm-cable/smoke/fluid"
)

// Objective weights the terms of the fitness (lower = better).
type Objective struct {
	DivergenceWeight float64 // per unit of mean interior divergence
	IterationCost    float64 // per pressure sweep
	TargetOccupied   float64 // desired fraction of visible cells at the end of a run
	OccupiedWeight   float64 // per unit of absolute occupancy error
}

// DefaultObjective balances projection quality against solver cost.
func DefaultObjective() Objective {
	return Objective{
		DivergenceWeight: 100,
		IterationCost:    0.01,
		TargetOccupied:   0.05,
		OccupiedWeight:   10,
	}
}

// FitnessEvaluator runs headless simulations and computes fitness.
type FitnessEvaluator struct {
	params     *ParamVector
	frames     int
	seeds      []int64
	baseConfig *config.Config
	objective  Objective

	mu   sync.Mutex
	last runResult // mean of the most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, frames int, seeds []int64, baseCfg *config.Config, obj Objective) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:     params,
		frames:     frames,
		seeds:      seeds,
		baseConfig: baseCfg,
		objective:  obj,
	}
}

// runResult holds the measurements from one simulation run.
type runResult struct {
	divergence float64 // mean interior divergence over the run
	occupied   float64 // occupied fraction at the end
	err        error
}

// Last returns the averaged measurements from the most recent evaluation.
func (fe *FitnessEvaluator) Last() (divergence, occupied float64) {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.last.divergence, fe.last.occupied
}

// Evaluate computes fitness for a raw parameter vector. All seeds run in
// parallel, one worker each.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	clamped := fe.params.Clamp(x)

	results := make([]runResult, len(fe.seeds))
	var wg sync.WaitGroup
	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			results[idx] = fe.runSimulation(clamped, s)
		}(i, seed)
	}
	wg.Wait()

	divs := make([]float64, 0, len(results))
	occs := make([]float64, 0, len(results))
	for _, r := range results {
		if r.err != nil {
			slog.Warn("evaluation failed", "error", r.err)
			return math.Inf(1)
		}
		divs = append(divs, r.divergence)
		occs = append(occs, r.occupied)
	}
	mean := runResult{divergence: stat.Mean(divs, nil), occupied: stat.Mean(occs, nil)}

	fe.mu.Lock()
	fe.last = mean
	fe.mu.Unlock()

	return fe.computeFitness(clamped, mean)
}

func (fe *FitnessEvaluator) computeFitness(params []float64, r runResult) float64 {
	o := fe.objective
	return o.DivergenceWeight*r.divergence +
		o.IterationCost*params[0] +
		o.OccupiedWeight*math.Abs(r.occupied-o.TargetOccupied)
}

// runSimulation executes a single headless run.
func (fe *FitnessEvaluator) runSimulation(params []float64, seed int64) runResult {
	cfg, err := fe.copyConfig(params, seed)
	if err != nil {
		return runResult{err: err}
	}
	a, err := app.New(cfg, app.Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	if err != nil {
		return runResult{err: err}
	}
	defer a.Close()

	sim := a.Simulator()
	var divSum float64
	for i := 0; i < fe.frames; i++ {
		a.Step(cfg.Derived.MinDT32)
		divSum += fluid.MeanAbsInteriorDivergence(sim.Velocity())
	}
	stats := a.FieldStats()
	return runResult{
		divergence: divSum / float64(fe.frames),
		occupied:   stats.Occupied,
	}
}

// copyConfig derives a run config from the base with params and seed applied.
func (fe *FitnessEvaluator) copyConfig(params []float64, seed int64) (*config.Config, error) {
	cfg := *fe.baseConfig
	fe.params.ApplyToConfig(&cfg, params)
	cfg.Scenario.Seed = seed
	cfg.Parallel.Workers = 1
	cfg.Telemetry.StatsInterval = 0
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
