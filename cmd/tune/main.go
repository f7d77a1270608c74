// Command tune searches solver parameters with CMA-ES, trading projection
// quality against pressure iterations while keeping a target amount of
// visible smoke.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/smoke/config"
)

// EvalRecord is one row of tune_log.csv.
type EvalRecord struct {
	Eval               int     `csv:"eval"`
	Fitness            float64 `csv:"fitness"`
	PressureIterations float64 `csv:"pressure_iterations"`
	Viscosity          float64 `csv:"viscosity"`
	Decay              float64 `csv:"decay"`
	Divergence         float64 `csv:"divergence"`
	Occupied           float64 `csv:"occupied"`
	ElapsedSec         float64 `csv:"elapsed_sec"`
}

func main() {
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	frames := flag.Int("frames", 200, "Simulation frames per run")
	seeds := flag.Int("seeds", 2, "Scenario seeds per evaluation")
	maxEvals := flag.Int("max-evals", 60, "Maximum number of evaluations")
	population := flag.Int("population", 0, "CMA-ES population size (0 = auto)")
	gridSize := flag.Int("grid", 32, "Grid edge length for tuning runs (0 = keep config)")
	viscous := flag.Bool("viscous", true, "Run with diffusion enabled so viscosity matters")
	target := flag.Float64("target-occupied", DefaultObjective().TargetOccupied, "Desired occupied fraction at the end of a run")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if *outputDir == "" {
		fatal("--output is required")
	}
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		fatal("creating output directory", "error", err)
	}

	baseCfg, err := config.Load(*configPath)
	if err != nil {
		fatal("loading config", "error", err)
	}
	if *gridSize > 0 {
		baseCfg.Grid = config.GridConfig{Width: *gridSize, Height: *gridSize, Depth: *gridSize}
	}
	baseCfg.Simulation.Viscous = *viscous

	params := NewParamVector()
	evalSeeds := make([]int64, *seeds)
	for i := range evalSeeds {
		evalSeeds[i] = int64(i*1000 + 42)
	}

	obj := DefaultObjective()
	obj.TargetOccupied = *target
	evaluator := NewFitnessEvaluator(params, *frames, evalSeeds, baseCfg, obj)

	dim := params.Dim()
	initX := params.Normalize(params.ExtractFromConfig(baseCfg))

	popSize := *population
	if popSize == 0 {
		popSize = 4 + int(3.0*float64(dim)/2.0)
	}
	method := &optimize.CmaEsChol{
		InitStepSize: 0.3,
		Population:   popSize,
	}
	settings := &optimize.Settings{
		FuncEvaluations: *maxEvals,
		Concurrent:      0,
	}

	logFile, err := os.Create(filepath.Join(*outputDir, "tune_log.csv"))
	if err != nil {
		fatal("creating log file", "error", err)
	}
	defer logFile.Close()

	var (
		evalCount   int
		headerDone  bool
		bestFitness = 1e18
		bestParams  []float64
		startTime   = time.Now()
	)

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			raw := params.Clamp(params.Denormalize(x))
			fitness := evaluator.Evaluate(raw)
			evalCount++

			if fitness < bestFitness {
				bestFitness = fitness
				bestParams = append(bestParams[:0], raw...)
			}

			div, occ := evaluator.Last()
			rec := []EvalRecord{{
				Eval:               evalCount,
				Fitness:            fitness,
				PressureIterations: raw[0],
				Viscosity:          raw[1],
				Decay:              raw[2],
				Divergence:         div,
				Occupied:           occ,
				ElapsedSec:         time.Since(startTime).Seconds(),
			}}
			if err := writeRecord(logFile, rec, &headerDone); err != nil {
				slog.Error("writing log row", "error", err)
			}

			elapsed := time.Since(startTime)
			remaining := time.Duration(*maxEvals-evalCount) * (elapsed / time.Duration(evalCount))
			slog.Info("eval",
				"n", evalCount,
				"of", *maxEvals,
				"fitness", fitness,
				"best", bestFitness,
				"divergence", div,
				"occupied", occ,
				"elapsed", formatDuration(elapsed),
				"eta", formatDuration(remaining),
			)
			return fitness
		},
	}

	slog.Info("starting CMA-ES", "params", dim, "population", popSize, "max_evals", *maxEvals,
		"seeds", *seeds, "frames", *frames)

	result, err := optimize.Minimize(problem, initX, settings, method)
	if err != nil {
		slog.Warn("optimization ended", "error", err)
	}
	if bestParams == nil && result != nil {
		bestParams = params.Clamp(params.Denormalize(result.X))
	}

	slog.Info("optimization complete", "evals", evalCount, "elapsed", formatDuration(time.Since(startTime)),
		"best_fitness", bestFitness)
	for i, spec := range params.Specs {
		slog.Info("best parameter", "name", spec.Name, "path", spec.Path, "value", bestParams[i])
	}

	// Save against the untouched base so grid overrides do not leak out.
	bestCfg, err := config.Load(*configPath)
	if err != nil {
		fatal("reloading config", "error", err)
	}
	params.ApplyToConfig(bestCfg, bestParams)
	outPath := filepath.Join(*outputDir, "best_config.yaml")
	if err := bestCfg.WriteYAML(outPath); err != nil {
		slog.Error("writing best config", "error", err)
		return
	}
	slog.Info("best config saved", "path", outPath)
}

// writeRecord emits the CSV header with the first record only.
func writeRecord(f *os.File, rows []EvalRecord, headerDone *bool) error {
	if *headerDone {
		return gocsv.MarshalWithoutHeaders(rows, f)
	}
	*headerDone = true
	return gocsv.Marshal(rows, f)
}

func fatal(msg string, args ...any) {
	slog.Error(msg, args...)
	os.Exit(1)
}

// formatDuration formats a duration as HhMMmSSs or MmSSs for shorter durations.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}
