package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Grid.Width != 64 || cfg.Grid.Height != 64 || cfg.Grid.Depth != 64 {
		t.Errorf("grid = %+v, want 64^3", cfg.Grid)
	}
	if cfg.Simulation.PressureIterations != 32 {
		t.Errorf("pressure iterations = %d, want 32", cfg.Simulation.PressureIterations)
	}
	if cfg.Simulation.Decay != 0.996 {
		t.Errorf("decay = %v, want 0.996", cfg.Simulation.Decay)
	}
	if cfg.Render.Samples != 128 || cfg.Render.LightSamples != 32 {
		t.Errorf("samples = %d/%d, want 128/32", cfg.Render.Samples, cfg.Render.LightSamples)
	}
	if cfg.Derived.CellCount != 64*64*64 {
		t.Errorf("cell count = %d", cfg.Derived.CellCount)
	}
	if cfg.Derived.MinDT32 != 0.03 {
		t.Errorf("min dt = %v, want 0.03", cfg.Derived.MinDT32)
	}
}

func TestLoadOverridesOnlyPresentFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "override.yaml")
	data := []byte("grid:\n  width: 32\nsimulation:\n  pressure_iterations: 8\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Grid.Width != 32 {
		t.Errorf("width = %d, want 32", cfg.Grid.Width)
	}
	if cfg.Grid.Height != 64 {
		t.Errorf("height = %d, want default 64", cfg.Grid.Height)
	}
	if cfg.Simulation.PressureIterations != 8 {
		t.Errorf("pressure iterations = %d, want 8", cfg.Simulation.PressureIterations)
	}
	if cfg.Simulation.Decay != 0.996 {
		t.Errorf("decay lost during merge: %v", cfg.Simulation.Decay)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"flat grid", "grid:\n  depth: 1\n", "grid dimensions"},
		{"negative iterations", "simulation:\n  pressure_iterations: -1\n", "iteration counts"},
		{"zero decay", "simulation:\n  decay: 0\n", "simulation.decay"},
		{"growing decay", "simulation:\n  decay: 1.01\n", "simulation.decay"},
		{"bad strategy", "simulation:\n  pressure_strategy: maccormack\n", "pressure_strategy"},
		{"bad light", "render:\n  light_model: spot\n", "light_model"},
		{"clip planes", "camera:\n  near: 10\n  far: 5\n", "clip planes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Grid.Width = 40

	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.Grid.Width != 40 {
		t.Errorf("width = %d, want 40", loaded.Grid.Width)
	}
	if len(loaded.Scenario.Emitters) != len(cfg.Scenario.Emitters) {
		t.Errorf("emitters = %d, want %d", len(loaded.Scenario.Emitters), len(cfg.Scenario.Emitters))
	}
}

func TestCfgPanicsBeforeInit(t *testing.T) {
	saved := global
	global = nil
	defer func() {
		global = saved
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	Cfg()
}
