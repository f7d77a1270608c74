package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pthm-cable/smoke/fluid"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot holds the density and velocity fields of one frame so a run can
// be inspected or resumed.
type Snapshot struct {
	Version int `json:"version"`

	Width  int `json:"width"`
	Height int `json:"height"`
	Depth  int `json:"depth"`

	Frame   int64   `json:"frame"`
	SimTime float64 `json:"sim_time"`

	Density  []float32    `json:"density"`
	Velocity []fluid.Vec3 `json:"velocity"`

	Bookmark *Bookmark `json:"bookmark,omitempty"`
}

// CaptureSnapshot copies the simulator's current fields.
func CaptureSnapshot(sim *fluid.Simulator, frame int64) *Snapshot {
	g := sim.Grid()
	return &Snapshot{
		Version:  SnapshotVersion,
		Width:    g.W,
		Height:   g.H,
		Depth:    g.D,
		Frame:    frame,
		SimTime:  sim.Time(),
		Density:  append([]float32(nil), sim.Density().Slice()...),
		Velocity: append([]fluid.Vec3(nil), sim.Velocity().Slice()...),
	}
}

// Apply loads the snapshot's fields into sim. The grid shapes must match.
func (s *Snapshot) Apply(sim *fluid.Simulator) error {
	if s.Version != SnapshotVersion {
		return fmt.Errorf("snapshot version %d, want %d", s.Version, SnapshotVersion)
	}
	g := sim.Grid()
	if g.W != s.Width || g.H != s.Height || g.D != s.Depth {
		return fmt.Errorf("snapshot grid %dx%dx%d does not match simulator %dx%dx%d",
			s.Width, s.Height, s.Depth, g.W, g.H, g.D)
	}
	return sim.Restore(s.Density, s.Velocity, s.SimTime)
}

// SnapshotName returns the file name used for s.
func SnapshotName(s *Snapshot) string {
	if s.Bookmark != nil {
		return fmt.Sprintf("snapshot_%06d_%s.json", s.Frame, s.Bookmark.Type)
	}
	return fmt.Sprintf("snapshot_%06d.json", s.Frame)
}

// SaveSnapshot writes a snapshot to disk.
// Returns the filepath where it was saved.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	path := filepath.Join(dir, SnapshotName(snapshot))

	data, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	return &snapshot, nil
}
