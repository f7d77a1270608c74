package viewer

import (
	"fmt"
	"time"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/smoke/app"
	"github.com/pthm-cable/smoke/renderer"
	"github.com/pthm-cable/smoke/telemetry"
)

// Theme holds UI styling constants.
type Theme struct {
	PanelBg        rl.Color
	PanelBorder    rl.Color
	SectionHeader  rl.Color
	LabelColor     rl.Color
	Padding        int32
	LineHeight     int32
	FontSize       int32
	HeaderFontSize int32
}

// DefaultTheme returns the default UI theme.
func DefaultTheme() Theme {
	return Theme{
		PanelBg:        rl.Color{R: 20, G: 25, B: 30, A: 220},
		PanelBorder:    rl.Color{R: 60, G: 70, B: 80, A: 255},
		SectionHeader:  rl.Yellow,
		LabelColor:     rl.LightGray,
		Padding:        10,
		LineHeight:     16,
		FontSize:       12,
		HeaderFontSize: 14,
	}
}

// HUDData holds all the data needed to render the main HUD.
type HUDData struct {
	Title               string
	GridW, GridH, GridD int
	Frame               int64
	SimTime             float64
	FPS                 int32
	Paused              bool
	Viscous             bool
	Source              string
	Scripted            bool
	Stats               telemetry.FieldStats
}

// HUD renders the main heads-up display.
type HUD struct {
	theme Theme
}

// NewHUD creates a new HUD renderer.
func NewHUD() *HUD {
	return &HUD{theme: DefaultTheme()}
}

// Draw renders the HUD.
func (h *HUD) Draw(data HUDData) {
	rl.DrawText(data.Title, 10, 10, 20, rl.White)

	rl.DrawText(
		fmt.Sprintf("Grid: %dx%dx%d | Frame: %d | Time: %.1fs | FPS: %d",
			data.GridW, data.GridH, data.GridD, data.Frame, data.SimTime, data.FPS),
		10, 35, 16, rl.LightGray,
	)
	rl.DrawText(
		fmt.Sprintf("Density: %.2f | Max: %.2f | Divergence: %.4f",
			data.Stats.DensityTotal, data.Stats.DensityMax, data.Stats.Divergence),
		10, 55, 16, rl.LightGray,
	)

	status := "Running"
	if data.Paused {
		status = "PAUSED"
	}
	if data.Viscous {
		status += " | viscous"
	}
	status += " | impulse: " + data.Source
	if !data.Scripted {
		status += " | scripted off"
	}
	rl.DrawText(status, 10, 75, 16, rl.Yellow)
}

// DrawControls renders the control legend at the bottom of the screen.
func (h *HUD) DrawControls(screenHeight int32, controls string) {
	rl.DrawText(controls, 10, screenHeight-25, 14, rl.Gray)
}

// PerfPanel renders per-phase frame timing.
type PerfPanel struct {
	x, y int32
}

// NewPerfPanel creates a new performance panel.
func NewPerfPanel(x, y int32) *PerfPanel {
	return &PerfPanel{x: x, y: y}
}

// Draw renders the performance panel.
func (p *PerfPanel) Draw(stats telemetry.PerfStats) {
	x, y := p.x, p.y

	rl.DrawText("Frame Performance", x, y, 16, rl.White)
	y += 20
	rl.DrawText(fmt.Sprintf("Avg: %s  Max: %s",
		stats.AvgTickDuration.Round(time.Microsecond), stats.MaxTickDuration.Round(time.Microsecond)),
		x, y, 14, rl.Yellow)
	y += 18

	for _, phase := range telemetry.Phases() {
		pct := stats.PhasePct[phase]
		col := rl.LightGray
		if pct > 40 {
			col = rl.Red
		} else if pct > 20 {
			col = rl.Orange
		}
		rl.DrawText(
			fmt.Sprintf("%-11s %8s %5.1f%%", phase, stats.PhaseAvg[phase].Round(time.Microsecond), pct),
			x, y, 12, col,
		)
		y += 14
	}
}

// ControlsPanel exposes solver parameters as raygui widgets.
type ControlsPanel struct {
	theme Theme
	x, y  int32
	width int32
}

const controlsHeight = 250

// NewControlsPanel creates a panel anchored at (x, y).
func NewControlsPanel(x, y, width int32) *ControlsPanel {
	return &ControlsPanel{theme: DefaultTheme(), x: x, y: y, width: width}
}

// SetPosition moves the panel.
func (c *ControlsPanel) SetPosition(x, y int32) {
	c.x, c.y = x, y
}

// Contains reports whether a screen point lies on the panel.
func (c *ControlsPanel) Contains(p rl.Vector2) bool {
	return rl.CheckCollisionPointRec(p, c.bounds())
}

func (c *ControlsPanel) bounds() rl.Rectangle {
	return rl.Rectangle{X: float32(c.x), Y: float32(c.y), Width: float32(c.width), Height: controlsHeight}
}

// Draw renders the panel and applies any widget changes to a.
func (c *ControlsPanel) Draw(a *app.App) {
	rl.DrawRectangleRec(c.bounds(), c.theme.PanelBg)
	rl.DrawRectangleLinesEx(c.bounds(), 1, c.theme.PanelBorder)

	pad := float32(c.theme.Padding)
	x := float32(c.x) + pad
	y := float32(c.y) + pad
	w := float32(c.width) - 2*pad - 40

	rl.DrawText("Solver", int32(x), int32(y), c.theme.HeaderFontSize, c.theme.SectionHeader)
	y += 22

	sim := a.Simulator()
	opts := sim.Options()

	rl.DrawText("Pressure iterations", int32(x), int32(y), c.theme.FontSize, c.theme.LabelColor)
	y += 16
	iters := gui.SliderBar(rl.Rectangle{X: x, Y: y, Width: w, Height: 16}, "", "",
		float32(opts.PressureIterations), 0, 128)
	rl.DrawText(fmt.Sprintf("%d", opts.PressureIterations), int32(x+w+6), int32(y+2), c.theme.FontSize, rl.White)
	if int(iters) != opts.PressureIterations {
		sim.SetPressureIterations(int(iters))
	}
	y += 26

	rl.DrawText("Viscosity", int32(x), int32(y), c.theme.FontSize, c.theme.LabelColor)
	y += 16
	visc := gui.SliderBar(rl.Rectangle{X: x, Y: y, Width: w, Height: 16}, "", "",
		opts.Viscosity, 0, 5)
	rl.DrawText(fmt.Sprintf("%.2f", opts.Viscosity), int32(x+w+6), int32(y+2), c.theme.FontSize, rl.White)
	if visc != opts.Viscosity {
		sim.SetViscosity(visc)
	}
	y += 26

	if viscous := gui.CheckBox(rl.Rectangle{X: x, Y: y, Width: 16, Height: 16}, "Viscous (V)", a.Viscous()); viscous != a.Viscous() {
		a.ToggleViscous()
	}
	y += 24

	d := a.Director()
	d.Scripted = gui.CheckBox(rl.Rectangle{X: x, Y: y, Width: 16, Height: 16}, "Scripted emitters (S)", d.Scripted)
	y += 24

	r := a.Renderer()
	point := r.Options().LightModel == renderer.Point
	if p := gui.CheckBox(rl.Rectangle{X: x, Y: y, Width: 16, Height: 16}, "Point light", point); p != point {
		model := renderer.Directional
		if p {
			model = renderer.Point
		}
		r.SetLightModel(model)
	}
	y += 30

	if gui.Button(rl.Rectangle{X: x, Y: y, Width: 90, Height: 26}, "Reset (R)") {
		a.Reset()
	}
	if gui.Button(rl.Rectangle{X: x + 100, Y: y, Width: 90, Height: 26}, toggleText(a.Paused(), "Resume", "Pause")) {
		a.SetPaused(!a.Paused())
	}
}

func toggleText(on bool, onText, offText string) string {
	if on {
		return onText
	}
	return offText
}
