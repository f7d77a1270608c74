// Package viewer shows the smoke volume in a raylib window and maps mouse
// and keyboard input onto the app.
package viewer

import (
	"image"
	"image/color"
	"log/slog"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/smoke/app"
)

const controlsText = "LMB: impulse | RMB: orbit | Wheel: zoom | V: viscosity | J: jet | S: scripted | Space: pause | R: reset | F5: snapshot | F1: help"

// Viewer owns the window-side state. Create it after rl.InitWindow.
type Viewer struct {
	app *app.App

	tex    rl.Texture2D
	pixels []color.RGBA
	texW   int32
	texH   int32

	hud      *HUD
	controls *ControlsPanel
	perf     *PerfPanel

	orbitSpeed float32
	showHelp   bool
	showPanel  bool

	// Window dimensions
	screenW, screenH float32
}

// New creates the frame texture and UI panels.
func New(a *app.App) *Viewer {
	cfg := a.Config()
	w, h := int32(cfg.Render.Width), int32(cfg.Render.Height)

	img := rl.GenImageColor(int(w), int(h), rl.Black)
	tex := rl.LoadTextureFromImage(img)
	rl.SetTextureFilter(tex, rl.FilterBilinear)
	rl.UnloadImage(img)

	screenW := float32(rl.GetScreenWidth())
	screenH := float32(rl.GetScreenHeight())

	return &Viewer{
		app:        a,
		tex:        tex,
		pixels:     make([]color.RGBA, int(w*h)),
		texW:       w,
		texH:       h,
		hud:        NewHUD(),
		controls:   NewControlsPanel(int32(screenW)-230, 10, 220),
		perf:       NewPerfPanel(10, 110),
		orbitSpeed: float32(cfg.Camera.OrbitSpeed),
		showPanel:  true,
		screenW:    screenW,
		screenH:    screenH,
	}
}

// Update handles input and advances one frame using the window frame time.
func (v *Viewer) Update() error {
	v.handleResize()
	v.handleKeys()
	v.handleMouse()
	v.app.Perf().RecordFrame()
	return v.app.Update(rl.GetFrameTime())
}

func (v *Viewer) handleResize() {
	if !rl.IsWindowResized() {
		return
	}
	v.screenW = float32(rl.GetScreenWidth())
	v.screenH = float32(rl.GetScreenHeight())
	v.controls.SetPosition(int32(v.screenW)-230, 10)
}

func (v *Viewer) handleKeys() {
	if rl.IsKeyPressed(rl.KeyF1) {
		v.showHelp = !v.showHelp
	}
	if rl.IsKeyPressed(rl.KeyTab) {
		v.showPanel = !v.showPanel
	}
	if rl.IsKeyPressed(rl.KeyV) {
		v.app.ToggleViscous()
	}
	if rl.IsKeyPressed(rl.KeySpace) {
		v.app.SetPaused(!v.app.Paused())
	}
	if rl.IsKeyPressed(rl.KeyS) {
		d := v.app.Director()
		d.Scripted = !d.Scripted
	}
	if rl.IsKeyPressed(rl.KeyR) {
		v.app.Reset()
	}
	if rl.IsKeyPressed(rl.KeyHome) {
		v.app.Camera().Reset()
	}
	if rl.IsKeyPressed(rl.KeyF5) {
		if _, err := v.app.SaveSnapshot(); err != nil {
			slog.Error("saving snapshot", "error", err)
		}
	}
	if rl.IsKeyPressed(rl.KeyF11) {
		rl.ToggleFullscreen()
	}

	// Jet follows the key state, so check both edges.
	if rl.IsKeyPressed(rl.KeyJ) {
		v.app.Director().Jet(true)
	}
	if rl.IsKeyReleased(rl.KeyJ) {
		v.app.Director().Jet(false)
	}
}

func (v *Viewer) handleMouse() {
	cam := v.app.Camera()

	if rl.IsMouseButtonDown(rl.MouseButtonRight) {
		d := rl.GetMouseDelta()
		cam.Orbit(-d.X*v.orbitSpeed, d.Y*v.orbitSpeed)
	}

	if wheel := rl.GetMouseWheelMove(); wheel != 0 {
		cam.ZoomBy(1 - wheel*0.1)
	}

	// Clicks on the panel belong to raygui.
	mouse := rl.GetMousePosition()
	if v.showPanel && v.controls.Contains(mouse) {
		return
	}
	if rl.IsMouseButtonDown(rl.MouseButtonLeft) {
		rx, ry := v.toRender(mouse.X, mouse.Y)
		v.app.Director().Drag(cam.PickLocal(rx, ry), true)
	} else {
		v.app.Director().Drag(cam.PickLocal(0, 0), false)
	}
}

// toRender maps window coordinates onto the render target, which is
// stretched over the whole window.
func (v *Viewer) toRender(x, y float32) (float32, float32) {
	return x * float32(v.texW) / v.screenW, y * float32(v.texH) / v.screenH
}

// Draw uploads the latest frame and draws it with the HUD.
func (v *Viewer) Draw() {
	v.upload(v.app.Image())

	rl.BeginDrawing()
	rl.ClearBackground(rl.Black)

	src := rl.Rectangle{X: 0, Y: 0, Width: float32(v.texW), Height: float32(v.texH)}
	dst := rl.Rectangle{X: 0, Y: 0, Width: v.screenW, Height: v.screenH}
	rl.DrawTexturePro(v.tex, src, dst, rl.Vector2{}, 0, rl.White)

	v.hud.Draw(v.hudData())
	if v.showHelp {
		v.perf.Draw(v.app.Perf().Stats())
	}
	if v.showPanel {
		v.controls.Draw(v.app)
	}
	v.hud.DrawControls(int32(v.screenH), controlsText)

	rl.EndDrawing()
}

func (v *Viewer) hudData() HUDData {
	sim := v.app.Simulator()
	g := sim.Grid()
	return HUDData{
		Title:    "Smoke",
		GridW:    g.W,
		GridH:    g.H,
		GridD:    g.D,
		Frame:    v.app.Frame(),
		SimTime:  sim.Time(),
		FPS:      rl.GetFPS(),
		Paused:   v.app.Paused(),
		Viscous:  v.app.Viscous(),
		Source:   v.app.Director().Source().String(),
		Scripted: v.app.Director().Scripted,
		Stats:    v.app.LastStats(),
	}
}

// upload copies the rendered image into the frame texture.
func (v *Viewer) upload(img *image.RGBA) {
	copyPixels(v.pixels, img)
	rl.UpdateTexture(v.tex, v.pixels)
}

func copyPixels(dst []color.RGBA, img *image.RGBA) {
	b := img.Bounds()
	w := b.Dx()
	for y := 0; y < b.Dy(); y++ {
		row := img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):]
		for x := 0; x < w; x++ {
			p := row[4*x : 4*x+4 : 4*x+4]
			dst[y*w+x] = color.RGBA{R: p[0], G: p[1], B: p[2], A: p[3]}
		}
	}
}

// Unload frees GPU resources.
func (v *Viewer) Unload() {
	rl.UnloadTexture(v.tex)
}
