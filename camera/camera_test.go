package camera

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/smoke/renderer"
)

func TestEyeDistance(t *testing.T) {
	cam := New(640, 480, DefaultParams())
	if d := cam.Eye().Len(); math.Abs(float64(d-32)) > 1e-3 {
		t.Errorf("eye distance = %f, want 32", d)
	}
	if cam.Eye()[1] <= 0 {
		t.Errorf("eye %v should be above the volume at positive pitch", cam.Eye())
	}
}

func TestCenterProjectsToViewportCenter(t *testing.T) {
	cam := New(640, 480, DefaultParams())
	p := mgl32.TransformCoordinate(mgl32.Vec3{}, cam.LocalToScreen())
	if math.Abs(float64(p[0]-320)) > 0.01 || math.Abs(float64(p[1]-240)) > 0.01 {
		t.Errorf("origin maps to (%f, %f), want (320, 240)", p[0], p[1])
	}
	if p[2] <= 0 || p[2] >= 1 {
		t.Errorf("origin depth = %f, want inside (0,1)", p[2])
	}
}

func TestScreenToLocalRoundtrip(t *testing.T) {
	cam := New(800, 600, DefaultParams())
	toScreen := cam.LocalToScreen()
	toLocal := cam.ScreenToLocal()

	testCases := []mgl32.Vec3{
		{0, 0, 0},
		{1, 1, 1},
		{-1, 0.5, -0.25},
		{0.3, -0.9, 0.7},
	}
	for _, local := range testCases {
		s := mgl32.TransformCoordinate(local, toScreen)
		back := mgl32.TransformCoordinate(s, toLocal)
		// Absolute tolerance: float32 inversion leaves ~1e-5 error even at the origin.
		if back.Sub(local).Len() > 1e-3 {
			t.Errorf("roundtrip failed: %v -> %v -> %v", local, s, back)
		}
	}
}

func TestScreenDepthZeroIsNearPlane(t *testing.T) {
	cam := New(640, 480, DefaultParams())
	rc := cam.RenderCamera()
	pos, dir := renderer.PixelRay(rc, 320, 240)

	dist := pos.Sub(rc.Eye).Len() * cam.WorldScale
	if math.Abs(float64(dist-cam.Near)) > 1e-2 {
		t.Errorf("near point is %f world units from the eye, want %f", dist, cam.Near)
	}
	toCenter := rc.Eye.Mul(-1).Normalize()
	if dir.Dot(toCenter) < 0.9999 {
		t.Errorf("center ray %v does not aim at the volume (%v)", dir, toCenter)
	}
}

func TestRenderCameraLocalSpace(t *testing.T) {
	cam := New(640, 480, DefaultParams())
	rc := cam.RenderCamera()
	if d := rc.Eye.Len(); math.Abs(float64(d-5)) > 1e-3 {
		t.Errorf("local eye distance = %f, want 32/6.4 = 5", d)
	}
	want := mgl32.Vec3{10, 45, -75}.Mul(1 / 6.4)
	if !rc.Light.ApproxEqualThreshold(want, 1e-4) {
		t.Errorf("local light = %v, want %v", rc.Light, want)
	}
}

func TestOrbitClampsPitch(t *testing.T) {
	cam := New(640, 480, DefaultParams())
	cam.Orbit(0, 10)
	if cam.Pitch >= math.Pi/2 {
		t.Errorf("pitch %f reached the pole", cam.Pitch)
	}
	cam.Orbit(0, -20)
	if cam.Pitch <= -math.Pi/2 {
		t.Errorf("pitch %f reached the pole", cam.Pitch)
	}
	cam.Orbit(7, 0)
	if cam.Yaw < -2*math.Pi || cam.Yaw > 2*math.Pi {
		t.Errorf("yaw %f not wrapped", cam.Yaw)
	}
}

func TestZoomClamps(t *testing.T) {
	cam := New(640, 480, DefaultParams())
	cam.ZoomBy(0.01)
	if cam.Distance != cam.MinDistance {
		t.Errorf("distance = %f, want min %f", cam.Distance, cam.MinDistance)
	}
	cam.ZoomBy(1000)
	if cam.Distance != cam.MaxDistance {
		t.Errorf("distance = %f, want max %f", cam.Distance, cam.MaxDistance)
	}
	cam.Reset()
	if cam.Distance != 32 || cam.Yaw != DefaultParams().Yaw {
		t.Errorf("reset left distance %f yaw %f", cam.Distance, cam.Yaw)
	}
}

func TestPickLocalAtCenter(t *testing.T) {
	cam := New(640, 480, DefaultParams())
	p := cam.PickLocal(320, 240)
	if p.Len() > 1e-3 {
		t.Errorf("center pick = %v, want origin", p)
	}

	// A pick right of center moves along the camera's right vector.
	right := cam.PickLocal(480, 240)
	if right.Len() < 0.1 {
		t.Errorf("off-center pick %v too close to origin", right)
	}
}
