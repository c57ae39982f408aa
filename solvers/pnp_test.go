package solvers

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/rimage/transform"

	"autoaim/utils"
)

func testIntrinsics() *transform.PinholeCameraIntrinsics {
	return &transform.PinholeCameraIntrinsics{
		Width:  1280,
		Height: 720,
		Fx:     1000,
		Fy:     1000,
		Ppx:    640,
		Ppy:    360,
	}
}

// projectPlate renders the four plate corners at a camera-frame pose
// (rotation about the camera's vertical axis by yaw, then translation)
// into a detection, using the same canonical keypoint order as the solver.
func projectPlate(intr *transform.PinholeCameraIntrinsics, yaw float64, t r3.Vector) utils.ArmorDetection {
	c, s := math.Cos(yaw), math.Sin(yaw)
	// Rotation about camera Y (image-down vertical axis).
	rot := [3][3]float64{
		{c, 0, s},
		{0, 1, 0},
		{-s, 0, c},
	}

	var px [4]r2.Point
	for i, p := range platePoints {
		pc := rotatePoint(rot, p, t)
		u, v := intr.PointToPixel(pc.X, pc.Y, pc.Z)
		px[i] = r2.Point{X: u, Y: v}
	}

	det := utils.ArmorDetection{Class: "standard"}
	det.LeftLight.Top = px[0]
	det.LeftLight.Bottom = px[1]
	det.RightLight.Top = px[2]
	det.RightLight.Bottom = px[3]
	return det
}

func newTestSolver(t *testing.T, cfg Config) *IPPESolver {
	t.Helper()
	solver, err := NewIPPESolver(cfg, logging.NewTestLogger(t))
	require.NoError(t, err)
	return solver
}

func TestEstimatePositionRoundTrip(t *testing.T) {
	intr := testIntrinsics()
	solver := newTestSolver(t, Config{Intrinsics: intr})

	cases := []struct {
		name string
		yaw  float64
		t    r3.Vector
	}{
		{"head on", 0, r3.Vector{X: 0, Y: 0, Z: 2.0}},
		{"yawed right", 0.3, r3.Vector{X: 0.1, Y: -0.05, Z: 3.0}},
		{"yawed left", -0.4, r3.Vector{X: -0.2, Y: 0.1, Z: 1.5}},
		{"far", 0.15, r3.Vector{X: 0.3, Y: 0.05, Z: 5.0}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			det := projectPlate(intr, tc.yaw, tc.t)
			est, err := solver.EstimatePosition(det)
			require.NoError(t, err)
			require.NotNil(t, est, "expected a solved pose")

			// Position is remapped: forward = camera Z, lateral = camera X,
			// vertical = camera Y.
			assert.InDelta(t, tc.t.Z, est.Position.X, 1e-3, "forward")
			assert.InDelta(t, tc.t.X, est.Position.Y, 1e-3, "lateral")
			assert.InDelta(t, tc.t.Y, est.Position.Z, 1e-3, "vertical")
			assert.InDelta(t, tc.yaw, est.Yaw, 1e-3, "plate yaw")
			assert.False(t, math.IsNaN(est.Yaw))
		})
	}
}

func TestEstimatePositionRoundTripWithRefinement(t *testing.T) {
	intr := testIntrinsics()
	solver := newTestSolver(t, Config{Intrinsics: intr, Refine: true})

	det := projectPlate(intr, 0.25, r3.Vector{X: 0.05, Y: 0.02, Z: 2.5})
	est, err := solver.EstimatePosition(det)
	require.NoError(t, err)
	require.NotNil(t, est)
	assert.InDelta(t, 2.5, est.Position.X, 1e-3)
	assert.InDelta(t, 0.25, est.Yaw, 1e-3)
}

func TestEstimatePositionCollinearKeypoints(t *testing.T) {
	solver := newTestSolver(t, Config{Intrinsics: testIntrinsics()})

	det := utils.ArmorDetection{Class: "standard"}
	det.LeftLight.Top = r2.Point{X: 100, Y: 200}
	det.LeftLight.Bottom = r2.Point{X: 200, Y: 200}
	det.RightLight.Top = r2.Point{X: 300, Y: 200}
	det.RightLight.Bottom = r2.Point{X: 400, Y: 200}

	est, err := solver.EstimatePosition(det)
	require.NoError(t, err, "degenerate geometry is not an error")
	assert.Nil(t, est, "collinear keypoints must yield no pose")
}

func TestEstimatePositionCoincidentKeypoints(t *testing.T) {
	solver := newTestSolver(t, Config{Intrinsics: testIntrinsics()})

	det := utils.ArmorDetection{Class: "standard"}
	p := r2.Point{X: 640, Y: 360}
	det.LeftLight = utils.LightBar{Top: p, Bottom: p}
	det.RightLight = utils.LightBar{Top: p, Bottom: p}

	est, err := solver.EstimatePosition(det)
	require.NoError(t, err)
	assert.Nil(t, est)
}

func TestEstimatePositionOutOfFrameKeypoints(t *testing.T) {
	intr := testIntrinsics()
	solver := newTestSolver(t, Config{Intrinsics: intr})

	det := projectPlate(intr, 0, r3.Vector{X: 0, Y: 0, Z: 2.0})
	det.LeftLight.Top.X = -50 // dragged off the sensor

	est, err := solver.EstimatePosition(det)
	require.NoError(t, err)
	assert.Nil(t, est)
}

func TestEstimatePositionMalformedKeypoints(t *testing.T) {
	solver := newTestSolver(t, Config{Intrinsics: testIntrinsics()})

	det := utils.ArmorDetection{Class: "standard"}
	det.RightLight.Bottom = r2.Point{X: math.NaN(), Y: 100}

	est, err := solver.EstimatePosition(det)
	assert.Error(t, err, "non-finite keypoints are a caller bug")
	assert.Nil(t, est)
}

func TestNewIPPESolverRejectsBadConfig(t *testing.T) {
	logger := logging.NewTestLogger(t)

	_, err := NewIPPESolver(Config{}, logger)
	assert.Error(t, err, "nil intrinsics")

	_, err = NewIPPESolver(Config{Intrinsics: &transform.PinholeCameraIntrinsics{Fx: 0, Fy: 1000}}, logger)
	assert.Error(t, err, "zero focal length")
}

func TestRodriguesRoundTrip(t *testing.T) {
	vectors := []r3.Vector{
		{X: 0.1, Y: -0.2, Z: 0.3},
		{X: 0, Y: 1.2, Z: 0},
		{},
	}
	for _, v := range vectors {
		m := matrixFromRodrigues(v)
		back, ok := rodriguesFromMatrix(m)
		require.True(t, ok)
		assert.InDelta(t, v.X, back.X, 1e-9)
		assert.InDelta(t, v.Y, back.Y, 1e-9)
		assert.InDelta(t, v.Z, back.Z, 1e-9)
	}
}
