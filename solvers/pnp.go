package solvers

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/rimage/transform"
	"go.viam.com/rdk/spatialmath"
	"gonum.org/v1/gonum/optimize"

	"autoaim/utils"
)

// Armor board model: a planar rectangle of fixed physical size, centered at
// the plate origin, coplanar at z=0. Half extents in meters.
// FIXME: distinguish small and large armors
const (
	plateHalfWidthM  = 0.065
	plateHalfHeightM = 0.03125
)

// platePoints are the 3D model points in the canonical keypoint order:
// left-top, left-bottom, right-top, right-bottom. Y is image-down.
var platePoints = [4]r3.Vector{
	{X: -plateHalfWidthM, Y: -plateHalfHeightM, Z: 0},
	{X: -plateHalfWidthM, Y: plateHalfHeightM, Z: 0},
	{X: plateHalfWidthM, Y: -plateHalfHeightM, Z: 0},
	{X: plateHalfWidthM, Y: plateHalfHeightM, Z: 0},
}

// PoseSolver recovers a 3D pose from one armor detection's keypoints.
// A nil estimate with a nil error means the solve failed for this detection;
// that is a normal outcome and the detection should simply carry no pose.
type PoseSolver interface {
	EstimatePosition(armor utils.ArmorDetection) (*utils.PoseEstimate, error)
}

const defaultMaxReprojErrorPx = 10.0

type Config struct {
	// Intrinsics is the pre-calibrated pinhole model. Lens distortion is
	// assumed removed upstream; no runtime correction is applied.
	Intrinsics *transform.PinholeCameraIntrinsics

	// MaxReprojErrorPx rejects poses whose worst corner reprojects further
	// than this many pixels from the observation. Defaults to 10.
	MaxReprojErrorPx float64

	// Refine polishes the closed-form pose by minimizing reprojection error.
	Refine bool
}

func (cfg *Config) validate() error {
	if cfg.Intrinsics == nil {
		return errors.New("camera intrinsics are required")
	}
	if cfg.Intrinsics.Fx <= 0 || cfg.Intrinsics.Fy <= 0 {
		return fmt.Errorf("invalid focal lengths: fx=%v fy=%v", cfg.Intrinsics.Fx, cfg.Intrinsics.Fy)
	}
	if cfg.MaxReprojErrorPx == 0 {
		cfg.MaxReprojErrorPx = defaultMaxReprojErrorPx
	}
	if cfg.MaxReprojErrorPx < 0 {
		return errors.New("max_reproj_error_px must be non-negative")
	}
	return nil
}

// IPPESolver solves the planar perspective-4-point problem: homography from
// the plate model to the observed keypoints, decomposed into a single
// unambiguous pose with the plate in front of the camera.
type IPPESolver struct {
	cfg    Config
	logger logging.Logger
}

func NewIPPESolver(cfg Config, logger logging.Logger) (*IPPESolver, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid solver config: %w", err)
	}
	return &IPPESolver{cfg: cfg, logger: logger}, nil
}

// EstimatePosition solves one armor's pose. The returned position is in the
// forward/lateral/vertical axis convention (forward = solver Z, lateral =
// solver X, vertical = solver Y), in meters; yaw is the plate's rotation
// about the vertical axis in (-pi, pi]. A malformed detection is an error;
// an unsolvable one returns nil, nil.
func (s *IPPESolver) EstimatePosition(armor utils.ArmorDetection) (*utils.PoseEstimate, error) {
	if err := armor.Validate(); err != nil {
		return nil, err
	}
	img := armor.Keypoints()

	if s.cfg.Intrinsics.Width > 0 && s.cfg.Intrinsics.Height > 0 {
		for _, kp := range img {
			if kp.X < 0 || kp.Y < 0 || kp.X >= float64(s.cfg.Intrinsics.Width) || kp.Y >= float64(s.cfg.Intrinsics.Height) {
				s.logger.Debugf("keypoint (%.1f, %.1f) outside the image for armor %q, skipping", kp.X, kp.Y, armor.Class)
				return nil, nil
			}
		}
	}

	var obj [4]r2.Point
	for i, p := range platePoints {
		obj[i] = r2.Point{X: p.X, Y: p.Y}
	}

	h, ok := estimateHomography(obj, img)
	if !ok {
		s.logger.Debugf("degenerate keypoint configuration for armor %q, skipping", armor.Class)
		return nil, nil
	}

	r, t, ok := poseFromHomography(h, s.cfg.Intrinsics)
	if !ok {
		return nil, nil
	}

	if s.cfg.Refine {
		r, t = s.refinePose(r, t, img)
	}

	if reprojErr := s.reprojectionError(r, t, img); reprojErr > s.cfg.MaxReprojErrorPx {
		s.logger.Debugf("rejecting pose for armor %q: reprojection error %.2fpx", armor.Class, reprojErr)
		return nil, nil
	}

	yaw, ok := plateYaw(r)
	if !ok {
		return nil, nil
	}

	// Remap the solver's camera-forward-Z translation into the system's
	// forward/lateral/vertical convention.
	pos := r3.Vector{X: t.Z, Y: t.X, Z: t.Y}
	if math.IsNaN(pos.X) || math.IsNaN(pos.Y) || math.IsNaN(pos.Z) ||
		math.IsInf(pos.X, 0) || math.IsInf(pos.Y, 0) || math.IsInf(pos.Z, 0) {
		return nil, nil
	}

	return &utils.PoseEstimate{Position: pos, Yaw: yaw}, nil
}

// reprojectionError is the worst corner's pixel distance between the
// observed keypoint and the model point projected through the pose.
func (s *IPPESolver) reprojectionError(r [3][3]float64, t r3.Vector, img [4]r2.Point) float64 {
	maxErr := 0.0
	for i, p := range platePoints {
		pc := rotatePoint(r, p, t)
		if pc.Z <= 1e-9 {
			return math.Inf(1)
		}
		u, v := s.cfg.Intrinsics.PointToPixel(pc.X, pc.Y, pc.Z)
		if e := math.Hypot(u-img[i].X, v-img[i].Y); e > maxErr {
			maxErr = e
		}
	}
	return maxErr
}

func (s *IPPESolver) reprojectionSSE(r [3][3]float64, t r3.Vector, img [4]r2.Point) float64 {
	sum := 0.0
	for i, p := range platePoints {
		pc := rotatePoint(r, p, t)
		if pc.Z <= 1e-9 {
			return math.Inf(1)
		}
		u, v := s.cfg.Intrinsics.PointToPixel(pc.X, pc.Y, pc.Z)
		du, dv := u-img[i].X, v-img[i].Y
		sum += du*du + dv*dv
	}
	return sum
}

// refinePose polishes the closed-form pose with a derivative-free
// minimization of the summed squared reprojection error over the axis-angle
// rotation and the translation. The closed-form pose is kept whenever
// refinement fails or does not improve.
func (s *IPPESolver) refinePose(r [3][3]float64, t r3.Vector, img [4]r2.Point) ([3][3]float64, r3.Vector) {
	rv, ok := rodriguesFromMatrix(r)
	if !ok {
		return r, t
	}
	baseline := s.reprojectionSSE(r, t, img)

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			rot := matrixFromRodrigues(r3.Vector{X: x[0], Y: x[1], Z: x[2]})
			return s.reprojectionSSE(rot, r3.Vector{X: x[3], Y: x[4], Z: x[5]}, img)
		},
	}
	x0 := []float64{rv.X, rv.Y, rv.Z, t.X, t.Y, t.Z}

	result, err := optimize.Minimize(problem, x0, nil, &optimize.NelderMead{})
	if err != nil || result == nil || math.IsNaN(result.F) || result.F >= baseline {
		return r, t
	}
	refinedR := matrixFromRodrigues(r3.Vector{X: result.X[0], Y: result.X[1], Z: result.X[2]})
	refinedT := r3.Vector{X: result.X[3], Y: result.X[4], Z: result.X[5]}
	return refinedR, refinedT
}

// plateYaw extracts the plate's rotation about the vertical axis. The
// rotation is first conjugated by the same axis permutation used for the
// translation (forward = camera Z, lateral = camera X, vertical = camera Y)
// so the vertical axis lines up with the Euler yaw axis.
func plateYaw(r [3][3]float64) (float64, bool) {
	perm := [3]int{2, 0, 1}
	data := make([]float64, 0, 9)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			data = append(data, r[perm[i]][perm[j]])
		}
	}
	rm, err := spatialmath.NewRotationMatrix(data)
	if err != nil {
		return 0, false
	}
	yaw := rm.EulerAngles().Yaw
	if math.IsNaN(yaw) {
		return 0, false
	}
	return utils.WrapToPi(yaw), true
}
