// Package aiming hosts the per-frame auto-aim pipeline: it preprocesses
// detections into body-frame pose tuples, delegates target selection to the
// tracker, and applies posterior ballistic calibration to the chosen aim
// angles.
package aiming

import (
	"errors"
	"fmt"

	"go.viam.com/rdk/logging"

	"autoaim/ballistics"
	"autoaim/solvers"
	"autoaim/trackers"
	"autoaim/transforms"
	"autoaim/utils"
)

type Config struct {
	// DropFailedPoses excludes armors whose pose solve failed before they
	// reach the tracker. Default false: failed-pose armors are forwarded
	// with PoseValid unset so the tracker can keep associating by bounding box.
	DropFailedPoses bool
}

// Aimer converts one frame of armor detections plus gimbal state into a
// single calibrated aim command. It owns the tracker instance across frames
// and must be called from a single frame loop: no internal queuing or
// parallelism is provided, and backpressure is the caller's job.
type Aimer struct {
	cfg       Config
	logger    logging.Logger
	solver    solvers.PoseSolver
	frames    transforms.FrameTransformer
	tracker   trackers.Tracker
	corrector ballistics.Corrector
}

func New(
	cfg Config,
	solver solvers.PoseSolver,
	frames transforms.FrameTransformer,
	tracker trackers.Tracker,
	corrector ballistics.Corrector,
	logger logging.Logger,
) (*Aimer, error) {
	if solver == nil {
		return nil, errors.New("pose solver is required")
	}
	if frames == nil {
		return nil, errors.New("frame transformer is required")
	}
	if tracker == nil {
		return nil, errors.New("tracker is required")
	}
	if corrector == nil {
		return nil, errors.New("ballistic corrector is required")
	}
	return &Aimer{
		cfg:       cfg,
		logger:    logger,
		solver:    solver,
		frames:    frames,
		tracker:   tracker,
		corrector: corrector,
	}, nil
}

// Preprocess solves every detection's pose and expresses it in the robot
// body frame. Output order follows input order, one entry per detection
// (unless DropFailedPoses is set), so trackers can rely on index stability.
func (a *Aimer) Preprocess(detections []utils.ArmorDetection, gimbal utils.GimbalState) ([]utils.ObservedArmor, error) {
	observed := make([]utils.ObservedArmor, 0, len(detections))

	for i, det := range detections {
		est, err := a.solver.EstimatePosition(det)
		if err != nil {
			return nil, fmt.Errorf("detection %d: %w", i, err)
		}

		armor := utils.ObservedArmor{Class: det.Class, BBox: det.BBox}
		if est != nil {
			inBarrel := transforms.ApplyPose(a.frames.CameraToBarrel(), est.Position)
			armor.Position = a.frames.BarrelToRobot(gimbal.Yaw, gimbal.Pitch, inBarrel)
			armor.Yaw = est.Yaw
			armor.PoseValid = true
		} else if a.cfg.DropFailedPoses {
			continue
		}
		observed = append(observed, armor)
	}
	return observed, nil
}

// ProcessOne runs the full pipeline for one frame. It returns nil, nil when
// the tracker commits to no target: that is the normal "do not fire this
// frame" outcome. An unrecognized enemy team is a caller bug and fails
// immediately.
func (a *Aimer) ProcessOne(detections []utils.ArmorDetection, enemyTeam utils.Team, gimbal utils.GimbalState) (*utils.AimResult, error) {
	if !enemyTeam.Valid() {
		return nil, fmt.Errorf("unrecognized enemy team %q: must be %q or %q", enemyTeam, utils.TeamRed, utils.TeamBlue)
	}

	observed, err := a.Preprocess(detections, gimbal)
	if err != nil {
		return nil, err
	}

	target, err := a.tracker.ProcessOne(observed, gimbal)
	if err != nil {
		return nil, fmt.Errorf("tracker failed: %w", err)
	}
	if target == nil {
		return nil, nil
	}

	calibratedPitch, calibratedYaw := a.posteriorCalibration(target.Pitch, target.Yaw, target.Distance)

	return &utils.AimResult{
		AbsYaw:            calibratedYaw,
		AbsPitch:          calibratedPitch,
		UncalibratedYaw:   target.Yaw,
		UncalibratedPitch: target.Pitch,
		TargetDist:        target.Distance,
	}, nil
}

// posteriorCalibration corrects the tracker's raw angles for physical
// effects. Pitch is lowered by the gravity drop correction; yaw is passed
// through unmodified (lateral drift is not modeled).
func (a *Aimer) posteriorCalibration(rawPitch, rawYaw, targetDist float64) (pitch, yaw float64) {
	pitchDiff := a.corrector.PitchDrop(targetDist)
	return rawPitch - pitchDiff, rawYaw
}
