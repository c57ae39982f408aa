package main

import (
	"flag"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/rimage/transform"
	"gocv.io/x/gocv"

	"autoaim/aiming"
	"autoaim/ballistics"
	"autoaim/recorder"
	"autoaim/solvers"
	"autoaim/trackers"
	"autoaim/transforms"
	"autoaim/utils"
)

// Runs the full auto-aim pipeline on a synthetic frame: an armor plate is
// placed at a known pose, projected through the camera model, and the
// resulting detection is fed back through the pose solver, frame transforms,
// selector, and ballistic calibration.
func main() {
	recordDir := flag.String("record", "", "optional folder to record annotated frames into")
	flag.Parse()

	if err := realMain(*recordDir); err != nil {
		panic(err)
	}
}

func realMain(recordDir string) error {
	logger := logging.NewLogger("cli")

	intrinsics := &transform.PinholeCameraIntrinsics{
		Width:  1280,
		Height: 720,
		Fx:     1000,
		Fy:     1000,
		Ppx:    640,
		Ppy:    360,
	}

	solver, err := solvers.NewIPPESolver(solvers.Config{Intrinsics: intrinsics}, logger)
	if err != nil {
		return err
	}
	corrector, err := ballistics.NewFlatTrajectoryModel(15.0)
	if err != nil {
		return err
	}
	frames := transforms.NewGimbalFrames(transforms.Config{})
	aimer, err := aiming.New(aiming.Config{}, solver, frames, trackers.NewNearestSelector(logger), corrector, logger)
	if err != nil {
		return err
	}

	// A plate 3m ahead, slightly left and yawed.
	detection := syntheticDetection(intrinsics, 0.2, r3.Vector{X: -0.3, Y: 0.05, Z: 3.0})
	gimbal := utils.GimbalState{Yaw: 0, Pitch: 0}

	result, err := aimer.ProcessOne([]utils.ArmorDetection{detection}, utils.TeamRed, gimbal)
	if err != nil {
		return err
	}
	if result == nil {
		logger.Info("no target this frame")
		return nil
	}
	logger.Infof("aim command: yaw=%.4f pitch=%.4f (raw yaw=%.4f pitch=%.4f) dist=%.2fm",
		result.AbsYaw, result.AbsPitch, result.UncalibratedYaw, result.UncalibratedPitch, result.TargetDist)

	if recordDir != "" {
		return recordAnnotatedFrame(recordDir, intrinsics, detection, logger)
	}
	return nil
}

// syntheticDetection projects the four plate corners at a camera-frame pose
// (yaw about the vertical axis, then translation) into pixel keypoints.
func syntheticDetection(intrinsics *transform.PinholeCameraIntrinsics, yaw float64, center r3.Vector) utils.ArmorDetection {
	corners := [4]r3.Vector{
		{X: -0.065, Y: -0.03125},
		{X: -0.065, Y: 0.03125},
		{X: 0.065, Y: -0.03125},
		{X: 0.065, Y: 0.03125},
	}

	var px [4]r2.Point
	for i, c := range corners {
		rotated := r3.Vector{
			X: c.X*math.Cos(yaw) + c.Z*math.Sin(yaw),
			Y: c.Y,
			Z: -c.X*math.Sin(yaw) + c.Z*math.Cos(yaw),
		}
		p := rotated.Add(center)
		u, v := intrinsics.PointToPixel(p.X, p.Y, p.Z)
		px[i] = r2.Point{X: u, Y: v}
	}

	det := utils.ArmorDetection{Class: "standard"}
	det.LeftLight = utils.LightBar{Top: px[0], Bottom: px[1]}
	det.RightLight = utils.LightBar{Top: px[2], Bottom: px[3]}
	return det
}

func recordAnnotatedFrame(dir string, intrinsics *transform.PinholeCameraIntrinsics, det utils.ArmorDetection, logger logging.Logger) error {
	rec, err := recorder.New(recorder.Config{
		BaseFolder: dir,
		Width:      intrinsics.Width,
		Height:     intrinsics.Height,
	}, logger)
	if err != nil {
		return err
	}
	defer rec.Close()

	img := gocv.NewMatWithSize(intrinsics.Height, intrinsics.Width, gocv.MatTypeCV8UC3)
	defer img.Close()

	recorder.DrawCrosshair(&img, 100, 2, recorder.ParseOverlayColor("green"), true)
	recorder.DrawDetectionBox(&img, det.BBox, recorder.ParseOverlayColor("red"), 2)
	return rec.ProcessFrame(img)
}
