package utils

import (
	"fmt"
	"image"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

// Team is the color of the enemy robots we are allowed to engage.
type Team string

const (
	TeamRed  Team = "red"
	TeamBlue Team = "blue"
)

func (t Team) Valid() bool {
	return t == TeamRed || t == TeamBlue
}

// LightBar is one of the two vertical light strips framing an armor plate,
// given as top and bottom endpoints in image pixel coordinates.
type LightBar struct {
	Top    r2.Point
	Bottom r2.Point
}

// ArmorDetection is a single armor plate reported by the upstream detector
// for one frame. Keypoint order is fixed: left light then right light,
// top then bottom.
type ArmorDetection struct {
	Class      string
	BBox       image.Rectangle
	LeftLight  LightBar
	RightLight LightBar
}

// Keypoints returns the four keypoints in canonical order:
// left-top, left-bottom, right-top, right-bottom.
func (d ArmorDetection) Keypoints() [4]r2.Point {
	return [4]r2.Point{
		d.LeftLight.Top,
		d.LeftLight.Bottom,
		d.RightLight.Top,
		d.RightLight.Bottom,
	}
}

// Validate rejects detections whose keypoints are not finite pixel
// coordinates. A detection that fails here is a caller bug, not a
// recoverable solve failure.
func (d ArmorDetection) Validate() error {
	for i, kp := range d.Keypoints() {
		if math.IsNaN(kp.X) || math.IsNaN(kp.Y) || math.IsInf(kp.X, 0) || math.IsInf(kp.Y, 0) {
			return fmt.Errorf("armor detection %q: keypoint %d is not finite: (%v, %v)", d.Class, i, kp.X, kp.Y)
		}
	}
	return nil
}

// GimbalState is the absolute orientation of the gimbal barrel relative to
// the robot body at frame-capture time, in radians.
type GimbalState struct {
	Yaw   float64
	Pitch float64
}

// PoseEstimate is a solved armor pose: position in meters in the robot body
// frame (X forward, Y lateral, Z vertical) and the plate's yaw in radians
// relative to the enemy robot's heading.
type PoseEstimate struct {
	Position r3.Vector
	Yaw      float64
}

// ObservedArmor is one preprocessed detection handed to the tracker.
// PoseValid is false when the pose solve failed for this detection; the
// detection is still forwarded so the tracker sees the full frame.
type ObservedArmor struct {
	Class     string
	BBox      image.Rectangle
	Position  r3.Vector
	Yaw       float64
	PoseValid bool
}

// TrackedTarget is the single target the tracker committed to this frame:
// distance in meters and absolute pitch/yaw in radians, uncalibrated.
type TrackedTarget struct {
	Distance float64
	Pitch    float64
	Yaw      float64
}

// AimResult is the calibrated aim command for one frame. The raw tracker
// angles are kept alongside the calibrated ones for diagnostics.
type AimResult struct {
	AbsYaw            float64
	AbsPitch          float64
	UncalibratedYaw   float64
	UncalibratedPitch float64
	TargetDist        float64
}
