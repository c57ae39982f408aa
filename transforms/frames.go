package transforms

import (
	"github.com/golang/geo/r3"
	"go.viam.com/rdk/spatialmath"
)

// FrameTransformer maps points between the camera, gimbal-barrel, and robot
// body frames. Both transforms must be rigid: downstream distance-based
// calibration depends on preserved magnitudes.
type FrameTransformer interface {
	// CameraToBarrel is the fixed rigid transform from the camera frame into
	// the gimbal-barrel frame, independent of gimbal angle.
	CameraToBarrel() spatialmath.Pose

	// BarrelToRobot rotates a barrel-frame point into the robot body frame
	// using the current gimbal angles, undoing the gimbal's own rotation so
	// armors are expressed in a chassis-fixed frame. With both angles zero
	// this is the identity.
	BarrelToRobot(gimbalYaw, gimbalPitch float64, pt r3.Vector) r3.Vector
}

// Config describes the camera's mounting relative to the barrel: a
// translation offset in meters and a fixed roll/pitch/yaw in radians.
type Config struct {
	CameraOffset r3.Vector
	CameraRoll   float64
	CameraPitch  float64
	CameraYaw    float64
}

// GimbalFrames is the default FrameTransformer for a camera rigidly mounted
// on the gimbal barrel.
type GimbalFrames struct {
	camToBarrel spatialmath.Pose
}

func NewGimbalFrames(cfg Config) *GimbalFrames {
	orientation := &spatialmath.EulerAngles{
		Roll:  cfg.CameraRoll,
		Pitch: cfg.CameraPitch,
		Yaw:   cfg.CameraYaw,
	}
	return &GimbalFrames{
		camToBarrel: spatialmath.NewPose(cfg.CameraOffset, orientation),
	}
}

func (g *GimbalFrames) CameraToBarrel() spatialmath.Pose {
	return g.camToBarrel
}

func (g *GimbalFrames) BarrelToRobot(gimbalYaw, gimbalPitch float64, pt r3.Vector) r3.Vector {
	rotation := spatialmath.NewPose(r3.Vector{}, &spatialmath.EulerAngles{
		Pitch: gimbalPitch,
		Yaw:   gimbalYaw,
	})
	return ApplyPose(rotation, pt)
}

// ApplyPose transforms a point by a pose using Viam's internal pose math.
func ApplyPose(pose spatialmath.Pose, pt r3.Vector) r3.Vector {
	return spatialmath.Compose(pose, spatialmath.NewPoseFromPoint(pt)).Point()
}
