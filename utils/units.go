package utils

import (
	"math"

	"github.com/golang/geo/r3"
)

// Clamp clamps a value between min and max
func Clamp(value, min, max float64) float64 {
	return math.Max(min, math.Min(max, value))
}

func DegreesToRadians(degrees float64) float64 {
	return degrees * math.Pi / 180.0
}

func RadiansToDegrees(radians float64) float64 {
	return radians * 180.0 / math.Pi
}

// WrapToPi normalizes an angle to (-pi, pi].
func WrapToPi(angle float64) float64 {
	wrapped := math.Mod(angle, 2*math.Pi)
	if wrapped > math.Pi {
		wrapped -= 2 * math.Pi
	} else if wrapped <= -math.Pi {
		wrapped += 2 * math.Pi
	}
	return wrapped
}

// CalculateYawPitch returns the absolute yaw and pitch angles pointing at a
// body-frame position (X forward, Y lateral, Z vertical with the camera's
// down-positive convention carried through).
func CalculateYawPitch(position r3.Vector) (yawRad, pitchRad float64) {
	x, y, z := position.X, position.Y, position.Z

	// Yaw: atan2(y, x)
	yawRad = math.Atan2(y, x)

	// Pitch: atan2(-z, sqrt(x^2 + y^2))
	rXY := math.Sqrt(x*x + y*y)
	pitchRad = math.Atan2(-z, rXY) // Negative because +pitch = up = -Z (image-down vertical axis)

	return yawRad, pitchRad
}
