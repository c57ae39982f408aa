package trackers

import (
	"go.viam.com/rdk/logging"

	"autoaim/utils"
)

// NearestSelector is a stateless fallback Tracker: it picks the closest
// armor with a valid pose each frame and aims at it directly. It does no
// cross-frame association or motion prediction; it exists so the pipeline
// can run end to end before a real tracker is plugged in, and as a
// deterministic collaborator in tests.
type NearestSelector struct {
	logger logging.Logger
}

func NewNearestSelector(logger logging.Logger) *NearestSelector {
	return &NearestSelector{logger: logger}
}

func (s *NearestSelector) ProcessOne(observed []utils.ObservedArmor, gimbal utils.GimbalState) (*utils.TrackedTarget, error) {
	bestDist := 0.0
	found := false
	var best utils.ObservedArmor

	for _, armor := range observed {
		if !armor.PoseValid {
			continue
		}
		dist := armor.Position.Norm()
		if !found || dist < bestDist {
			best = armor
			bestDist = dist
			found = true
		}
	}
	if !found {
		return nil, nil
	}

	yaw, pitch := utils.CalculateYawPitch(best.Position)
	s.logger.Debugf("selected armor %q at %.2fm, yaw=%.3f pitch=%.3f", best.Class, bestDist, yaw, pitch)
	return &utils.TrackedTarget{Distance: bestDist, Pitch: pitch, Yaw: yaw}, nil
}
