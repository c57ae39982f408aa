package trackers

import (
	"autoaim/utils"
)

// Tracker is the long-lived multi-frame component that associates armors
// across frames, predicts motion, and commits to a single target. It is
// exclusively owned and sequentially accessed by the aim orchestrator: it
// must see one complete, order-stable snapshot of each frame's observed
// armors (the orchestrator preserves detection order, and trackers may rely
// on it for association).
//
// A nil target with a nil error is the normal "nothing to shoot this frame"
// outcome, not an error.
type Tracker interface {
	ProcessOne(observed []utils.ObservedArmor, gimbal utils.GimbalState) (*utils.TrackedTarget, error)
}
