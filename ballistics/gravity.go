package ballistics

import (
	"errors"
	"fmt"
)

const gravityMPS2 = 9.81

// Corrector supplies the pitch correction that counteracts projectile drop.
// Implementations must be monotonic non-decreasing in distance and return
// exactly zero at zero distance, so calibration never increases the required
// elevation for near targets and never flips sign.
type Corrector interface {
	// PitchDrop returns the elevation correction in radians for a target at
	// the given distance in meters.
	PitchDrop(distanceM float64) float64
}

// FlatTrajectoryModel approximates gravity drop for a flat, drag-free
// trajectory at a fixed muzzle speed: drop angle = g*d / (2*v^2).
type FlatTrajectoryModel struct {
	muzzleSpeedMPS float64
}

func NewFlatTrajectoryModel(muzzleSpeedMPS float64) (*FlatTrajectoryModel, error) {
	if muzzleSpeedMPS <= 0 {
		return nil, fmt.Errorf("muzzle speed must be positive, got %v", muzzleSpeedMPS)
	}
	return &FlatTrajectoryModel{muzzleSpeedMPS: muzzleSpeedMPS}, nil
}

func (m *FlatTrajectoryModel) PitchDrop(distanceM float64) float64 {
	if distanceM <= 0 {
		return 0
	}
	return gravityMPS2 * distanceM / (2 * m.muzzleSpeedMPS * m.muzzleSpeedMPS)
}

// ErrNotMonotonic is returned when a fitted range table would violate the
// Corrector contract.
var ErrNotMonotonic = errors.New("fitted range table is not monotonic non-decreasing")
