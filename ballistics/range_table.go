package ballistics

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// RangeSample is one measured calibration point: how much extra elevation a
// target at a known distance needed.
type RangeSample struct {
	DistanceM float64
	DropRad   float64
}

// RangeTableModel fits measured drop samples with a quadratic through the
// origin, drop = a1*d + a2*d^2, so the zero-at-zero contract holds by
// construction. Beyond the furthest sample the fit is extended linearly with
// the endpoint slope to keep the correction monotonic.
type RangeTableModel struct {
	a1, a2   float64
	maxDist  float64
	endDrop  float64
	endSlope float64
}

func NewRangeTableModel(samples []RangeSample) (*RangeTableModel, error) {
	if len(samples) < 2 {
		return nil, fmt.Errorf("need at least 2 range samples, got %d", len(samples))
	}

	maxDist := 0.0
	a := mat.NewDense(len(samples), 2, nil)
	b := mat.NewDense(len(samples), 1, nil)
	for i, s := range samples {
		if s.DistanceM <= 0 {
			return nil, fmt.Errorf("sample %d: distance must be positive, got %v", i, s.DistanceM)
		}
		if s.DropRad < 0 {
			return nil, fmt.Errorf("sample %d: drop must be non-negative, got %v", i, s.DropRad)
		}
		a.Set(i, 0, s.DistanceM)
		a.Set(i, 1, s.DistanceM*s.DistanceM)
		b.Set(i, 0, s.DropRad)
		if s.DistanceM > maxDist {
			maxDist = s.DistanceM
		}
	}

	// Least squares via QR
	var qr mat.QR
	qr.Factorize(a)
	var coeffs mat.Dense
	if err := qr.SolveTo(&coeffs, false, b); err != nil {
		return nil, fmt.Errorf("failed to fit range table: %w", err)
	}

	m := &RangeTableModel{
		a1:      coeffs.At(0, 0),
		a2:      coeffs.At(1, 0),
		maxDist: maxDist,
	}
	m.endDrop = m.a1*maxDist + m.a2*maxDist*maxDist
	m.endSlope = m.a1 + 2*m.a2*maxDist

	// The derivative a1 + 2*a2*d is linear, so checking both ends of the
	// fitted range covers the whole interval.
	if m.a1 < 0 || m.endSlope < 0 {
		return nil, ErrNotMonotonic
	}
	return m, nil
}

func (m *RangeTableModel) PitchDrop(distanceM float64) float64 {
	if distanceM <= 0 {
		return 0
	}
	if distanceM > m.maxDist {
		return m.endDrop + m.endSlope*(distanceM-m.maxDist)
	}
	return m.a1*distanceM + m.a2*distanceM*distanceM
}
