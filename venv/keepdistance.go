// venv/keepdistance.go
// Copyright(c) 2025 flightctl contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package venv

import (
	"github.com/flightctl/flightctl/flight"
)

// KeepDistance keeps a vehicle at least MinimumDistance away from the
// pose where the pheromone was dropped.
//
// While the vehicle is farther away than MinimumDistance it may move
// freely as long as its next position stays on its own side of the
// plane that passes through the dropper, normal to the line between the
// two, and at least MinimumDistance from it. Once it is at or inside
// MinimumDistance its velocity bounds collapse to zero and it hovers.
type KeepDistance struct {
	DropperPose     flight.Pose
	MinimumDistance float64
}

func NewKeepDistance(dropper flight.Pose, minimumDistance float64) (*KeepDistance, error) {
	if minimumDistance <= 0 {
		return nil, ErrInvalidMinimumDistance
	}
	return &KeepDistance{DropperPose: dropper, MinimumDistance: minimumDistance}, nil
}

// Gate returns 1 if the vehicle at pose is clear of the dropper and 0 if
// it is too close.
func (k *KeepDistance) Gate(pose flight.Pose) float64 {
	if flight.Distance(k.DropperPose, pose) > k.MinimumDistance {
		return 1
	}
	return 0
}

func (k *KeepDistance) AddConstraints(m *Model) {
	c := k.Gate(m.CurrentPose)
	if c == 0 {
		// Scaling the bounds would turn infinite ones into NaN.
		m.Hover()
	}

	n := m.CurrentPose.Position().Sub(k.DropperPose.Position())
	norm := n.Length()
	if norm == 0 {
		// No plane through coincident points; the gate already holds
		// the vehicle in place.
		return
	}

	// Signed distance of the next position p + vRef*dt from the plane
	// n·x - n·dropper = 0, which is norm + dt*(n·vRef)/norm.
	coeffs := [numAxes]float64{
		m.Dt * n[0] / norm,
		m.Dt * n[1] / norm,
		m.Dt * n[2] / norm,
		0,
	}
	m.AddGe(coeffs, c*k.MinimumDistance-norm)
}
