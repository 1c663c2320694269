// venv/model.go
// Copyright(c) 2025 flightctl contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package venv

import (
	"errors"
	"fmt"

	"github.com/flightctl/flightctl/flight"
	"github.com/flightctl/flightctl/math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// Axis indices into the 4-vectors used by Model.
const (
	AxisX = iota
	AxisY
	AxisZ
	AxisYaw
	numAxes
)

// Constraint requires Coeffs·vRef >= Rhs, where vRef is the commanded
// velocity expressed in the inertial frame (x, y, z, yaw rate).
type Constraint struct {
	Coeffs [numAxes]float64
	Rhs    float64
}

// Model is the optimization problem for one control step. The unknown is
// the body-frame velocity to command; the objective is the L1 distance
// between that velocity, rotated into the inertial frame, and the
// Reference velocity computed by the PD stage. Pheromones narrow the
// feasible set by tightening the body-velocity bounds and adding linear
// constraints on the inertial velocity.
type Model struct {
	CurrentPose     flight.Pose
	Reference       flight.InertialFrameVelocity
	Dt              float64 // control period, in seconds
	MinVelocity     float64
	MaxVelocity     float64
	MaxAcceleration float64

	lower, upper [numAxes]float64
	constraints  []Constraint
}

func NewModel(pose flight.Pose, reference flight.InertialFrameVelocity, dt, minVelocity, maxVelocity, maxAcceleration float64) (*Model, error) {
	if dt < 0 {
		return nil, ErrInvalidControlTimeDelta
	}
	if minVelocity > maxVelocity {
		return nil, fmt.Errorf("velocity bounds [%g, %g]: %w", minVelocity, maxVelocity, ErrInfeasible)
	}
	m := &Model{
		CurrentPose:     pose,
		Reference:       reference,
		Dt:              dt,
		MinVelocity:     minVelocity,
		MaxVelocity:     maxVelocity,
		MaxAcceleration: maxAcceleration,
	}
	for i := range numAxes {
		m.lower[i], m.upper[i] = minVelocity, maxVelocity
	}
	return m, nil
}

// LimitBodyVelocity intersects the bounds of every body-velocity axis
// with [lo, hi].
func (m *Model) LimitBodyVelocity(lo, hi float64) {
	for i := range numAxes {
		m.lower[i] = math.Max(m.lower[i], lo)
		m.upper[i] = math.Min(m.upper[i], hi)
	}
}

// Hover collapses the feasible set to the zero velocity.
func (m *Model) Hover() {
	m.LimitBodyVelocity(0, 0)
}

// Bounds returns the current per-axis body-velocity bounds.
func (m *Model) Bounds() (lower, upper [numAxes]float64) {
	return m.lower, m.upper
}

// AddGe adds the constraint coeffs·vRef >= rhs.
func (m *Model) AddGe(coeffs [numAxes]float64, rhs float64) {
	m.constraints = append(m.constraints, Constraint{Coeffs: coeffs, Rhs: rhs})
}

func (m *Model) Constraints() []Constraint {
	return m.constraints
}

// Solve returns the body-frame velocity that best tracks the reference
// while meeting all of the constraints.
//
// The linear program has eight variables: the body velocity b and, per
// axis, t_i >= |(R b)_i - ref_i| where R rotates by the current yaw.
// Minimizing sum(t) gives the L1 objective.
func (m *Model) Solve() (flight.BodyFrameVelocity, error) {
	for i := range numAxes {
		if m.lower[i] > m.upper[i] {
			return flight.BodyFrameVelocity{}, ErrInfeasible
		}
	}

	s, c := math.Sin(m.CurrentPose.Yaw), math.Cos(m.CurrentPose.Yaw)
	rot := [numAxes][numAxes]float64{
		{c, -s, 0, 0},
		{s, c, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
	ref := [numAxes]float64{m.Reference.LinearX, m.Reference.LinearY, m.Reference.LinearZ, m.Reference.AngularZ}

	const nVar = 2 * numAxes
	var rows [][nVar]float64
	var h []float64
	addRow := func(row [nVar]float64, rhs float64) {
		rows = append(rows, row)
		h = append(h, rhs)
	}

	for i := range numAxes {
		// (R b)_i - t_i <= ref_i and -(R b)_i - t_i <= -ref_i
		var up, down [nVar]float64
		for j := range numAxes {
			up[j], down[j] = rot[i][j], -rot[i][j]
		}
		up[numAxes+i], down[numAxes+i] = -1, -1
		addRow(up, ref[i])
		addRow(down, -ref[i])
	}

	for i := range numAxes {
		if m.upper[i] < math.Inf(1) {
			var row [nVar]float64
			row[i] = 1
			addRow(row, m.upper[i])
		}
		if m.lower[i] > math.Inf(-1) {
			var row [nVar]float64
			row[i] = -1
			addRow(row, -m.lower[i])
		}
	}

	for _, con := range m.constraints {
		// coeffs·(R b) >= rhs  <=>  -(coeffs·R) b <= -rhs
		var row [nVar]float64
		for j := range numAxes {
			for i := range numAxes {
				row[j] -= con.Coeffs[i] * rot[i][j]
			}
		}
		addRow(row, -con.Rhs)
	}

	g := mat.NewDense(len(rows), nVar, nil)
	for r, row := range rows {
		g.SetRow(r, row[:])
	}
	obj := make([]float64, nVar)
	for i := numAxes; i < nVar; i++ {
		obj[i] = 1
	}

	cNew, aNew, bNew := lp.Convert(obj, g, h, nil, nil)
	_, x, err := lp.Simplex(cNew, aNew, bNew, 1e-10, nil)
	if errors.Is(err, lp.ErrInfeasible) {
		return flight.BodyFrameVelocity{}, ErrInfeasible
	} else if err != nil {
		return flight.BodyFrameVelocity{}, fmt.Errorf("solving velocity model: %w", err)
	}

	// Convert splits each free variable into positive and negative parts.
	v := func(i int) float64 { return x[i] - x[nVar+i] }
	return flight.BodyFrameVelocity{LinearX: v(AxisX), LinearY: v(AxisY), LinearZ: v(AxisZ), AngularZ: v(AxisYaw)}, nil
}
