// trajectory/trajectory.go
// Copyright(c) 2025 flightctl contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package trajectory describes desired motion as a function of elapsed
// time, in seconds, over the x, y, z and yaw axes.
package trajectory

import (
	"errors"
	"sync"

	"github.com/flightctl/flightctl/flight"
	"github.com/flightctl/flightctl/math"
)

// MaxAbsoluteVelocity bounds the speed, in m/s, that the built-in
// trajectories may ask for.
const MaxAbsoluteVelocity = 1.0

var (
	ErrNonPositiveDuration = errors.New("trajectory duration must be positive")
	ErrInvalidSpeed        = errors.New("trajectory speed must be in (0, MaxAbsoluteVelocity]")
	ErrTooFast             = errors.New("trajectory exceeds MaxAbsoluteVelocity")
	ErrInvalidRadius       = errors.New("radius must be positive")
	ErrInvalidFrequency    = errors.New("frequency must be positive")
	ErrEmptyChoreography   = errors.New("choreography has no segments")
	ErrZeroLength          = errors.New("straight line has the same start and end pose")
)

type Trajectory interface {
	DesiredPose(t float64) flight.Pose
	DesiredVelocity(t float64) flight.InertialFrameVelocity
}

// Finite is a trajectory with a fixed duration, in seconds.
type Finite interface {
	Trajectory
	Duration() float64
}

///////////////////////////////////////////////////////////////////////////
// Hold

type hold struct {
	p flight.Pose
}

// Hold returns a trajectory that stays at p with zero velocity.
func Hold(p flight.Pose) Trajectory {
	return hold{p: p}
}

func (h hold) DesiredPose(float64) flight.Pose { return h.p }

func (h hold) DesiredVelocity(float64) flight.InertialFrameVelocity {
	return flight.InertialFrameVelocity{}
}

///////////////////////////////////////////////////////////////////////////
// Linear

type linear struct {
	start flight.Pose
	v     flight.InertialFrameVelocity
}

// Linear returns a trajectory that starts at start and moves at the
// constant velocity v forever.
func Linear(start flight.Pose, v flight.InertialFrameVelocity) Trajectory {
	return linear{start: start, v: v}
}

func (l linear) DesiredPose(t float64) flight.Pose {
	return flight.Pose{
		X:   l.start.X + l.v.LinearX*t,
		Y:   l.start.Y + l.v.LinearY*t,
		Z:   l.start.Z + l.v.LinearZ*t,
		Yaw: math.NormalizeAngle(l.start.Yaw + l.v.AngularZ*t),
	}
}

func (l linear) DesiredVelocity(float64) flight.InertialFrameVelocity { return l.v }

///////////////////////////////////////////////////////////////////////////
// WithDuration

type withDuration struct {
	Trajectory
	d float64
}

// WithDuration makes tr finite.
func WithDuration(tr Trajectory, d float64) (Finite, error) {
	if d <= 0 {
		return nil, ErrNonPositiveDuration
	}
	return withDuration{Trajectory: tr, d: d}, nil
}

func (w withDuration) Duration() float64 { return w.d }

///////////////////////////////////////////////////////////////////////////
// Anchored

// Anchored wraps a trajectory that is queried with an absolute time. The
// first time it sees becomes the start time; all queries are forwarded
// relative to it.
type Anchored struct {
	tr       Trajectory
	mu       sync.Mutex
	start    float64
	anchored bool
}

func NewAnchored(tr Trajectory) *Anchored {
	return &Anchored{tr: tr}
}

func (a *Anchored) relative(t float64) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.anchored {
		a.start = t
		a.anchored = true
	}
	return t - a.start
}

func (a *Anchored) DesiredPose(t float64) flight.Pose {
	return a.tr.DesiredPose(a.relative(t))
}

func (a *Anchored) DesiredVelocity(t float64) flight.InertialFrameVelocity {
	return a.tr.DesiredVelocity(a.relative(t))
}
