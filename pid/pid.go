// pid/pid.go
// Copyright(c) 2025 flightctl contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package pid implements the per-axis PID controllers that turn a goal
// pose and velocity into a velocity command.
package pid

import (
	"errors"
	"fmt"

	"github.com/flightctl/flightctl/flight"
	"github.com/flightctl/flightctl/math"
)

var (
	ErrGoalVelocityOutOfBounds = errors.New("goal velocity outside of the velocity bounds")
	ErrInvalidBounds           = errors.New("minimum bound is larger than the maximum bound")
)

// Parameters configures one axis. The velocity bounds clamp the output
// and the integral bounds clamp the accumulated error.
type Parameters struct {
	Kp               float64 `json:"kp"`
	Kd               float64 `json:"kd"`
	Ki               float64 `json:"ki"`
	MinVelocity      float64 `json:"min_velocity"`
	MaxVelocity      float64 `json:"max_velocity"`
	MinIntegralError float64 `json:"min_integral_error"`
	MaxIntegralError float64 `json:"max_integral_error"`
}

// DefaultParameters returns zero gains with unbounded clamps.
func DefaultParameters() Parameters {
	return Parameters{
		MinVelocity:      math.Inf(-1),
		MaxVelocity:      math.Inf(1),
		MinIntegralError: math.Inf(-1),
		MaxIntegralError: math.Inf(1),
	}
}

// WithGains returns DefaultParameters with the given gains.
func WithGains(kp, kd, ki float64) Parameters {
	p := DefaultParameters()
	p.Kp, p.Kd, p.Ki = kp, kd, ki
	return p
}

func (p Parameters) Validate() error {
	if p.MinVelocity > p.MaxVelocity {
		return fmt.Errorf("velocity [%g, %g]: %w", p.MinVelocity, p.MaxVelocity, ErrInvalidBounds)
	}
	if p.MinIntegralError > p.MaxIntegralError {
		return fmt.Errorf("integral error [%g, %g]: %w", p.MinIntegralError, p.MaxIntegralError, ErrInvalidBounds)
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////
// Controller1D

// Controller1D drives one axis towards a fixed goal. It is bound to its
// goal for its whole life and is not safe for concurrent use.
type Controller1D struct {
	params       Parameters
	goalPoint    float64
	goalVelocity float64
	accumulated  float64
}

func NewController1D(params Parameters, goalPoint, goalVelocity float64) (*Controller1D, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if goalVelocity < params.MinVelocity || goalVelocity > params.MaxVelocity {
		return nil, fmt.Errorf("%g not in [%g, %g]: %w", goalVelocity, params.MinVelocity, params.MaxVelocity,
			ErrGoalVelocityOutOfBounds)
	}
	return &Controller1D{params: params, goalPoint: goalPoint, goalVelocity: goalVelocity}, nil
}

// Compute returns the next velocity command.
func (c *Controller1D) Compute(current, currentVelocity float64) float64 {
	e := c.goalPoint - current
	c.accumulated = math.Clamp(c.accumulated+e, c.params.MinIntegralError, c.params.MaxIntegralError)

	v := c.params.Kp*e + c.params.Kd*(c.goalVelocity-currentVelocity) + c.params.Ki*c.accumulated
	return math.Clamp(v, c.params.MinVelocity, c.params.MaxVelocity)
}

// AccumulatedError returns the clamped integral of the error so far.
func (c *Controller1D) AccumulatedError() float64 {
	return c.accumulated
}

///////////////////////////////////////////////////////////////////////////
// Controller4D

type Parameters4D struct {
	LinearX  Parameters `json:"linear_x"`
	LinearY  Parameters `json:"linear_y"`
	LinearZ  Parameters `json:"linear_z"`
	AngularZ Parameters `json:"angular_z"`
}

// DefaultParameters4D returns PD gains that track the built-in
// trajectories well on a small quadrotor.
func DefaultParameters4D() Parameters4D {
	return Parameters4D{
		LinearX:  WithGains(2, 1, 0),
		LinearY:  WithGains(2, 1, 0),
		LinearZ:  WithGains(2, 1, 0),
		AngularZ: WithGains(0.5, 0.5, 0),
	}
}

// Controller4D runs one Controller1D per axis. The yaw axis works on the
// wrapped angle error so that it always turns the short way round.
type Controller4D struct {
	x, y, z, yaw *Controller1D
	goalYaw      float64
}

func NewController4D(params Parameters4D, goal flight.Pose, goalVelocity flight.InertialFrameVelocity) (*Controller4D, error) {
	c := &Controller4D{goalYaw: goal.Yaw}
	var err error
	if c.x, err = NewController1D(params.LinearX, goal.X, goalVelocity.LinearX); err != nil {
		return nil, fmt.Errorf("linear x: %w", err)
	}
	if c.y, err = NewController1D(params.LinearY, goal.Y, goalVelocity.LinearY); err != nil {
		return nil, fmt.Errorf("linear y: %w", err)
	}
	if c.z, err = NewController1D(params.LinearZ, goal.Z, goalVelocity.LinearZ); err != nil {
		return nil, fmt.Errorf("linear z: %w", err)
	}
	if c.yaw, err = NewController1D(params.AngularZ, goal.Yaw, goalVelocity.AngularZ); err != nil {
		return nil, fmt.Errorf("angular z: %w", err)
	}
	return c, nil
}

func (c *Controller4D) Compute(pose flight.Pose, velocity flight.InertialFrameVelocity) flight.InertialFrameVelocity {
	adaptedYaw := c.goalYaw - math.AngleDistance(pose.Yaw, c.goalYaw)
	return flight.InertialFrameVelocity{
		LinearX:  c.x.Compute(pose.X, velocity.LinearX),
		LinearY:  c.y.Compute(pose.Y, velocity.LinearY),
		LinearZ:  c.z.Compute(pose.Z, velocity.LinearZ),
		AngularZ: c.yaw.Compute(adaptedYaw, velocity.AngularZ),
	}
}
