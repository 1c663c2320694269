// trajectory/primitives.go
// Copyright(c) 2025 flightctl contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package trajectory

import (
	"fmt"

	"github.com/flightctl/flightctl/flight"
	"github.com/flightctl/flightctl/math"
)

///////////////////////////////////////////////////////////////////////////
// StraightLine

type straightLine struct {
	src, dst flight.Pose
	dyaw     float64
	duration float64
	v        flight.InertialFrameVelocity
}

// StraightLine returns a finite trajectory from src to dst at a constant
// speed; the yaw is interpolated along the shorter arc, turning at no more
// than speed rad/s. Once dst is reached the trajectory holds there.
func StraightLine(src, dst flight.Pose, speed float64) (Finite, error) {
	if speed <= 0 || speed > MaxAbsoluteVelocity {
		return nil, fmt.Errorf("%g: %w", speed, ErrInvalidSpeed)
	}

	s := &straightLine{src: src, dst: dst, dyaw: math.AngleDistance(src.Yaw, dst.Yaw)}
	s.duration = math.Max(flight.Distance(src, dst), math.Abs(s.dyaw)) / speed
	if s.duration == 0 {
		return nil, ErrZeroLength
	}
	s.v = flight.InertialFrameVelocity{
		LinearX:  (dst.X - src.X) / s.duration,
		LinearY:  (dst.Y - src.Y) / s.duration,
		LinearZ:  (dst.Z - src.Z) / s.duration,
		AngularZ: s.dyaw / s.duration,
	}
	return s, nil
}

func (s *straightLine) Duration() float64 { return s.duration }

func (s *straightLine) DesiredPose(t float64) flight.Pose {
	if t >= s.duration {
		return s.dst
	} else if t <= 0 {
		return s.src
	}
	f := t / s.duration
	return flight.Pose{
		X:   s.src.X + f*(s.dst.X-s.src.X),
		Y:   s.src.Y + f*(s.dst.Y-s.src.Y),
		Z:   s.src.Z + f*(s.dst.Z-s.src.Z),
		Yaw: math.NormalizeAngle(s.src.Yaw + f*s.dyaw),
	}
}

func (s *straightLine) DesiredVelocity(t float64) flight.InertialFrameVelocity {
	if t < 0 || t >= s.duration {
		return flight.InertialFrameVelocity{}
	}
	return s.v
}

///////////////////////////////////////////////////////////////////////////
// Circle

// CircleSpec describes a circle around Origin. The circle lies in a plane
// through the x axis, tilted by PlaneAngle radians from horizontal
// towards +z. Frequency is in revolutions per second and Phase is the
// starting angle. If FixedYaw is nil the heading turns with the circle.
type CircleSpec struct {
	Origin     flight.Pose
	Radius     float64
	Frequency  float64
	Phase      float64
	PlaneAngle float64
	FixedYaw   *float64
}

type circle struct {
	CircleSpec
	omega            float64
	cosTilt, sinTilt float64
}

func Circle(spec CircleSpec) (Trajectory, error) {
	if spec.Radius <= 0 {
		return nil, ErrInvalidRadius
	} else if spec.Frequency <= 0 {
		return nil, ErrInvalidFrequency
	}

	c := &circle{CircleSpec: spec, omega: 2 * math.Pi * spec.Frequency}
	if c.omega*spec.Radius > MaxAbsoluteVelocity {
		return nil, fmt.Errorf("circle speed %.3f m/s: %w", c.omega*spec.Radius, ErrTooFast)
	}
	c.cosTilt, c.sinTilt = math.Cos(spec.PlaneAngle), math.Sin(spec.PlaneAngle)
	return c, nil
}

func (c *circle) DesiredPose(t float64) flight.Pose {
	a := c.omega*t + c.Phase
	o := c.Radius * math.Sin(a)
	p := flight.Pose{
		X: c.Origin.X + c.Radius*math.Cos(a),
		Y: c.Origin.Y + c.cosTilt*o,
		Z: c.Origin.Z + c.sinTilt*o,
	}
	if c.FixedYaw != nil {
		p.Yaw = *c.FixedYaw
	} else {
		p.Yaw = math.NormalizeAngle(c.Origin.Yaw + a)
	}
	return p
}

func (c *circle) DesiredVelocity(t float64) flight.InertialFrameVelocity {
	a := c.omega*t + c.Phase
	do := c.Radius * c.omega * math.Cos(a)
	v := flight.InertialFrameVelocity{
		LinearX: -c.Radius * c.omega * math.Sin(a),
		LinearY: c.cosTilt * do,
		LinearZ: c.sinTilt * do,
	}
	if c.FixedYaw == nil {
		v.AngularZ = c.omega
	}
	return v
}

///////////////////////////////////////////////////////////////////////////
// Pendulum

// PendulumSpec describes a swing below Pivot: the vehicle moves along an
// arc of the given radius, in the vertical plane at Heading radians from
// the x axis, swinging a quarter turn to either side Frequency times per
// second. The yaw stays at Pivot.Yaw.
type PendulumSpec struct {
	Pivot     flight.Pose
	Radius    float64
	Frequency float64
	Heading   float64
}

type pendulum struct {
	PendulumSpec
	omega            float64
	cosHead, sinHead float64
}

func Pendulum(spec PendulumSpec) (Trajectory, error) {
	if spec.Radius <= 0 {
		return nil, ErrInvalidRadius
	} else if spec.Frequency <= 0 {
		return nil, ErrInvalidFrequency
	}

	// The peak angular rate is (pi/2)*omega at the bottom of the swing.
	if speed := math.Pi * math.Pi * spec.Frequency * spec.Radius; speed > MaxAbsoluteVelocity {
		return nil, fmt.Errorf("pendulum speed %.3f m/s: %w", speed, ErrTooFast)
	}
	return &pendulum{
		PendulumSpec: spec,
		omega:        2 * math.Pi * spec.Frequency,
		cosHead:      math.Cos(spec.Heading),
		sinHead:      math.Sin(spec.Heading),
	}, nil
}

func (p *pendulum) angle(t float64) (theta, dtheta float64) {
	theta = math.Pi / 2 * math.Cos(p.omega*t)
	dtheta = -math.Pi / 2 * p.omega * math.Sin(p.omega*t)
	return
}

func (p *pendulum) DesiredPose(t float64) flight.Pose {
	theta, _ := p.angle(t)
	h := p.Radius * math.Sin(theta)
	return flight.Pose{
		X:   p.Pivot.X + p.cosHead*h,
		Y:   p.Pivot.Y + p.sinHead*h,
		Z:   p.Pivot.Z - p.Radius*math.Cos(theta),
		Yaw: p.Pivot.Yaw,
	}
}

func (p *pendulum) DesiredVelocity(t float64) flight.InertialFrameVelocity {
	theta, dtheta := p.angle(t)
	dh := p.Radius * math.Cos(theta) * dtheta
	return flight.InertialFrameVelocity{
		LinearX: p.cosHead * dh,
		LinearY: p.sinHead * dh,
		LinearZ: p.Radius * math.Sin(theta) * dtheta,
	}
}
