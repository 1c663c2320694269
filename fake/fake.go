// fake/fake.go
// Copyright(c) 2025 flightctl contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package fake provides a manually driven clock and a kinematic vehicle
// for tests and simulated flights.
package fake

import (
	"context"
	"sync"
	"time"

	"github.com/flightctl/flightctl/flight"
	"github.com/flightctl/flightctl/math"
	"github.com/flightctl/flightctl/util"
)

///////////////////////////////////////////////////////////////////////////
// Clock

// Clock is a flight.Clock whose time only moves when told to.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

///////////////////////////////////////////////////////////////////////////
// Drone

// Drone is a point-mass vehicle that moves at exactly the last commanded
// velocity, optionally limited to MaxSpeed. It implements
// flight.VelocitySink and flight.StateSource as well as the estimator
// pose and odometry sources.
type Drone struct {
	Name     string
	MaxSpeed float64 // 0 means unlimited

	clock flight.Clock

	mu       sync.Mutex
	pose     flight.Pose
	velocity flight.InertialFrameVelocity
	commands int
	located  bool
}

func NewDrone(name string, start flight.Pose, clock flight.Clock) *Drone {
	return &Drone{Name: name, pose: start, clock: clock, located: true}
}

// SetLocalized controls whether the drone reports a state at all, to
// emulate a localization system that has not yet converged.
func (d *Drone) SetLocalized(ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.located = ok
}

func (d *Drone) SendInertial(v flight.InertialFrameVelocity, _ flight.Pose) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.velocity = d.limit(v)
	d.commands++
}

func (d *Drone) SendBody(v flight.BodyFrameVelocity) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.velocity = d.limit(v.ToInertialFrame(d.pose.Yaw))
	d.commands++
}

func (d *Drone) limit(v flight.InertialFrameVelocity) flight.InertialFrameVelocity {
	if d.MaxSpeed <= 0 {
		return v
	}
	if s := (math.Vec3{v.LinearX, v.LinearY, v.LinearZ}).Length(); s > d.MaxSpeed {
		f := d.MaxSpeed / s
		v.LinearX, v.LinearY, v.LinearZ = v.LinearX*f, v.LinearY*f, v.LinearZ*f
	}
	return v
}

// Step integrates the motion over dt.
func (d *Drone) Step(dt time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := dt.Seconds()
	d.pose.X += d.velocity.LinearX * s
	d.pose.Y += d.velocity.LinearY * s
	d.pose.Z += d.velocity.LinearZ * s
	d.pose.Yaw = math.NormalizeAngle(d.pose.Yaw + d.velocity.AngularZ*s)
}

// Run integrates the motion every period until ctx is done.
func (d *Drone) Run(ctx context.Context, period time.Duration) error {
	return util.Every(ctx, period, func() { d.Step(period) })
}

func (d *Drone) Pose() flight.Pose {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pose
}

func (d *Drone) Velocity() flight.InertialFrameVelocity {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.velocity
}

// Commands returns the number of velocity commands received.
func (d *Drone) Commands() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.commands
}

func (d *Drone) CurrentState() (flight.DroneState, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.located {
		return flight.DroneState{}, false
	}
	return flight.DroneState{Pose: d.pose, Velocity: d.velocity, Time: d.clock.Now()}, true
}

func (d *Drone) MostRecentPose() (flight.PoseStamped, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.located {
		return flight.PoseStamped{}, false
	}
	return flight.PoseStamped{Pose: d.pose, Time: d.clock.Now()}, true
}

func (d *Drone) MostRecentTwist() (flight.BodyFrameVelocity, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.located {
		return flight.BodyFrameVelocity{}, false
	}
	return d.velocity.ToBodyFrame(d.pose.Yaw), true
}

///////////////////////////////////////////////////////////////////////////
// StateSource

// StateSource is a flight.StateSource that returns whatever it was last
// given.
type StateSource struct {
	mu    sync.Mutex
	state flight.DroneState
	ok    bool
}

func (s *StateSource) Set(state flight.DroneState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state, s.ok = state, true
}

func (s *StateSource) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ok = false
}

func (s *StateSource) CurrentState() (flight.DroneState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.ok
}

///////////////////////////////////////////////////////////////////////////
// Sink

// Sink records every velocity command it receives.
type Sink struct {
	mu       sync.Mutex
	Inertial []flight.InertialFrameVelocity
	Body     []flight.BodyFrameVelocity
}

func (s *Sink) SendInertial(v flight.InertialFrameVelocity, _ flight.Pose) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Inertial = append(s.Inertial, v)
}

func (s *Sink) SendBody(v flight.BodyFrameVelocity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Body = append(s.Body, v)
}

// Count returns the total number of commands received.
func (s *Sink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Inertial) + len(s.Body)
}

func (s *Sink) LastInertial() (flight.InertialFrameVelocity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Inertial) == 0 {
		return flight.InertialFrameVelocity{}, false
	}
	return s.Inertial[len(s.Inertial)-1], true
}

func (s *Sink) LastBody() (flight.BodyFrameVelocity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Body) == 0 {
		return flight.BodyFrameVelocity{}, false
	}
	return s.Body[len(s.Body)-1], true
}
