// flight/flight.go
// Copyright(c) 2025 flightctl contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package flight holds the data model shared by the controllers: poses,
// velocities in the inertial and body frames, and the interfaces through
// which the controllers reach a vehicle.
package flight

import (
	"fmt"
	"time"

	"github.com/flightctl/flightctl/math"
)

// Pose is a position in the inertial frame plus a heading. Yaw is in
// radians, counterclockwise from the x axis.
type Pose struct {
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	Z   float64 `json:"z"`
	Yaw float64 `json:"yaw"`
}

func (p Pose) Position() math.Vec3 {
	return math.Vec3{p.X, p.Y, p.Z}
}

func (p Pose) String() string {
	return fmt.Sprintf("(%.3f, %.3f, %.3f, yaw %.3f)", p.X, p.Y, p.Z, p.Yaw)
}

// Distance returns the Euclidean distance between the positions of a and
// b; yaw is ignored.
func Distance(a, b Pose) float64 {
	return math.Distance3(a.Position(), b.Position())
}

// Velocity is a twist restricted to the four axes a multirotor controls.
type Velocity struct {
	LinearX  float64 `json:"linear_x"`
	LinearY  float64 `json:"linear_y"`
	LinearZ  float64 `json:"linear_z"`
	AngularZ float64 `json:"angular_z"`
}

func (v Velocity) String() string {
	return fmt.Sprintf("(%.3f, %.3f, %.3f, yaw rate %.3f)", v.LinearX, v.LinearY, v.LinearZ, v.AngularZ)
}

// InertialFrameVelocity is a velocity expressed in the world frame.
type InertialFrameVelocity Velocity

// BodyFrameVelocity is a velocity expressed in the vehicle frame, with x
// pointing along the current heading.
type BodyFrameVelocity Velocity

// ToBodyFrame rotates the linear x/y components by -yaw.
func (v InertialFrameVelocity) ToBodyFrame(yaw float64) BodyFrameVelocity {
	x, y := math.Rotate2(v.LinearX, v.LinearY, -yaw)
	return BodyFrameVelocity{LinearX: x, LinearY: y, LinearZ: v.LinearZ, AngularZ: v.AngularZ}
}

// ToInertialFrame rotates the linear x/y components by yaw.
func (v BodyFrameVelocity) ToInertialFrame(yaw float64) InertialFrameVelocity {
	x, y := math.Rotate2(v.LinearX, v.LinearY, yaw)
	return InertialFrameVelocity{LinearX: x, LinearY: y, LinearZ: v.LinearZ, AngularZ: v.AngularZ}
}

func (v InertialFrameVelocity) String() string { return Velocity(v).String() }
func (v BodyFrameVelocity) String() string     { return Velocity(v).String() }

// PoseStamped is a pose sample as reported by a localization source.
type PoseStamped struct {
	Pose Pose
	Time time.Time
}

// DroneState is the estimated state of a vehicle at a point in time.
type DroneState struct {
	Pose     Pose
	Velocity InertialFrameVelocity
	Time     time.Time
}

///////////////////////////////////////////////////////////////////////////
// Vehicle interfaces

// Clock supplies the current time in the vehicle adapter's time base.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// StateSource returns the most recent state estimate. It never blocks; ok
// is false when no estimate is available yet.
type StateSource interface {
	CurrentState() (state DroneState, ok bool)
}

// VelocitySink forwards velocity commands to a vehicle. Sends are fire
// and forget.
type VelocitySink interface {
	// SendInertial sends a world-frame velocity; pose is the state the
	// command was computed from, for adapters that must convert frames.
	SendInertial(v InertialFrameVelocity, pose Pose)
	SendBody(v BodyFrameVelocity)
}

// BodySender is implemented by vehicles that only accept body-frame
// commands.
type BodySender interface {
	SendBody(v BodyFrameVelocity)
}

// BodyFrameSink adapts a BodySender to a VelocitySink by converting
// inertial commands with the yaw of the pose they were computed from.
type BodyFrameSink struct {
	BodySender
}

func (s BodyFrameSink) SendInertial(v InertialFrameVelocity, pose Pose) {
	s.BodySender.SendBody(v.ToBodyFrame(pose.Yaw))
}
