// estimator/estimator.go
// Copyright(c) 2025 flightctl contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package estimator turns raw localization samples into flight.DroneState
// estimates. All of the estimators implement flight.StateSource and are
// safe for concurrent use.
package estimator

import (
	"errors"
	"sync"
	"time"

	"github.com/flightctl/flightctl/flight"
	"github.com/flightctl/flightctl/math"
	"github.com/flightctl/flightctl/util"
)

var (
	ErrInvalidWindow = errors.New("averaging window must hold at least one sample")
	ErrInvalidRate   = errors.New("sampling rate must be positive")
)

// PoseSource returns the most recent localization sample, if any.
type PoseSource interface {
	MostRecentPose() (flight.PoseStamped, bool)
}

// OdometrySource returns the most recent body-frame twist, if any.
type OdometrySource interface {
	MostRecentTwist() (flight.BodyFrameVelocity, bool)
}

func averageVelocity(v []flight.InertialFrameVelocity) flight.InertialFrameVelocity {
	var sum flight.InertialFrameVelocity
	for _, s := range v {
		sum.LinearX += s.LinearX
		sum.LinearY += s.LinearY
		sum.LinearZ += s.LinearZ
		sum.AngularZ += s.AngularZ
	}
	n := float64(len(v))
	return flight.InertialFrameVelocity{
		LinearX:  sum.LinearX / n,
		LinearY:  sum.LinearY / n,
		LinearZ:  sum.LinearZ / n,
		AngularZ: sum.AngularZ / n,
	}
}

///////////////////////////////////////////////////////////////////////////
// FiniteDifference

// FiniteDifference estimates velocity by differencing successive poses
// with distinct timestamps and averaging the last few differences. It
// reports no state until its averaging window has filled.
type FiniteDifference struct {
	source PoseSource

	mu         sync.Mutex
	last       flight.PoseStamped
	haveLast   bool
	velocities *util.RingBuffer[flight.InertialFrameVelocity]
}

func NewFiniteDifference(source PoseSource, window int) (*FiniteDifference, error) {
	if window < 1 {
		return nil, ErrInvalidWindow
	}
	return &FiniteDifference{
		source:     source,
		velocities: util.NewRingBuffer[flight.InertialFrameVelocity](window),
	}, nil
}

func (f *FiniteDifference) CurrentState() (flight.DroneState, bool) {
	p, ok := f.source.MostRecentPose()
	if !ok {
		return flight.DroneState{}, false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.haveLast {
		f.last, f.haveLast = p, true
		return flight.DroneState{}, false
	}

	if dt := p.Time.Sub(f.last.Time).Seconds(); dt > 0 {
		f.velocities.Add(flight.InertialFrameVelocity{
			LinearX:  (p.Pose.X - f.last.Pose.X) / dt,
			LinearY:  (p.Pose.Y - f.last.Pose.Y) / dt,
			LinearZ:  (p.Pose.Z - f.last.Pose.Z) / dt,
			AngularZ: math.AngleDistance(f.last.Pose.Yaw, p.Pose.Yaw) / dt,
		})
		f.last = p
	}

	if !f.velocities.Full() {
		return flight.DroneState{}, false
	}
	return flight.DroneState{
		Pose:     f.last.Pose,
		Velocity: averageVelocity(f.velocities.Values()),
		Time:     f.last.Time,
	}, true
}

///////////////////////////////////////////////////////////////////////////
// Odometry

// Odometry pairs the latest pose with the latest body-frame twist
// reported by the vehicle, rotated into the inertial frame.
type Odometry struct {
	poses PoseSource
	twist OdometrySource
}

func NewOdometry(poses PoseSource, twist OdometrySource) *Odometry {
	return &Odometry{poses: poses, twist: twist}
}

func (o *Odometry) CurrentState() (flight.DroneState, bool) {
	p, ok := o.poses.MostRecentPose()
	if !ok {
		return flight.DroneState{}, false
	}
	v, ok := o.twist.MostRecentTwist()
	if !ok {
		return flight.DroneState{}, false
	}
	return flight.DroneState{Pose: p.Pose, Velocity: v.ToInertialFrame(p.Pose.Yaw), Time: p.Time}, true
}

///////////////////////////////////////////////////////////////////////////
// PoseBuffer

// PoseBuffer is a PoseSource that holds the last pose it was given. It
// is what localization adapters publish into.
type PoseBuffer struct {
	mu   sync.Mutex
	pose flight.PoseStamped
	ok   bool
}

func (b *PoseBuffer) Publish(p flight.Pose, t time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pose, b.ok = flight.PoseStamped{Pose: p, Time: t}, true
}

func (b *PoseBuffer) MostRecentPose() (flight.PoseStamped, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pose, b.ok
}
