// monitor/monitor.go
// Copyright(c) 2025 flightctl contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package monitor provides watchdogs that periodically sample a state
// source and publish a status that any goroutine may read.
package monitor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/flightctl/flightctl/flight"
	"github.com/flightctl/flightctl/log"
	"github.com/flightctl/flightctl/trajectory"
	"github.com/flightctl/flightctl/util"
)

// DefaultPeriod is how often monitors probe by default.
const DefaultPeriod = 50 * time.Millisecond

type statusCell[S ~int32] struct {
	v atomic.Int32
}

func (c *statusCell[S]) load() S   { return S(c.v.Load()) }
func (c *statusCell[S]) store(s S) { c.v.Store(int32(s)) }

///////////////////////////////////////////////////////////////////////////
// PoseOutdated

type PoseStatus int32

const (
	// Outdated is reported until the first state is seen.
	Outdated PoseStatus = iota
	Valid
)

func (s PoseStatus) String() string {
	if s == Valid {
		return "VALID"
	}
	return "OUTDATED"
}

// PoseOutdatedMonitor reports whether the latest state is older than a
// threshold.
type PoseOutdatedMonitor struct {
	source    flight.StateSource
	clock     flight.Clock
	threshold time.Duration
	period    time.Duration
	lg        *log.Logger
	status    statusCell[PoseStatus]
}

func NewPoseOutdated(source flight.StateSource, clock flight.Clock, threshold time.Duration, lg *log.Logger) *PoseOutdatedMonitor {
	return &PoseOutdatedMonitor{
		source:    source,
		clock:     clock,
		threshold: threshold,
		period:    DefaultPeriod,
		lg:        lg,
	}
}

// SetPeriod changes the probe period; it must be called before Run.
func (m *PoseOutdatedMonitor) SetPeriod(p time.Duration) {
	m.period = p
}

func (m *PoseOutdatedMonitor) Status() PoseStatus {
	return m.status.load()
}

// Probe samples the state once and updates the status.
func (m *PoseOutdatedMonitor) Probe() {
	status := Valid
	if s, ok := m.source.CurrentState(); !ok || m.clock.Now().Sub(s.Time) >= m.threshold {
		status = Outdated
	}
	if old := m.status.load(); old != status {
		m.lg.Info("pose status changed", "from", old, "to", status)
	}
	m.status.store(status)
}

// Run probes until ctx is done.
func (m *PoseOutdatedMonitor) Run(ctx context.Context) error {
	return util.Every(ctx, m.period, m.Probe)
}

///////////////////////////////////////////////////////////////////////////
// OutOfTrajectory

type TrajectoryStatus int32

const (
	NoInformation TrajectoryStatus = iota
	WithinMinimumDeviation
	OutOfTrajectory
)

func (s TrajectoryStatus) String() string {
	switch s {
	case WithinMinimumDeviation:
		return "WITHIN_MINIMUM_DEVIATION"
	case OutOfTrajectory:
		return "OUT_OF_TRAJECTORY"
	default:
		return "NO_INFORMATION"
	}
}

// OutOfTrajectoryMonitor compares the current pose with where the
// trajectory says the vehicle should be.
type OutOfTrajectoryMonitor struct {
	tr           trajectory.Trajectory
	source       flight.StateSource
	clock        flight.Clock
	start        time.Time
	minDeviation float64
	period       time.Duration
	lg           *log.Logger
	status       statusCell[TrajectoryStatus]
}

// NewOutOfTrajectory returns a monitor for a trajectory that started at
// start. minDeviation is in meters.
func NewOutOfTrajectory(tr trajectory.Trajectory, source flight.StateSource, clock flight.Clock,
	start time.Time, minDeviation float64, lg *log.Logger) *OutOfTrajectoryMonitor {
	return &OutOfTrajectoryMonitor{
		tr:           tr,
		source:       source,
		clock:        clock,
		start:        start,
		minDeviation: minDeviation,
		period:       DefaultPeriod,
		lg:           lg,
	}
}

func (m *OutOfTrajectoryMonitor) SetPeriod(p time.Duration) {
	m.period = p
}

func (m *OutOfTrajectoryMonitor) Status() TrajectoryStatus {
	return m.status.load()
}

func (m *OutOfTrajectoryMonitor) Probe() {
	s, ok := m.source.CurrentState()
	if !ok {
		m.status.store(NoInformation)
		return
	}

	elapsed := m.clock.Now().Sub(m.start).Seconds()
	d := flight.Distance(m.tr.DesiredPose(elapsed), s.Pose)
	if d > m.minDeviation {
		if m.status.load() != OutOfTrajectory {
			m.lg.Warn("out of trajectory", "deviation", d, "elapsed", elapsed)
		}
		m.status.store(OutOfTrajectory)
	} else {
		m.status.store(WithinMinimumDeviation)
	}
}

func (m *OutOfTrajectoryMonitor) Run(ctx context.Context) error {
	return util.Every(ctx, m.period, m.Probe)
}

///////////////////////////////////////////////////////////////////////////
// StartTime

type StartStatus int32

const (
	NotYetStarted StartStatus = iota
	Started
)

func (s StartStatus) String() string {
	if s == Started {
		return "STARTED"
	}
	return "NOT_YET_STARTED"
}

// StartTimeMonitor flips to Started once the clock reaches a start time and
// stays there.
type StartTimeMonitor struct {
	clock  flight.Clock
	start  time.Time
	status statusCell[StartStatus]
}

func NewStartTime(start time.Time, clock flight.Clock) *StartTimeMonitor {
	return &StartTimeMonitor{clock: clock, start: start}
}

func (m *StartTimeMonitor) Status() StartStatus {
	return m.status.load()
}

func (m *StartTimeMonitor) Probe() {
	if !m.clock.Now().Before(m.start) {
		m.status.store(Started)
	}
}

// Run polls every 20ms until the start time is reached or ctx is done.
func (m *StartTimeMonitor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	err := util.Every(ctx, 20*time.Millisecond, func() {
		if m.Probe(); m.Status() == Started {
			cancel()
		}
	})
	if m.Status() == Started {
		return nil
	}
	return err
}
