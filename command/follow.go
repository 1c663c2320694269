// command/follow.go
// Copyright(c) 2025 flightctl contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package command

import (
	"context"
	"log/slog"
	"time"

	"github.com/flightctl/flightctl/control"
	"github.com/flightctl/flightctl/flight"
	"github.com/flightctl/flightctl/log"
	"github.com/flightctl/flightctl/math"
	"github.com/flightctl/flightctl/trajectory"
	"github.com/flightctl/flightctl/util"
)

// Options are shared by every command that runs the control loop.
type Options struct {
	Period time.Duration
	// LagCompensation is added to the elapsed time when the trajectory
	// is evaluated, to make up for the delay between sending a command
	// and the vehicle acting on it.
	LagCompensation time.Duration
	// StateLifetime, if positive, is how long a state may go without a
	// new timestamp before steps are skipped.
	StateLifetime time.Duration

	Source     flight.StateSource
	Sink       flight.VelocitySink
	Controller control.Controller
	Clock      flight.Clock
	Logger     *log.Logger
}

func (o Options) validate() error {
	if o.Period <= 0 {
		return ErrInvalidPeriod
	} else if o.Source == nil {
		return ErrNoStateSource
	} else if o.Sink == nil {
		return ErrNoVelocitySink
	} else if o.Controller == nil {
		return ErrNoController
	}
	return nil
}

type FollowTrajectoryConfig struct {
	Options
	Trajectory trajectory.Trajectory
	Duration   time.Duration
}

// FollowTrajectory steers the vehicle along a trajectory for a fixed
// duration. Elapsed time starts at zero each time it is executed.
type FollowTrajectory struct {
	cfg FollowTrajectoryConfig
}

func NewFollowTrajectory(cfg FollowTrajectoryConfig) (*FollowTrajectory, error) {
	if err := cfg.Options.validate(); err != nil {
		return nil, err
	} else if cfg.Duration <= 0 {
		return nil, ErrInvalidDuration
	} else if cfg.Trajectory == nil {
		return nil, ErrNoTrajectory
	}
	if cfg.Clock == nil {
		cfg.Clock = flight.SystemClock
	}
	return &FollowTrajectory{cfg: cfg}, nil
}

func (f *FollowTrajectory) Execute(ctx context.Context) error {
	cfg := &f.cfg
	lg := cfg.Logger
	start := cfg.Clock.Now()

	maxStale := 0
	if cfg.StateLifetime > 0 {
		maxStale = int(math.Ceil(float64(cfg.StateLifetime) / float64(cfg.Period)))
	}
	var lastStamp time.Time
	stale := 0

	lg.Debug("following trajectory", slog.Duration("duration", cfg.Duration), slog.Duration("period", cfg.Period))

	err := RunPeriodic(ctx, cfg.Period, cfg.Duration, func() {
		s, ok := cfg.Source.CurrentState()
		if !ok {
			lg.Debug("no state, skipping control step")
			return
		}

		if maxStale > 0 {
			if s.Time.Equal(lastStamp) {
				stale++
				if stale >= maxStale {
					lg.Debug("state outdated, skipping control step", slog.Time("stamp", s.Time), slog.Int("steps", stale))
					return
				}
			} else {
				lastStamp, stale = s.Time, 0
			}
		}

		if l, ok := cfg.Trajectory.(*latchedHold); ok {
			l.latch(s.Pose)
		}

		elapsed := (cfg.Clock.Now().Sub(start) + cfg.LagCompensation).Seconds()
		step := control.Step{
			Elapsed:         elapsed,
			Period:          cfg.Period,
			State:           s,
			DesiredPose:     cfg.Trajectory.DesiredPose(elapsed),
			DesiredVelocity: cfg.Trajectory.DesiredVelocity(elapsed),
		}
		if out, ok := cfg.Controller.Compute(step); ok {
			out.Send(cfg.Sink, s.Pose)
		}
	})

	if err != nil {
		lg.Info("trajectory interrupted", slog.Any("error", err))
	}
	return err
}

///////////////////////////////////////////////////////////////////////////
// Hover, MoveToPose, PerformChoreography

// latchedHold holds the pose of the first state a control step uses.
type latchedHold struct {
	pose flight.Pose
	set  bool
}

func (l *latchedHold) latch(p flight.Pose) {
	if !l.set {
		l.pose, l.set = p, true
	}
}

func (l *latchedHold) DesiredPose(float64) flight.Pose {
	return l.pose
}

func (l *latchedHold) DesiredVelocity(float64) flight.InertialFrameVelocity {
	return flight.InertialFrameVelocity{}
}

type hover struct {
	duration time.Duration
	opts     Options
}

// NewHover returns a command that holds the vehicle at the pose it has
// when the command starts.
func NewHover(duration time.Duration, opts Options) (Command, error) {
	cfg := FollowTrajectoryConfig{Options: opts, Trajectory: trajectory.Hold(flight.Pose{}), Duration: duration}
	if _, err := NewFollowTrajectory(cfg); err != nil {
		return nil, err
	}
	return &hover{duration: duration, opts: opts}, nil
}

func (h *hover) Execute(ctx context.Context) error {
	f, err := NewFollowTrajectory(FollowTrajectoryConfig{
		Options:    h.opts,
		Trajectory: &latchedHold{},
		Duration:   h.duration,
	})
	if err != nil {
		return err
	}
	return f.Execute(ctx)
}

// NewMoveToPose returns a command that steers the vehicle to pose and
// holds it there until duration has elapsed.
func NewMoveToPose(pose flight.Pose, duration time.Duration, opts Options) (Command, error) {
	f, err := NewFollowTrajectory(FollowTrajectoryConfig{
		Options:    opts,
		Trajectory: trajectory.Hold(pose),
		Duration:   duration,
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// NewPerformChoreography follows a finite trajectory for its full
// duration.
func NewPerformChoreography(f trajectory.Finite, opts Options) (Command, error) {
	if f == nil {
		return nil, ErrNoTrajectory
	}
	ft, err := NewFollowTrajectory(FollowTrajectoryConfig{
		Options:    opts,
		Trajectory: f,
		Duration:   util.Seconds(f.Duration()),
	})
	if err != nil {
		return nil, err
	}
	return ft, nil
}
