// control/control.go
// Copyright(c) 2025 flightctl contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package control holds the strategies that turn one control step (the
// vehicle state and where the trajectory wants it to be) into a velocity
// command.
package control

import (
	"log/slog"
	"time"

	"github.com/flightctl/flightctl/flight"
	"github.com/flightctl/flightctl/log"
	"github.com/flightctl/flightctl/monitor"
	"github.com/flightctl/flightctl/pid"
	"github.com/flightctl/flightctl/venv"
)

// Step is the input to one control computation.
type Step struct {
	Elapsed         float64 // seconds since the command started
	Period          time.Duration
	State           flight.DroneState
	DesiredPose     flight.Pose
	DesiredVelocity flight.InertialFrameVelocity
}

type Frame int

const (
	InertialFrame Frame = iota
	BodyFrame
)

func (f Frame) String() string {
	if f == BodyFrame {
		return "body"
	}
	return "inertial"
}

// Output is a velocity command in one of the two frames.
type Output struct {
	Frame    Frame
	Inertial flight.InertialFrameVelocity
	Body     flight.BodyFrameVelocity
}

func InertialOutput(v flight.InertialFrameVelocity) Output {
	return Output{Frame: InertialFrame, Inertial: v}
}

func BodyOutput(v flight.BodyFrameVelocity) Output {
	return Output{Frame: BodyFrame, Body: v}
}

// Send forwards the command to sink; pose is the vehicle pose the
// command was computed for.
func (o Output) Send(sink flight.VelocitySink, pose flight.Pose) {
	if o.Frame == BodyFrame {
		sink.SendBody(o.Body)
	} else {
		sink.SendInertial(o.Inertial, pose)
	}
}

func (o Output) LogValue() slog.Value {
	if o.Frame == BodyFrame {
		return slog.GroupValue(slog.String("frame", "body"), slog.String("velocity", o.Body.String()))
	}
	return slog.GroupValue(slog.String("frame", "inertial"), slog.String("velocity", o.Inertial.String()))
}

// Controller computes the command for one step. It returns false if no
// command should be sent this step.
type Controller interface {
	Compute(step Step) (Output, bool)
}

///////////////////////////////////////////////////////////////////////////
// PID

// PID tracks the desired pose with a fresh pid.Controller4D per step.
type PID struct {
	Params pid.Parameters4D
	lg     *log.Logger
}

func NewPID(params pid.Parameters4D, lg *log.Logger) *PID {
	return &PID{Params: params, lg: lg}
}

func (p *PID) Compute(step Step) (Output, bool) {
	c, err := pid.NewController4D(p.Params, step.DesiredPose, step.DesiredVelocity)
	if err != nil {
		p.lg.Warn("skipping control step", slog.Any("error", err), slog.Float64("elapsed", step.Elapsed))
		return Output{}, false
	}
	return InertialOutput(c.Compute(step.State.Pose, step.State.Velocity)), true
}

///////////////////////////////////////////////////////////////////////////
// Constrained

// PoseStatuser is satisfied by monitor.PoseOutdatedMonitor.
type PoseStatuser interface {
	Status() monitor.PoseStatus
}

// TrajectoryStatuser is satisfied by monitor.OutOfTrajectoryMonitor.
type TrajectoryStatuser interface {
	Status() monitor.TrajectoryStatus
}

// ConstrainedConfig configures a Constrained controller. Environment and
// the monitors are optional.
type ConstrainedConfig struct {
	Name            string // vehicle name; its own pheromones are ignored
	Params          pid.Parameters4D
	MinVelocity     float64
	MaxVelocity     float64
	MaxAcceleration float64

	Environment       *venv.Environment
	PoseMonitor       PoseStatuser
	TrajectoryMonitor TrajectoryStatuser
}

// Constrained uses the PD output as a reference and solves for the
// closest body-frame velocity that respects the pheromones in the shared
// environment. A stale pose or a vehicle off its trajectory makes it
// hover.
type Constrained struct {
	cfg ConstrainedConfig
	lg  *log.Logger
}

func NewConstrained(cfg ConstrainedConfig, lg *log.Logger) *Constrained {
	return &Constrained{cfg: cfg, lg: lg}
}

func (c *Constrained) Compute(step Step) (Output, bool) {
	pd, err := pid.NewController4D(c.cfg.Params, step.DesiredPose, step.DesiredVelocity)
	if err != nil {
		c.lg.Warn("skipping control step", slog.Any("error", err), slog.Float64("elapsed", step.Elapsed))
		return Output{}, false
	}
	reference := pd.Compute(step.State.Pose, step.State.Velocity)

	m, err := venv.NewModel(step.State.Pose, reference, step.Period.Seconds(), c.cfg.MinVelocity,
		c.cfg.MaxVelocity, c.cfg.MaxAcceleration)
	if err != nil {
		c.lg.Error("building velocity model", slog.Any("error", err))
		return Output{}, false
	}

	if c.cfg.Environment != nil {
		c.cfg.Environment.AddConstraints(m, c.cfg.Name)
	}
	if c.cfg.PoseMonitor != nil && c.cfg.PoseMonitor.Status() == monitor.Outdated {
		m.Hover()
	}
	if c.cfg.TrajectoryMonitor != nil && c.cfg.TrajectoryMonitor.Status() == monitor.OutOfTrajectory {
		m.Hover()
	}

	v, err := m.Solve()
	if err != nil {
		c.lg.Warn("no feasible velocity", slog.Any("error", err), slog.Int("constraints", len(m.Constraints())),
			slog.Float64("elapsed", step.Elapsed))
		return Output{}, false
	}
	return BodyOutput(v), true
}
