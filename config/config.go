// config/config.go
// Copyright(c) 2025 flightctl contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package config loads and validates flight configuration files.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/flightctl/flightctl/flight"
	"github.com/flightctl/flightctl/pid"
	"github.com/flightctl/flightctl/trajectory"
	"github.com/flightctl/flightctl/util"

	"github.com/brunoga/deep"
)

var ErrDuplicateKeys = errors.New("duplicate keys")

const (
	ControllerPID         = "pid"
	ControllerConstrained = "constrained"
)

// Config is a flight configuration. All times are in seconds, distances
// in meters and rates in Hz.
type Config struct {
	Controller      string  `json:"controller"`
	Period          float64 `json:"period"`
	StateLifetime   float64 `json:"state_lifetime"`
	LagCompensation float64 `json:"lag_compensation"`
	StartDelay      float64 `json:"start_delay"`

	PID             pid.Parameters4D `json:"pid"`
	MinVelocity     float64          `json:"min_velocity"`
	MaxVelocity     float64          `json:"max_velocity"`
	MaxAcceleration float64          `json:"max_acceleration"`

	PoseStaleness    float64 `json:"pose_staleness"`
	MinimumDeviation float64 `json:"minimum_deviation"`

	PheromoneLifeSpan float64 `json:"pheromone_life_span"`
	DropRate          float64 `json:"drop_rate"`
	MinimumSeparation float64 `json:"minimum_separation"`
	RefreshRate       float64 `json:"refresh_rate"`

	EstimatorWindow int `json:"estimator_window"`

	Drones []Drone `json:"drones"`
}

type Drone struct {
	Name     string      `json:"name"`
	Start    flight.Pose `json:"start"`
	MaxSpeed float64     `json:"max_speed"`
	Segments []Segment   `json:"segments"`
}

const (
	SegmentHold     = "hold"
	SegmentLine     = "line"
	SegmentCircle   = "circle"
	SegmentPendulum = "pendulum"
)

// Segment is one piece of a drone's choreography. Which fields are used
// depends on Type:
//
//	hold:     Duration
//	line:     To, Speed
//	circle:   Origin, Radius, Frequency, Phase, PlaneAngle, FixedYaw, Duration
//	pendulum: Origin, Radius, Frequency, Duration
type Segment struct {
	Type       string       `json:"type"`
	Duration   float64      `json:"duration,omitempty"`
	To         *flight.Pose `json:"to,omitempty"`
	Speed      float64      `json:"speed,omitempty"`
	Origin     flight.Pose  `json:"origin"`
	Radius     float64      `json:"radius,omitempty"`
	Frequency  float64      `json:"frequency,omitempty"`
	Phase      float64      `json:"phase,omitempty"`
	PlaneAngle float64      `json:"plane_angle,omitempty"`
	FixedYaw   *float64     `json:"fixed_yaw,omitempty"`
}

// Default returns a configuration with two drones flying side-by-side
// circles.
func Default() *Config {
	params := pid.DefaultParameters4D()
	for _, p := range []*pid.Parameters{&params.LinearX, &params.LinearY, &params.LinearZ, &params.AngularZ} {
		p.MinVelocity, p.MaxVelocity = -1, 1
	}

	circle := func(x float64) []Segment {
		origin := flight.Pose{X: x, Z: 1}
		return []Segment{
			{Type: SegmentLine, To: &flight.Pose{X: x + 0.5, Z: 1}, Speed: 0.25},
			{Type: SegmentCircle, Origin: origin, Radius: 0.5, Frequency: 0.1, Duration: 20},
			{Type: SegmentLine, To: &flight.Pose{X: x, Z: 1}, Speed: 0.25},
		}
	}

	return &Config{
		Controller:        ControllerConstrained,
		Period:            0.05,
		StateLifetime:     0.5,
		LagCompensation:   0,
		StartDelay:        1,
		PID:               params,
		MinVelocity:       -1,
		MaxVelocity:       1,
		MaxAcceleration:   1,
		PoseStaleness:     0.5,
		MinimumDeviation:  0.5,
		PheromoneLifeSpan: 0.5,
		DropRate:          10,
		MinimumSeparation: 0.4,
		RefreshRate:       10,
		EstimatorWindow:   5,
		Drones: []Drone{
			{Name: "alpha", Start: flight.Pose{Z: 1}, Segments: circle(0)},
			{Name: "bravo", Start: flight.Pose{X: 2, Z: 1}, Segments: circle(2)},
		},
	}
}

// Load reads a configuration from path. Fields missing from the file
// keep their Default values.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

func Parse(b []byte) (*Config, error) {
	if dups := util.FindDuplicateJSONKeys(b); len(dups) > 0 {
		var s []string
		for _, d := range dups {
			s = append(s, d.Path+"."+d.Key)
		}
		return nil, fmt.Errorf("%s: %w", strings.Join(s, ", "), ErrDuplicateKeys)
	}

	c := Default()
	c.Drones = nil
	if err := util.UnmarshalJSONBytes(b, c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	return deep.MustCopy(c)
}

func (c *Config) Validate() error {
	var e util.ErrorLogger

	positive := func(name string, v float64) {
		if v <= 0 {
			e.ErrorString("%s must be positive, got %g", name, v)
		}
	}
	nonNegative := func(name string, v float64) {
		if v < 0 {
			e.ErrorString("%s must not be negative, got %g", name, v)
		}
	}

	if c.Controller != ControllerPID && c.Controller != ControllerConstrained {
		e.ErrorString("controller must be %q or %q, got %q", ControllerPID, ControllerConstrained, c.Controller)
	}
	positive("period", c.Period)
	nonNegative("state_lifetime", c.StateLifetime)
	nonNegative("lag_compensation", c.LagCompensation)
	nonNegative("start_delay", c.StartDelay)
	if c.MinVelocity > c.MaxVelocity {
		e.ErrorString("min_velocity %g is larger than max_velocity %g", c.MinVelocity, c.MaxVelocity)
	}
	nonNegative("max_acceleration", c.MaxAcceleration)
	positive("pose_staleness", c.PoseStaleness)
	positive("minimum_deviation", c.MinimumDeviation)
	positive("pheromone_life_span", c.PheromoneLifeSpan)
	positive("drop_rate", c.DropRate)
	positive("minimum_separation", c.MinimumSeparation)
	positive("refresh_rate", c.RefreshRate)
	if c.EstimatorWindow < 1 {
		e.ErrorString("estimator_window must be at least 1, got %d", c.EstimatorWindow)
	}

	e.Push("pid")
	for _, axis := range []struct {
		name string
		p    pid.Parameters
	}{{"linear_x", c.PID.LinearX}, {"linear_y", c.PID.LinearY}, {"linear_z", c.PID.LinearZ}, {"angular_z", c.PID.AngularZ}} {
		if err := axis.p.Validate(); err != nil {
			e.ErrorString("%s: %v", axis.name, err)
		}
	}
	e.Pop()

	if len(c.Drones) == 0 {
		e.ErrorString("no drones defined")
	}
	var names []string
	for i, d := range c.Drones {
		e.Push(fmt.Sprintf("drone %d (%s)", i, d.Name))
		if d.Name == "" {
			e.ErrorString("name is required")
		} else if slices.Contains(names, d.Name) {
			e.ErrorString("name is used by another drone")
		}
		names = append(names, d.Name)
		nonNegative("max_speed", d.MaxSpeed)

		if _, err := d.Choreography(); err != nil {
			e.Error(err)
		}
		e.Pop()
	}

	return e.Err()
}

// Choreography builds the drone's trajectory. Each segment starts where
// the previous one ends.
func (d Drone) Choreography() (*trajectory.Choreography, error) {
	b := trajectory.NewChoreography()
	cur := d.Start

	for i, s := range d.Segments {
		wrap := func(err error) error { return fmt.Errorf("segment %d (%s): %w", i, s.Type, err) }

		var tr trajectory.Trajectory
		var err error
		duration := s.Duration

		switch s.Type {
		case SegmentHold:
			tr = trajectory.Hold(cur)

		case SegmentLine:
			if s.To == nil {
				return nil, wrap(errors.New("no destination"))
			}
			var f trajectory.Finite
			if f, err = trajectory.StraightLine(cur, *s.To, s.Speed); err != nil {
				return nil, wrap(err)
			}
			tr, duration = f, f.Duration()

		case SegmentCircle:
			tr, err = trajectory.Circle(trajectory.CircleSpec{
				Origin:     s.Origin,
				Radius:     s.Radius,
				Frequency:  s.Frequency,
				Phase:      s.Phase,
				PlaneAngle: s.PlaneAngle,
				FixedYaw:   s.FixedYaw,
			})

		case SegmentPendulum:
			tr, err = trajectory.Pendulum(trajectory.PendulumSpec{
				Pivot:     s.Origin,
				Radius:    s.Radius,
				Frequency: s.Frequency,
				Heading:   s.Origin.Yaw,
			})

		default:
			return nil, wrap(errors.New("unknown segment type"))
		}
		if err != nil {
			return nil, wrap(err)
		}

		b.Add(tr, duration)
		cur = tr.DesiredPose(duration)
	}

	c, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", d.Name, err)
	}
	return c, nil
}

func (c *Config) PeriodDuration() time.Duration        { return util.Seconds(c.Period) }
func (c *Config) StateLifetimeDuration() time.Duration { return util.Seconds(c.StateLifetime) }
func (c *Config) LagDuration() time.Duration           { return util.Seconds(c.LagCompensation) }
func (c *Config) StartDelayDuration() time.Duration    { return util.Seconds(c.StartDelay) }
func (c *Config) StalenessDuration() time.Duration     { return util.Seconds(c.PoseStaleness) }
func (c *Config) LifeSpanDuration() time.Duration      { return util.Seconds(c.PheromoneLifeSpan) }
