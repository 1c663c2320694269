// estimator/noisy.go
// Copyright(c) 2025 flightctl contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package estimator

import (
	"context"
	"sync"
	"time"

	"github.com/flightctl/flightctl/flight"
	"github.com/flightctl/flightctl/log"
	"github.com/flightctl/flightctl/math"
	"github.com/flightctl/flightctl/rand"
	"github.com/flightctl/flightctl/util"
)

// Noisy degrades a ground-truth state source the way a real localization
// system would: it samples at a fixed rate, perturbs the position with
// Gaussian noise and averages the last few perturbed states. Sample must
// be driven, usually by Run.
type Noisy struct {
	source flight.StateSource
	period time.Duration
	mean   float64
	stddev float64
	lg     *log.Logger

	mu      sync.Mutex
	rng     *rand.Rand
	history *util.RingBuffer[flight.DroneState]
	current flight.DroneState
	ok      bool
}

type NoisyConfig struct {
	Rate        float64 // samples per second
	NoiseMean   float64
	NoiseStdDev float64
	Window      int
	Seed        int64
}

func NewNoisy(source flight.StateSource, cfg NoisyConfig, lg *log.Logger) (*Noisy, error) {
	if cfg.Window < 1 {
		return nil, ErrInvalidWindow
	} else if cfg.Rate <= 0 {
		return nil, ErrInvalidRate
	}
	return &Noisy{
		source:  source,
		period:  util.Seconds(1 / cfg.Rate),
		mean:    cfg.NoiseMean,
		stddev:  cfg.NoiseStdDev,
		lg:      lg,
		rng:     rand.NewSeeded(cfg.Seed),
		history: util.NewRingBuffer[flight.DroneState](cfg.Window),
	}, nil
}

// Run samples the underlying source until ctx is done.
func (n *Noisy) Run(ctx context.Context) error {
	return util.Every(ctx, n.period, n.Sample)
}

// Sample takes one reading from the underlying source.
func (n *Noisy) Sample() {
	s, ok := n.source.CurrentState()

	n.mu.Lock()
	defer n.mu.Unlock()

	if !ok {
		n.ok = false
		return
	}
	n.lg.Debug("ground truth", "pose", s.Pose, "time", s.Time)

	s.Pose.X += n.rng.Gaussian(n.mean, n.stddev)
	s.Pose.Y += n.rng.Gaussian(n.mean, n.stddev)
	s.Pose.Z += n.rng.Gaussian(n.mean, n.stddev)
	n.history.Add(s)

	states := n.history.Values()
	var avg flight.DroneState
	var sinYaw, cosYaw float64
	velocities := make([]flight.InertialFrameVelocity, len(states))
	for i, st := range states {
		avg.Pose.X += st.Pose.X
		avg.Pose.Y += st.Pose.Y
		avg.Pose.Z += st.Pose.Z
		sinYaw += math.Sin(st.Pose.Yaw)
		cosYaw += math.Cos(st.Pose.Yaw)
		velocities[i] = st.Velocity
	}
	k := float64(len(states))
	avg.Pose.X /= k
	avg.Pose.Y /= k
	avg.Pose.Z /= k
	avg.Pose.Yaw = math.Atan2(sinYaw, cosYaw)
	avg.Velocity = averageVelocity(velocities)
	avg.Time = s.Time

	n.current, n.ok = avg, true
}

func (n *Noisy) CurrentState() (flight.DroneState, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current, n.ok
}
