// trajectory/choreography.go
// Copyright(c) 2025 flightctl contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package trajectory

import (
	"fmt"
	"sync"

	"github.com/flightctl/flightctl/flight"
)

type segment struct {
	tr       Trajectory
	duration float64
}

// Choreography presents an ordered list of segments as one trajectory.
// Each segment is queried with its own zero-based time. Segments are
// evicted lazily as queries move past their end; the last one is never
// evicted and plays on indefinitely.
type Choreography struct {
	mu       sync.Mutex
	segments []segment
	shift    float64
	total    float64
}

// ChoreographyBuilder accumulates segments; the first error encountered
// is reported by Build.
type ChoreographyBuilder struct {
	segments []segment
	err      error
}

func NewChoreography() *ChoreographyBuilder {
	return &ChoreographyBuilder{}
}

// Add appends tr, to be flown for d seconds.
func (b *ChoreographyBuilder) Add(tr Trajectory, d float64) *ChoreographyBuilder {
	if b.err == nil && d <= 0 {
		b.err = fmt.Errorf("segment %d: %w", len(b.segments), ErrNonPositiveDuration)
	}
	b.segments = append(b.segments, segment{tr: tr, duration: d})
	return b
}

// AddFinite appends f for its own duration.
func (b *ChoreographyBuilder) AddFinite(f Finite) *ChoreographyBuilder {
	return b.Add(f, f.Duration())
}

func (b *ChoreographyBuilder) Build() (*Choreography, error) {
	if b.err != nil {
		return nil, b.err
	} else if len(b.segments) == 0 {
		return nil, ErrEmptyChoreography
	}

	c := &Choreography{segments: append([]segment(nil), b.segments...)}
	for _, s := range c.segments {
		c.total += s.duration
	}
	return c, nil
}

// current evicts finished segments and returns the active one along with
// the local time at which to query it.
func (c *Choreography) current(t float64) (Trajectory, float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	local := t - c.shift
	for len(c.segments) > 1 && local > c.segments[0].duration {
		c.shift += c.segments[0].duration
		local -= c.segments[0].duration
		c.segments = c.segments[1:]
	}
	return c.segments[0].tr, local
}

func (c *Choreography) DesiredPose(t float64) flight.Pose {
	tr, local := c.current(t)
	return tr.DesiredPose(local)
}

func (c *Choreography) DesiredVelocity(t float64) flight.InertialFrameVelocity {
	tr, local := c.current(t)
	return tr.DesiredVelocity(local)
}

// Duration returns the sum of the durations of all of the segments it
// was built with.
func (c *Choreography) Duration() float64 {
	return c.total
}

// Remaining returns the number of segments that have not been evicted.
func (c *Choreography) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.segments)
}
