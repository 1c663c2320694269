// recorder/recorder.go
// Copyright(c) 2025 flightctl contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package recorder provides a flight recorder: a velocity sink that
// forwards commands to the vehicle and keeps a log of each one together
// with the vehicle state at the time it was sent.
package recorder

import (
	"sync"
	"time"

	"github.com/flightctl/flightctl/flight"
	"github.com/flightctl/flightctl/util"

	"github.com/brunoga/deep"
)

type Frame string

const (
	Inertial Frame = "inertial"
	Body     Frame = "body"
)

// Record is one velocity command. Velocity is in the frame given by
// Frame. State is only meaningful if HasState is set.
type Record struct {
	Time     time.Time         `msgpack:"t"`
	Frame    Frame             `msgpack:"f"`
	Velocity flight.Velocity   `msgpack:"v"`
	State    flight.DroneState `msgpack:"s"`
	HasState bool              `msgpack:"h"`
}

// Recorder is a flight.VelocitySink decorator. It is safe for concurrent
// use.
type Recorder struct {
	sink   flight.VelocitySink
	source flight.StateSource
	clock  flight.Clock

	mu      sync.Mutex
	records []Record
}

// New returns a Recorder forwarding to sink. source may be nil, in which
// case records carry no state.
func New(sink flight.VelocitySink, source flight.StateSource, clock flight.Clock) *Recorder {
	if clock == nil {
		clock = flight.SystemClock
	}
	return &Recorder{sink: sink, source: source, clock: clock}
}

func (r *Recorder) record(frame Frame, v flight.Velocity) {
	rec := Record{Time: r.clock.Now(), Frame: frame, Velocity: v}
	if r.source != nil {
		rec.State, rec.HasState = r.source.CurrentState()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

func (r *Recorder) SendInertial(v flight.InertialFrameVelocity, pose flight.Pose) {
	r.sink.SendInertial(v, pose)
	r.record(Inertial, flight.Velocity(v))
}

func (r *Recorder) SendBody(v flight.BodyFrameVelocity) {
	r.sink.SendBody(v)
	r.record(Body, flight.Velocity(v))
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Records returns a copy of everything recorded so far.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return deep.MustCopy(r.records)
}

// Save writes the records to path as zstd-compressed msgpack.
func (r *Recorder) Save(path string) error {
	return util.StoreObject(path, r.Records())
}

// Load reads records written by Save.
func Load(path string) ([]Record, error) {
	var recs []Record
	if err := util.LoadObject(path, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}
