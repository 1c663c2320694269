// recorder/recorder_test.go
// Copyright(c) 2025 flightctl contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package recorder

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/flightctl/flightctl/fake"
	"github.com/flightctl/flightctl/flight"

	"github.com/davecgh/go-spew/spew"
)

func TestRecorderForwardsAndRecords(t *testing.T) {
	var sink fake.Sink
	var source fake.StateSource
	clock := fake.NewClock(time.Unix(100, 0))
	r := New(&sink, &source, clock)

	r.SendInertial(flight.InertialFrameVelocity{LinearX: 1}, flight.Pose{})
	source.Set(flight.DroneState{Pose: flight.Pose{X: 2}, Time: time.Unix(100, 0)})
	clock.Advance(time.Second)
	r.SendBody(flight.BodyFrameVelocity{AngularZ: -0.5})

	if len(sink.Inertial) != 1 || len(sink.Body) != 1 {
		t.Fatalf("Expected commands forwarded, got %s", spew.Sdump(&sink))
	}

	recs := r.Records()
	if len(recs) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(recs))
	}
	if recs[0].Frame != Inertial || recs[0].Velocity.LinearX != 1 || recs[0].HasState {
		t.Errorf("Unexpected first record %s", spew.Sdump(recs[0]))
	}
	if recs[1].Frame != Body || recs[1].Velocity.AngularZ != -0.5 || !recs[1].HasState || recs[1].State.Pose.X != 2 {
		t.Errorf("Unexpected second record %s", spew.Sdump(recs[1]))
	}
	if !recs[1].Time.Equal(time.Unix(101, 0)) {
		t.Errorf("Expected time %s, got %s", time.Unix(101, 0), recs[1].Time)
	}

	// Records are copies.
	recs[0].Velocity.LinearX = 42
	if r.Records()[0].Velocity.LinearX != 1 {
		t.Errorf("Expected Records to return a copy")
	}
}

func TestRecorderWithoutSource(t *testing.T) {
	var sink fake.Sink
	r := New(&sink, nil, nil)
	r.SendBody(flight.BodyFrameVelocity{LinearZ: 1})
	if r.Len() != 1 || r.Records()[0].HasState {
		t.Errorf("Expected one stateless record, got %s", spew.Sdump(r.Records()))
	}
}

func TestSaveLoad(t *testing.T) {
	var sink fake.Sink
	var source fake.StateSource
	source.Set(flight.DroneState{
		Pose:     flight.Pose{X: 1, Y: 2, Z: 3, Yaw: 0.5},
		Velocity: flight.InertialFrameVelocity{LinearY: 0.25},
		Time:     time.Unix(50, 0),
	})
	clock := fake.NewClock(time.Unix(60, 0))
	r := New(&sink, &source, clock)
	for i := range 10 {
		r.SendInertial(flight.InertialFrameVelocity{LinearX: float64(i)}, flight.Pose{})
		clock.Advance(50 * time.Millisecond)
	}

	path := filepath.Join(t.TempDir(), "flights", "a.rec")
	if err := r.Save(path); err != nil {
		t.Fatal(err)
	}
	recs, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	expected := r.Records()
	if len(recs) != len(expected) {
		t.Fatalf("Expected %d records, got %d", len(expected), len(recs))
	}
	for i := range recs {
		a, b := recs[i], expected[i]
		if !a.Time.Equal(b.Time) || a.Frame != b.Frame || a.Velocity != b.Velocity || a.HasState != b.HasState ||
			a.State.Pose != b.State.Pose || a.State.Velocity != b.State.Velocity || !a.State.Time.Equal(b.State.Time) {
			t.Errorf("Record %d: expected %s, got %s", i, spew.Sdump(b), spew.Sdump(a))
		}
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Errorf("Expected error loading a missing file")
	}
}
