// flight/flight_test.go
// Copyright(c) 2025 flightctl contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package flight

import (
	gomath "math"
	"testing"
)

func velocityNear(a, b Velocity, eps float64) bool {
	return gomath.Abs(a.LinearX-b.LinearX) < eps && gomath.Abs(a.LinearY-b.LinearY) < eps &&
		gomath.Abs(a.LinearZ-b.LinearZ) < eps && gomath.Abs(a.AngularZ-b.AngularZ) < eps
}

func TestFrameRoundTrip(t *testing.T) {
	v := InertialFrameVelocity{LinearX: 1.5, LinearY: -0.7, LinearZ: 0.3, AngularZ: 0.2}
	for _, yaw := range []float64{0, gomath.Pi / 4, gomath.Pi / 2, gomath.Pi, -gomath.Pi / 2} {
		b := v.ToBodyFrame(yaw)
		if b.LinearZ != v.LinearZ || b.AngularZ != v.AngularZ {
			t.Errorf("yaw %g: z or yaw rate changed: %v", yaw, b)
		}
		back := b.ToInertialFrame(yaw)
		if !velocityNear(Velocity(back), Velocity(v), 1e-9) {
			t.Errorf("yaw %g: expected %v, got %v", yaw, v, back)
		}
	}
}

func TestToBodyFrame(t *testing.T) {
	tests := []struct {
		v        InertialFrameVelocity
		yaw      float64
		expected BodyFrameVelocity
	}{
		{InertialFrameVelocity{LinearX: 1}, 0, BodyFrameVelocity{LinearX: 1}},
		// Heading +y: moving along +y is moving forward.
		{InertialFrameVelocity{LinearY: 1}, gomath.Pi / 2, BodyFrameVelocity{LinearX: 1}},
		// Heading +y: moving along +x is moving to the right.
		{InertialFrameVelocity{LinearX: 1}, gomath.Pi / 2, BodyFrameVelocity{LinearY: -1}},
		{InertialFrameVelocity{LinearX: 1, LinearZ: 2, AngularZ: 3}, gomath.Pi, BodyFrameVelocity{LinearX: -1, LinearZ: 2, AngularZ: 3}},
	}

	for _, test := range tests {
		b := test.v.ToBodyFrame(test.yaw)
		if !velocityNear(Velocity(b), Velocity(test.expected), 1e-9) {
			t.Errorf("%v at yaw %g: expected %v, got %v", test.v, test.yaw, test.expected, b)
		}
	}
}

func TestDistance(t *testing.T) {
	a := Pose{X: 1, Y: 2, Z: 3, Yaw: 1}
	b := Pose{X: 4, Y: 6, Z: 3, Yaw: -2}
	if d := Distance(a, b); gomath.Abs(d-5) > 1e-12 {
		t.Errorf("Expected 5, got %g", d)
	}
	if d := Distance(a, a); d != 0 {
		t.Errorf("Expected 0, got %g", d)
	}
}

type bodyRecorder struct {
	sent []BodyFrameVelocity
}

func (b *bodyRecorder) SendBody(v BodyFrameVelocity) { b.sent = append(b.sent, v) }

func TestBodyFrameSink(t *testing.T) {
	rec := &bodyRecorder{}
	var sink VelocitySink = BodyFrameSink{rec}
	sink.SendInertial(InertialFrameVelocity{LinearY: 2}, Pose{Yaw: gomath.Pi / 2})
	sink.SendBody(BodyFrameVelocity{LinearZ: 1})

	if len(rec.sent) != 2 {
		t.Fatalf("Expected 2 commands, got %d", len(rec.sent))
	}
	if !velocityNear(Velocity(rec.sent[0]), Velocity{LinearX: 2}, 1e-9) {
		t.Errorf("Expected forward velocity 2, got %v", rec.sent[0])
	}
	if rec.sent[1].LinearZ != 1 {
		t.Errorf("Expected body command passed through, got %v", rec.sent[1])
	}
}
