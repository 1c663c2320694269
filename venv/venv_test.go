// venv/venv_test.go
// Copyright(c) 2025 flightctl contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package venv

import (
	"context"
	"errors"
	gomath "math"
	"sync"
	"testing"
	"time"

	"github.com/flightctl/flightctl/fake"
	"github.com/flightctl/flightctl/flight"
)

const eps = 1e-6

func near(a, b float64) bool {
	return gomath.Abs(a-b) < eps
}

func mustModel(t *testing.T, pose flight.Pose, ref flight.InertialFrameVelocity, dt, lo, hi float64) *Model {
	t.Helper()
	m, err := NewModel(pose, ref, dt, lo, hi, 1)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestSolveTracksReference(t *testing.T) {
	ref := flight.InertialFrameVelocity{LinearX: 0.4, LinearY: -0.2, LinearZ: 0.1, AngularZ: 0.3}
	for _, yaw := range []float64{0, gomath.Pi / 4, gomath.Pi / 2, -2} {
		m := mustModel(t, flight.Pose{Yaw: yaw}, ref, 0.05, -1, 1)
		b, err := m.Solve()
		if err != nil {
			t.Fatalf("yaw %g: %v", yaw, err)
		}
		expected := ref.ToBodyFrame(yaw)
		if !near(b.LinearX, expected.LinearX) || !near(b.LinearY, expected.LinearY) ||
			!near(b.LinearZ, expected.LinearZ) || !near(b.AngularZ, expected.AngularZ) {
			t.Errorf("yaw %g: expected %v, got %v", yaw, expected, b)
		}
	}
}

func TestSolveClampsToBounds(t *testing.T) {
	m := mustModel(t, flight.Pose{}, flight.InertialFrameVelocity{LinearX: 2, LinearY: -3}, 0.05, -1, 1)
	b, err := m.Solve()
	if err != nil {
		t.Fatal(err)
	}
	if !near(b.LinearX, 1) || !near(b.LinearY, -1) {
		t.Errorf("Expected (1, -1), got %v", b)
	}
}

func TestHover(t *testing.T) {
	m := mustModel(t, flight.Pose{Yaw: 1}, flight.InertialFrameVelocity{LinearX: 0.5, AngularZ: 0.5}, 0.05, -1, 1)
	m.Hover()
	b, err := m.Solve()
	if err != nil {
		t.Fatal(err)
	}
	if !near(b.LinearX, 0) || !near(b.LinearY, 0) || !near(b.LinearZ, 0) || !near(b.AngularZ, 0) {
		t.Errorf("Expected zero velocity, got %v", b)
	}
}

func TestLimitBodyVelocityIntersects(t *testing.T) {
	m := mustModel(t, flight.Pose{}, flight.InertialFrameVelocity{}, 0.05, -1, 1)
	m.LimitBodyVelocity(-2, 0.5)
	m.LimitBodyVelocity(-0.3, 3)
	lo, hi := m.Bounds()
	if lo[AxisX] != -0.3 || hi[AxisX] != 0.5 {
		t.Errorf("Expected [-0.3, 0.5], got [%g, %g]", lo[AxisX], hi[AxisX])
	}

	m.LimitBodyVelocity(0.6, 0.7)
	if _, err := m.Solve(); !errors.Is(err, ErrInfeasible) {
		t.Errorf("Expected ErrInfeasible for empty bounds, got %v", err)
	}
}

func TestConflictingConstraintsInfeasible(t *testing.T) {
	m := mustModel(t, flight.Pose{}, flight.InertialFrameVelocity{}, 0.05, -1, 1)
	m.AddGe([numAxes]float64{1, 0, 0, 0}, 0.5)  // vx >= 0.5
	m.AddGe([numAxes]float64{-1, 0, 0, 0}, 0.2) // vx <= -0.2
	if _, err := m.Solve(); !errors.Is(err, ErrInfeasible) {
		t.Errorf("Expected ErrInfeasible, got %v", err)
	}
}

func TestNewModelErrors(t *testing.T) {
	if _, err := NewModel(flight.Pose{}, flight.InertialFrameVelocity{}, -1, -1, 1, 1); !errors.Is(err, ErrInvalidControlTimeDelta) {
		t.Errorf("Expected ErrInvalidControlTimeDelta, got %v", err)
	}
	if _, err := NewModel(flight.Pose{}, flight.InertialFrameVelocity{}, 0.1, 1, -1, 1); !errors.Is(err, ErrInfeasible) {
		t.Errorf("Expected ErrInfeasible, got %v", err)
	}
}

func TestKeepDistanceGating(t *testing.T) {
	dropper := flight.Pose{X: 1, Y: 1, Z: 1}
	kd, err := NewKeepDistance(dropper, 0.5)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		pose   flight.Pose
		lo, hi float64
	}{
		{"at minimum distance", flight.Pose{X: 1.5, Y: 1, Z: 1}, 0, 0},
		{"inside", flight.Pose{X: 1.1, Y: 1, Z: 1}, 0, 0},
		{"at dropper", dropper, 0, 0},
		{"twice minimum distance", flight.Pose{X: 1, Y: 2, Z: 1}, -0.8, 1.2},
	}
	for _, test := range tests {
		m := mustModel(t, test.pose, flight.InertialFrameVelocity{}, 0.1, -0.8, 1.2)
		kd.AddConstraints(m)
		lo, hi := m.Bounds()
		for i := range numAxes {
			if lo[i] != test.lo || hi[i] != test.hi {
				t.Errorf("%s: axis %d: expected [%g, %g], got [%g, %g]", test.name, i, test.lo, test.hi, lo[i], hi[i])
			}
		}
	}

	if _, err := NewKeepDistance(dropper, 0); !errors.Is(err, ErrInvalidMinimumDistance) {
		t.Errorf("Expected ErrInvalidMinimumDistance, got %v", err)
	}
}

func TestKeepDistanceUnboundedModel(t *testing.T) {
	kd, err := NewKeepDistance(flight.Pose{X: 0.5}, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	m := mustModel(t, flight.Pose{}, flight.InertialFrameVelocity{LinearX: -0.7, LinearY: 0.4}, 0.1,
		gomath.Inf(-1), gomath.Inf(1))
	kd.AddConstraints(m)

	lo, hi := m.Bounds()
	for i := range numAxes {
		if lo[i] != 0 || hi[i] != 0 {
			t.Errorf("axis %d: expected [0, 0], got [%g, %g]", i, lo[i], hi[i])
		}
	}
	v, err := m.Solve()
	if err != nil {
		t.Fatal(err)
	}
	if !near(v.LinearX, 0) || !near(v.LinearY, 0) || !near(v.LinearZ, 0) || !near(v.AngularZ, 0) {
		t.Errorf("Expected the vehicle held at rest, got %+v", v)
	}
}

func TestKeepDistancePlane(t *testing.T) {
	// Dropper 1m ahead on x; with dt 0.1 the vehicle may close at most
	// (1 - 0.5) / 0.1 = 5 m/s.
	kd, err := NewKeepDistance(flight.Pose{X: 1}, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	m := mustModel(t, flight.Pose{}, flight.InertialFrameVelocity{LinearX: 8, LinearY: 2}, 0.1, -10, 10)
	kd.AddConstraints(m)
	if len(m.Constraints()) != 1 {
		t.Fatalf("Expected one constraint, got %d", len(m.Constraints()))
	}
	b, err := m.Solve()
	if err != nil {
		t.Fatal(err)
	}
	if !near(b.LinearX, 5) || !near(b.LinearY, 2) {
		t.Errorf("Expected (5, 2), got %v", b)
	}

	// Moving away is unconstrained.
	m = mustModel(t, flight.Pose{}, flight.InertialFrameVelocity{LinearX: -3}, 0.1, -10, 10)
	kd.AddConstraints(m)
	if b, err = m.Solve(); err != nil || !near(b.LinearX, -3) {
		t.Errorf("Expected -3, got %v (%v)", b, err)
	}
}

func TestKeepDistanceRotatedFrame(t *testing.T) {
	// Same geometry with the vehicle facing +y: the limit applies to the
	// body y axis.
	kd, err := NewKeepDistance(flight.Pose{X: 1}, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	m := mustModel(t, flight.Pose{Yaw: gomath.Pi / 2}, flight.InertialFrameVelocity{LinearX: 8}, 0.1, -10, 10)
	kd.AddConstraints(m)
	b, err := m.Solve()
	if err != nil {
		t.Fatal(err)
	}
	v := b.ToInertialFrame(gomath.Pi / 2)
	if !near(v.LinearX, 5) || !near(v.LinearY, 0) {
		t.Errorf("Expected inertial (5, 0), got %v", v)
	}
}

func newEnv(t *testing.T, clock flight.Clock) *Environment {
	t.Helper()
	e, err := NewEnvironment(clock, EnvironmentConfig{RefreshRate: 100, NeighborTTL: time.Minute}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

type countingGenerator struct {
	mu sync.Mutex
	n  int
}

func (g *countingGenerator) AddConstraints(*Model) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
}

func TestEnvironmentLifecycle(t *testing.T) {
	t0 := time.Unix(100, 0)
	clock := fake.NewClock(t0)
	e := newEnv(t, clock)

	short, long := &countingGenerator{}, &countingGenerator{}
	if err := e.DropPheromone(Pheromone{Dropper: "a", LifeSpan: time.Second, Generator: short}); err != nil {
		t.Fatal(err)
	}
	if err := e.DropPheromone(Pheromone{Dropper: "b", LifeSpan: 3 * time.Second, Generator: long}); err != nil {
		t.Fatal(err)
	}

	m := mustModel(t, flight.Pose{}, flight.InertialFrameVelocity{}, 0.1, -1, 1)
	if n := e.AddConstraints(m, "c"); n != 2 {
		t.Errorf("Expected 2 active pheromones, got %d", n)
	}
	if n := e.AddConstraints(m, "a"); n != 1 || short.n != 1 {
		t.Errorf("Own pheromone applied: n %d, short %d", n, short.n)
	}

	clock.Advance(time.Second)
	// Expired but not yet swept: not applied.
	if n := e.AddConstraints(m, "c"); n != 1 {
		t.Errorf("Expected 1 active pheromone at vanishing time, got %d", n)
	}
	if n := e.Sweep(); n != 1 {
		t.Errorf("Expected to sweep 1, got %d", n)
	}
	if e.Len() != 1 {
		t.Errorf("Expected 1 remaining, got %d", e.Len())
	}

	clock.Advance(5 * time.Second)
	e.Sweep()
	if e.Len() != 0 {
		t.Errorf("Expected empty store, got %d", e.Len())
	}
	if long.n != 3 {
		t.Errorf("Expected long-lived generator applied 3 times, got %d", long.n)
	}
}

func TestPheromoneNotAppliedBeforeDrop(t *testing.T) {
	t0 := time.Unix(100, 0)
	clock := fake.NewClock(t0)
	e := newEnv(t, clock)
	g := &countingGenerator{}
	if err := e.DropPheromone(Pheromone{Dropper: "a", LifeSpan: time.Second, Generator: g}); err != nil {
		t.Fatal(err)
	}
	// A clock that reads earlier than the drop, as a lagging adapter
	// might.
	clock.Set(t0.Add(-time.Millisecond))
	if n := e.AddConstraints(mustModel(t, flight.Pose{}, flight.InertialFrameVelocity{}, 0.1, -1, 1), "b"); n != 0 {
		t.Errorf("Pheromone applied before its drop time")
	}
}

func TestDropPheromoneErrors(t *testing.T) {
	e := newEnv(t, fake.NewClock(time.Unix(0, 0)))
	if err := e.DropPheromone(Pheromone{LifeSpan: 0, Generator: &countingGenerator{}}); !errors.Is(err, ErrInvalidLifeSpan) {
		t.Errorf("Expected ErrInvalidLifeSpan, got %v", err)
	}
	if err := e.DropPheromone(Pheromone{LifeSpan: time.Second}); !errors.Is(err, ErrNoGenerator) {
		t.Errorf("Expected ErrNoGenerator, got %v", err)
	}
	if err := e.DropKeepDistance("a", flight.Pose{}, -1, time.Second); !errors.Is(err, ErrInvalidMinimumDistance) {
		t.Errorf("Expected ErrInvalidMinimumDistance, got %v", err)
	}
	if _, err := NewEnvironment(fake.NewClock(time.Unix(0, 0)), EnvironmentConfig{}, nil); !errors.Is(err, ErrInvalidRefreshRate) {
		t.Errorf("Expected ErrInvalidRefreshRate, got %v", err)
	}
}

func TestSweepOrdersByVanishingTime(t *testing.T) {
	t0 := time.Unix(0, 0)
	clock := fake.NewClock(t0)
	e := newEnv(t, clock)
	for _, s := range []int{5, 1, 4, 2, 3} {
		if err := e.DropPheromone(Pheromone{LifeSpan: time.Duration(s) * time.Second, Generator: GeneratorFunc(func(*Model) {})}); err != nil {
			t.Fatal(err)
		}
	}
	for i := 1; i <= 5; i++ {
		clock.Set(t0.Add(time.Duration(i) * time.Second))
		if n := e.Sweep(); n != 1 {
			t.Errorf("at %ds: expected 1 swept, got %d", i, n)
		}
	}
}

func TestKeepDistanceThroughEnvironment(t *testing.T) {
	clock := fake.NewClock(time.Unix(0, 0))
	e := newEnv(t, clock)
	if err := e.DropKeepDistance("b", flight.Pose{X: 0.3}, 0.5, time.Second); err != nil {
		t.Fatal(err)
	}
	if _, ok := e.Neighbors()["b"]; !ok {
		t.Errorf("Expected b among neighbors, got %v", e.Neighbors())
	}

	m := mustModel(t, flight.Pose{}, flight.InertialFrameVelocity{LinearX: -0.5}, 0.1, -1, 1)
	if n := e.AddConstraints(m, "a"); n != 1 {
		t.Fatalf("Expected 1 pheromone applied, got %d", n)
	}
	b, err := m.Solve()
	if err != nil {
		t.Fatal(err)
	}
	if !near(b.LinearX, 0) {
		t.Errorf("Expected hover when too close, got %v", b)
	}
}

func TestEnvironmentConcurrent(t *testing.T) {
	e := newEnv(t, flight.SystemClock)
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.Run(ctx)
	}()

	for w := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 50 {
				_ = e.DropKeepDistance(string(rune('a'+w)), flight.Pose{X: float64(i)}, 0.5, 5*time.Millisecond)
				m, _ := NewModel(flight.Pose{}, flight.InertialFrameVelocity{}, 0.05, -1, 1, 1)
				e.AddConstraints(m, "z")
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	cancel()
	wg.Wait()

	time.Sleep(10 * time.Millisecond)
	e.Sweep()
	if e.Len() != 0 {
		t.Errorf("Expected all pheromones swept, got %d", e.Len())
	}
}
