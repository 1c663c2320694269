// venv/environment.go
// Copyright(c) 2025 flightctl contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package venv implements the virtual environment through which vehicles
// avoid each other: each one periodically drops pheromones, short-lived
// constraint generators, and every control step solves for a velocity
// that satisfies the pheromones other vehicles have left.
package venv

import (
	"container/heap"
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/flightctl/flightctl/flight"
	"github.com/flightctl/flightctl/log"
	"github.com/flightctl/flightctl/util"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Generator contributes constraints to the model of one control step.
type Generator interface {
	AddConstraints(m *Model)
}

// GeneratorFunc adapts a function to a Generator.
type GeneratorFunc func(m *Model)

func (f GeneratorFunc) AddConstraints(m *Model) { f(m) }

// Pheromone is a Generator that applies from DropTime until
// VanishingTime. Dropper identifies the vehicle that left it; vehicles
// are not constrained by their own pheromones.
type Pheromone struct {
	Dropper       string
	LifeSpan      time.Duration
	Generator     Generator
	DropTime      time.Time
	VanishingTime time.Time
}

func (p *Pheromone) activeAt(t time.Time) bool {
	return !t.Before(p.DropTime) && t.Before(p.VanishingTime)
}

// pheromoneHeap is a min-heap on VanishingTime.
type pheromoneHeap []*Pheromone

func (h pheromoneHeap) Len() int           { return len(h) }
func (h pheromoneHeap) Less(i, j int) bool { return h[i].VanishingTime.Before(h[j].VanishingTime) }
func (h pheromoneHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *pheromoneHeap) Push(x any)        { *h = append(*h, x.(*Pheromone)) }
func (h *pheromoneHeap) Pop() any {
	old := *h
	n := len(old)
	p := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return p
}

// Environment is the shared pheromone store. All methods are safe for
// concurrent use.
type Environment struct {
	clock   flight.Clock
	refresh time.Duration
	lg      *log.Logger

	mu         util.LoggingMutex
	pheromones pheromoneHeap

	neighbors *expirable.LRU[string, flight.Pose]
}

// EnvironmentConfig configures an Environment.
type EnvironmentConfig struct {
	// RefreshRate is how often, in Hz, Run sweeps expired pheromones.
	RefreshRate float64
	// NeighborTTL is how long a dropper is remembered by Neighbors.
	NeighborTTL time.Duration
}

func NewEnvironment(clock flight.Clock, cfg EnvironmentConfig, lg *log.Logger) (*Environment, error) {
	if cfg.RefreshRate <= 0 {
		return nil, ErrInvalidRefreshRate
	}
	return &Environment{
		clock:     clock,
		refresh:   util.Seconds(1 / cfg.RefreshRate),
		lg:        lg,
		mu:        util.LoggingMutex{Name: "pheromones"},
		neighbors: expirable.NewLRU[string, flight.Pose](256, nil, cfg.NeighborTTL),
	}, nil
}

// DropPheromone stamps p with the current time and adds it to the
// store.
func (e *Environment) DropPheromone(p Pheromone) error {
	if p.LifeSpan <= 0 {
		return ErrInvalidLifeSpan
	} else if p.Generator == nil {
		return ErrNoGenerator
	}

	p.DropTime = e.clock.Now()
	p.VanishingTime = p.DropTime.Add(p.LifeSpan)

	e.mu.Lock(e.lg)
	heap.Push(&e.pheromones, &p)
	e.mu.Unlock(e.lg)

	e.lg.Debug("dropped pheromone", slog.String("dropper", p.Dropper), slog.Time("vanishing", p.VanishingTime))
	return nil
}

// DropKeepDistance drops a KeepDistance pheromone at the dropper's pose.
func (e *Environment) DropKeepDistance(dropper string, pose flight.Pose, minimumDistance float64, lifeSpan time.Duration) error {
	kd, err := NewKeepDistance(pose, minimumDistance)
	if err != nil {
		return err
	}
	if err := e.DropPheromone(Pheromone{Dropper: dropper, LifeSpan: lifeSpan, Generator: kd}); err != nil {
		return err
	}
	e.neighbors.Add(dropper, pose)
	return nil
}

// Sweep removes every pheromone whose vanishing time has passed and
// returns how many were removed.
func (e *Environment) Sweep() int {
	now := e.clock.Now()

	e.mu.Lock(e.lg)
	defer e.mu.Unlock(e.lg)

	n := 0
	for len(e.pheromones) > 0 && !e.pheromones[0].VanishingTime.After(now) {
		heap.Pop(&e.pheromones)
		n++
	}
	if n > 0 {
		e.lg.Debug("swept pheromones", slog.Int("removed", n), slog.Int("remaining", len(e.pheromones)))
	}
	return n
}

// Run sweeps at the refresh rate until ctx is done.
func (e *Environment) Run(ctx context.Context) error {
	return util.Every(ctx, e.refresh, func() { e.Sweep() })
}

// Len returns the number of pheromones in the store, including expired
// ones that have not been swept yet.
func (e *Environment) Len() int {
	e.mu.Lock(e.lg)
	defer e.mu.Unlock(e.lg)
	return len(e.pheromones)
}

// AddConstraints lets every active pheromone not dropped by self
// contribute to m, and returns the number that did. The set of
// pheromones is snapshotted first so that generators run without the
// lock held.
func (e *Environment) AddConstraints(m *Model, self string) int {
	e.mu.Lock(e.lg)
	snapshot := slices.Clone(e.pheromones)
	e.mu.Unlock(e.lg)

	now := e.clock.Now()
	n := 0
	for _, p := range snapshot {
		if p.Dropper == self || !p.activeAt(now) {
			continue
		}
		p.Generator.AddConstraints(m)
		n++
	}
	return n
}

// Neighbors returns the names of the vehicles that have recently dropped
// keep-distance pheromones, with the pose of their latest drop.
func (e *Environment) Neighbors() map[string]flight.Pose {
	r := make(map[string]flight.Pose)
	for _, k := range e.neighbors.Keys() {
		if p, ok := e.neighbors.Peek(k); ok {
			r[k] = p
		}
	}
	return r
}
