// task/task.go
// Copyright(c) 2025 flightctl contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package task runs sequences of commands one at a time, letting a more
// urgent sequence preempt the one in flight.
package task

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/flightctl/flightctl/command"
	"github.com/flightctl/flightctl/log"
	"github.com/flightctl/flightctl/util"
)

type TaskType int

const (
	FirstOrderEmergency TaskType = iota
	SecondOrderEmergency
	Normal
)

func (t TaskType) String() string {
	switch t {
	case FirstOrderEmergency:
		return "first-order emergency"
	case SecondOrderEmergency:
		return "second-order emergency"
	default:
		return "normal"
	}
}

// HasHigherPriority reports whether t should preempt other.
func (t TaskType) HasHigherPriority(other TaskType) bool {
	return t < other
}

// Task is an immutable sequence of commands.
type Task struct {
	Name     string
	Type     TaskType
	commands []command.Command
}

func New(name string, typ TaskType, commands ...command.Command) *Task {
	return &Task{Name: name, Type: typ, commands: slices.Clone(commands)}
}

func (t *Task) Commands() []command.Command {
	return slices.Clone(t.commands)
}

func (t *Task) LogValue() slog.Value {
	return slog.GroupValue(slog.String("name", t.Name), slog.String("type", t.Type.String()),
		slog.Int("commands", len(t.commands)))
}

type Status int

const (
	Accepted Status = iota
	Rejected
)

func (s Status) String() string {
	if s == Accepted {
		return "accepted"
	}
	return "rejected"
}

///////////////////////////////////////////////////////////////////////////
// Executor

type run struct {
	task   *Task
	cancel context.CancelFunc
	done   chan struct{}
}

func (r *run) finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Executor runs at most one task at a time.
type Executor struct {
	Name string

	ctx    context.Context
	cancel context.CancelFunc
	lg     *log.Logger

	mu      util.LoggingMutex
	current *run
	closed  bool
}

func NewExecutor(name string, lg *log.Logger) *Executor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Executor{
		Name:   name,
		ctx:    ctx,
		cancel: cancel,
		lg:     lg.With(slog.String("executor", name)),
		mu:     util.LoggingMutex{Name: "executor " + name},
	}
}

// Submit starts t if the executor is idle or if t has strictly higher
// priority than the running task. In the latter case the running task is
// cancelled and Submit waits for it to return before t starts.
func (e *Executor) Submit(t *Task) Status {
	e.mu.Lock(e.lg)
	defer e.mu.Unlock(e.lg)

	if e.closed {
		e.lg.Warn("task rejected by closed executor", slog.Any("task", t))
		return Rejected
	}

	if r := e.current; r != nil && !r.finished() {
		if !t.Type.HasHigherPriority(r.task.Type) {
			e.lg.Info("task rejected", slog.Any("task", t), slog.Any("running", r.task))
			return Rejected
		}
		e.lg.Info("preempting task", slog.Any("task", t), slog.Any("running", r.task))
		r.cancel()
		<-r.done
	}

	ctx, cancel := context.WithCancel(e.ctx)
	r := &run{task: t, cancel: cancel, done: make(chan struct{})}
	e.current = r
	go e.run(ctx, r)

	e.lg.Info("task accepted", slog.Any("task", t))
	return Accepted
}

func (e *Executor) run(ctx context.Context, r *run) {
	defer func() {
		r.cancel()
		close(r.done)

		e.mu.Lock(e.lg)
		if e.current == r {
			e.current = nil
		}
		e.mu.Unlock(e.lg)
	}()
	defer e.lg.CatchAndReportCrash()

	for i, c := range r.task.commands {
		if err := c.Execute(ctx); err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				e.lg.Info("task cancelled", slog.Any("task", r.task), slog.Int("command", i))
			} else {
				e.lg.Error("command failed, abandoning task", slog.Any("task", r.task), slog.Int("command", i),
					slog.Any("error", err))
			}
			return
		}
	}
	e.lg.Info("task finished", slog.Any("task", r.task))
}

// Running returns the task currently running, if any.
func (e *Executor) Running() (*Task, bool) {
	e.mu.Lock(e.lg)
	defer e.mu.Unlock(e.lg)

	if e.current == nil || e.current.finished() {
		return nil, false
	}
	return e.current.task, true
}

// Wait blocks until no task is running or ctx is done.
func (e *Executor) Wait(ctx context.Context) error {
	for {
		e.mu.Lock(e.lg)
		r := e.current
		e.mu.Unlock(e.lg)

		if r == nil {
			return nil
		}
		select {
		case <-r.done:
		case <-ctx.Done():
			return ctx.Err()
		}

		// A new task may have been submitted in the meantime.
		e.mu.Lock(e.lg)
		idle := e.current == nil || e.current == r
		e.mu.Unlock(e.lg)
		if idle {
			return nil
		}
	}
}

// Close cancels the running task, waits for it to return and rejects
// all later submissions.
func (e *Executor) Close() {
	e.mu.Lock(e.lg)
	e.closed = true
	r := e.current
	e.mu.Unlock(e.lg)

	e.cancel()
	if r != nil {
		<-r.done
	}
}
