// command/command.go
// Copyright(c) 2025 flightctl contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package command defines the unit of work run by a task executor and the
// flight commands built on the periodic control loop.
package command

import (
	"context"
	"time"

	"github.com/flightctl/flightctl/flight"
	"github.com/flightctl/flightctl/monitor"
	"github.com/flightctl/flightctl/util"
)

// Command is one step of a task. Execute blocks until the command is done
// and returns nil, or until ctx is cancelled and returns ctx.Err().
type Command interface {
	Execute(ctx context.Context) error
}

// Func adapts a function to a Command.
type Func func(ctx context.Context) error

func (f Func) Execute(ctx context.Context) error { return f(ctx) }

// Sequence runs its commands in order and stops at the first error.
type Sequence []Command

func (s Sequence) Execute(ctx context.Context) error {
	for _, c := range s {
		if err := c.Execute(ctx); err != nil {
			return err
		}
	}
	return nil
}

// RunPeriodic calls step immediately and then once per period on the
// calling goroutine. It returns nil once duration has elapsed and
// ctx.Err() if ctx is cancelled first. No call to step starts after
// RunPeriodic returns.
func RunPeriodic(ctx context.Context, period, duration time.Duration, step func()) error {
	if period <= 0 {
		return ErrInvalidPeriod
	} else if duration <= 0 {
		return ErrInvalidDuration
	}

	tctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	util.Every(tctx, period, step)

	// Every always returns tctx's error; only the parent's matters.
	return ctx.Err()
}

///////////////////////////////////////////////////////////////////////////
// Wait decorators

// WaitUntil polls the clock every 20ms and runs cmd once start has been
// reached.
func WaitUntil(cmd Command, start time.Time, clock flight.Clock) Command {
	return Func(func(ctx context.Context) error {
		if err := monitor.NewStartTime(start, clock).Run(ctx); err != nil {
			return err
		}
		return cmd.Execute(ctx)
	})
}

// LocalizationPollPeriod is how often WaitForLocalization checks for a
// state.
const LocalizationPollPeriod = 50 * time.Millisecond

// WaitForLocalization runs cmd once source has produced a state.
func WaitForLocalization(cmd Command, source flight.StateSource) Command {
	return Func(func(ctx context.Context) error {
		ctx2, cancel := context.WithCancel(ctx)
		defer cancel()

		localized := false
		util.Every(ctx2, LocalizationPollPeriod, func() {
			if _, ok := source.CurrentState(); ok {
				localized = true
				cancel()
			}
		})
		if !localized {
			return ctx.Err()
		}
		return cmd.Execute(ctx)
	})
}
