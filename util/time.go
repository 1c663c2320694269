// util/time.go
// Copyright(c) 2025 flightctl contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"context"
	"time"
)

// Every calls fn immediately and then once per period until ctx is
// done. Calls never overlap: if fn takes longer than period, the missed
// ticks are dropped. Every returns ctx.Err().
func Every(ctx context.Context, period time.Duration, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fn()

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// Check again so that no call starts after cancellation even
			// if both channels were ready.
			if err := ctx.Err(); err != nil {
				return err
			}
			fn()
		}
	}
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Seconds converts a floating-point number of seconds to a Duration.
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
