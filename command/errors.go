// command/errors.go
// Copyright(c) 2025 flightctl contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package command

import "errors"

var (
	ErrInvalidDuration = errors.New("duration must be positive")
	ErrInvalidPeriod   = errors.New("period must be positive")
	ErrNoTrajectory    = errors.New("no trajectory given")
	ErrNoController    = errors.New("no controller given")
	ErrNoStateSource   = errors.New("no state source given")
	ErrNoVelocitySink  = errors.New("no velocity sink given")
)
