// venv/errors.go
// Copyright(c) 2025 flightctl contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package venv

import "errors"

var (
	ErrInfeasible              = errors.New("no velocity satisfies the active constraints")
	ErrInvalidMinimumDistance  = errors.New("minimum distance must be positive")
	ErrInvalidLifeSpan         = errors.New("pheromone life span must be positive")
	ErrNoGenerator             = errors.New("pheromone has no constraint generator")
	ErrInvalidRefreshRate      = errors.New("refresh rate must be positive")
	ErrInvalidControlTimeDelta = errors.New("control time delta must not be negative")
)
