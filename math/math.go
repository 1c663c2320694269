// math/math.go
// Copyright(c) 2025 flightctl contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package math

import (
	gomath "math"

	"golang.org/x/exp/constraints"
)

const Pi = gomath.Pi

func Sin(a float64) float64 { return gomath.Sin(a) }
func Cos(a float64) float64 { return gomath.Cos(a) }
func Sqrt(a float64) float64 { return gomath.Sqrt(a) }
func Atan2(y, x float64) float64 { return gomath.Atan2(y, x) }
func Hypot(p, q float64) float64 { return gomath.Hypot(p, q) }
func Inf(sign int) float64 { return gomath.Inf(sign) }

func Ceil(v float64) float64 { return gomath.Ceil(v) }

func Abs[V constraints.Integer | constraints.Float](x V) V {
	if x < 0 {
		return -x
	}
	return x
}

func Min[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}

func Max[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}

func Sqr[V constraints.Integer | constraints.Float](v V) V { return v * v }

func Clamp[T constraints.Ordered](x T, low T, high T) T {
	if x < low {
		return low
	} else if x > high {
		return high
	}
	return x
}

func Sign(v float64) float64 {
	if v > 0 {
		return 1
	} else if v < 0 {
		return -1
	}
	return 0
}

// Degrees converts an angle expressed in radians to degrees.
func Degrees(r float64) float64 {
	return r * 180 / gomath.Pi
}

// Radians converts an angle expressed in degrees to radians.
func Radians(d float64) float64 {
	return d / 180 * gomath.Pi
}

// NormalizeAngle maps a to the range [-pi, pi).
func NormalizeAngle(a float64) float64 {
	a = gomath.Mod(a+gomath.Pi, 2*gomath.Pi)
	if a < 0 {
		a += 2 * gomath.Pi
	}
	return a - gomath.Pi
}

// AngleDistance returns the signed angle that takes from to to, in
// [-pi, pi).
func AngleDistance(from, to float64) float64 {
	return NormalizeAngle(to - from)
}

// Mean returns the arithmetic mean of v, or 0 if v is empty.
func Mean[V constraints.Float](v ...V) V {
	if len(v) == 0 {
		return 0
	}
	var sum V
	for _, x := range v {
		sum += x
	}
	return sum / V(len(v))
}
