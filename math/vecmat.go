// math/vecmat.go
// Copyright(c) 2025 flightctl contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package math

import (
	gomath "math"
)

type Vec3 [3]float64

func (a Vec3) Add(b Vec3) Vec3 {
	return Vec3{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}

func (a Vec3) Sub(b Vec3) Vec3 {
	return Vec3{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func (a Vec3) Scale(s float64) Vec3 {
	return Vec3{a[0] * s, a[1] * s, a[2] * s}
}

func (a Vec3) Dot(b Vec3) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func (a Vec3) Length() float64 {
	return gomath.Sqrt(a.Dot(a))
}

func Distance3(a, b Vec3) float64 {
	return a.Sub(b).Length()
}

// Rotate2 rotates the vector (x, y) counterclockwise by theta radians.
func Rotate2(x, y, theta float64) (float64, float64) {
	s, c := gomath.Sincos(theta)
	return c*x - s*y, s*x + c*y
}
