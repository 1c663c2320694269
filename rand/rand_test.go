// rand/rand_test.go
// Copyright(c) 2025 flightctl contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package rand

import (
	gomath "math"
	"testing"
)

func TestSeeded(t *testing.T) {
	a, b := NewSeeded(42), NewSeeded(42)
	for i := range 100 {
		if x, y := a.Uint32(), b.Uint32(); x != y {
			t.Fatalf("%d: same seed gave %d and %d", i, x, y)
		}
	}
}

func TestFloat64Range(t *testing.T) {
	r := NewSeeded(1)
	for range 10000 {
		if v := r.Float64(); v < 0 || v >= 1 {
			t.Fatalf("Float64 out of range: %g", v)
		}
	}
}

func TestGaussian(t *testing.T) {
	r := NewSeeded(7)
	const n = 20000
	var sum, sum2 float64
	for range n {
		v := r.Gaussian(3, 2)
		sum += v
		sum2 += v * v
	}
	mean := sum / n
	stddev := gomath.Sqrt(sum2/n - mean*mean)
	if gomath.Abs(mean-3) > 0.1 {
		t.Errorf("Expected mean near 3, got %g", mean)
	}
	if gomath.Abs(stddev-2) > 0.1 {
		t.Errorf("Expected stddev near 2, got %g", stddev)
	}
}
