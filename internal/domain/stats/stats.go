// Package stats holds the small numeric helpers shared by the engines.
// Every function is deterministic for a given input order.
package stats

import "math"

// Sum adds xs with Neumaier compensation.
func Sum(xs []float64) float64 {
	var sum, c float64
	for _, x := range xs {
		t := sum + x
		if math.Abs(sum) >= math.Abs(x) {
			c += (sum - t) + x
		} else {
			c += (x - t) + sum
		}
		sum = t
	}
	return sum + c
}

// Mean returns the arithmetic mean; ok is false for an empty slice.
func Mean(xs []float64) (mean float64, ok bool) {
	if len(xs) == 0 {
		return 0, false
	}
	return Sum(xs) / float64(len(xs)), true
}

// StdDev returns the population standard deviation.
func StdDev(xs []float64) (sd float64, ok bool) {
	m, ok := Mean(xs)
	if !ok {
		return 0, false
	}
	sq := make([]float64, len(xs))
	for i, x := range xs {
		d := x - m
		sq[i] = d * d
	}
	return math.Sqrt(Sum(sq) / float64(len(xs))), true
}

// Slope fits y = a + b*x by least squares over x = 0..n-1 and returns b.
// Entries that are NaN are skipped; ok is false with fewer than two points.
func Slope(ys []float64) (slope float64, ok bool) {
	var xs, vs []float64
	for i, y := range ys {
		if math.IsNaN(y) {
			continue
		}
		xs = append(xs, float64(i))
		vs = append(vs, y)
	}
	if len(vs) < 2 {
		return 0, false
	}
	mx, _ := Mean(xs)
	my, _ := Mean(vs)
	num := make([]float64, len(vs))
	den := make([]float64, len(vs))
	for i := range vs {
		dx := xs[i] - mx
		num[i] = dx * (vs[i] - my)
		den[i] = dx * dx
	}
	d := Sum(den)
	if d == 0 {
		return 0, false
	}
	return Sum(num) / d, true
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
