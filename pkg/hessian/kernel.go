package hessian

import (
	"math"
)

// Kernel is a sampled 1D correlation kernel centred on index Radius.
type Kernel struct {
	Weights []float64
	Radius  int
}

// minMoment is the smallest kernel moment that is normalized directly.
// Below it the off-centre Gaussian taps have underflowed and the kernels are
// replaced by their central difference limits.
const minMoment = 1e-100

// kernelRadius returns the half width for a Gaussian of the given
// standard deviation in voxels.
func kernelRadius(s float64) int {
	r := int(math.Ceil(4 * s))
	if r < 1 {
		r = 1
	}
	return r
}

// GaussianKernels returns the order 0, 1 and 2 Gaussian derivative kernels
// for a standard deviation of s voxels.
//
// The zeroth kernel sums to one. The first and second order kernels are
// normalized to reproduce the derivatives of x and x^2/2 exactly, so the
// result does not depend on how coarsely the Gaussian is sampled.
func GaussianKernels(s float64) (g0, g1, g2 Kernel) {
	r := kernelRadius(s)
	n := 2*r + 1

	w0 := make([]float64, n)
	w1 := make([]float64, n)
	w2 := make([]float64, n)

	s2 := s * s
	var sum float64
	for i := 0; i < n; i++ {
		x := float64(i - r)
		u := x / s
		w0[i] = math.Exp(-u * u / 2)
		sum += w0[i]
	}
	for i := range w0 {
		w0[i] /= sum
	}

	// First order: antisymmetric, sum(x * w1) == 1
	var m1 float64
	for i := 0; i < n; i++ {
		x := float64(i - r)
		w1[i] = x * w0[i]
		m1 += x * w1[i]
	}
	if m1 <= minMoment {
		centralDifference(w1, r, -0.5, 0, 0.5)
	} else {
		for i := range w1 {
			w1[i] /= m1
		}
	}

	// Second order: zero mean, sum(x^2/2 * w2) == 1
	var mean float64
	for i := 0; i < n; i++ {
		x := float64(i - r)
		w2[i] = (x*x/(s2*s2) - 1/s2) * w0[i]
		mean += w2[i]
	}
	mean /= float64(n)
	var m2 float64
	for i := 0; i < n; i++ {
		x := float64(i - r)
		w2[i] -= mean
		m2 += x * x / 2 * w2[i]
	}
	if m2 <= minMoment || math.IsNaN(m2) {
		centralDifference(w2, r, 1, -2, 1)
	} else {
		for i := range w2 {
			w2[i] /= m2
		}
	}

	return Kernel{w0, r}, Kernel{w1, r}, Kernel{w2, r}
}

// centralDifference overwrites w with the three tap stencil around r.
func centralDifference(w []float64, r int, left, centre, right float64) {
	for i := range w {
		w[i] = 0
	}
	w[r-1], w[r], w[r+1] = left, centre, right
}
