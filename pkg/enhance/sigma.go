package enhance

import (
	"errors"
	"fmt"
	"math"
)

// SigmaStepMethod selects how scales are spread between a minimum and maximum.
type SigmaStepMethod int

const (
	// EquispacedSigmaSteps spaces scales linearly between min and max.
	EquispacedSigmaSteps SigmaStepMethod = iota
	// LogarithmicSigmaSteps spaces scales so their logarithms are
	// equispaced, placing more scales near min.
	LogarithmicSigmaSteps
)

var (
	// ErrEmptySigmaArray is returned when no scales are configured.
	ErrEmptySigmaArray = errors.New("sigma array is empty")

	// ErrNoSigmaSteps is returned when zero steps are requested.
	ErrNoSigmaSteps = errors.New("number of sigma steps must be at least 1")
)

// GenerateSigmaArray spreads steps scales between min and max inclusive.
// The order of min and max does not matter. When min equals max a single
// scale is returned whatever the step count.
func GenerateSigmaArray(min, max float64, steps int, method SigmaStepMethod) ([]float64, error) {
	switch method {
	case EquispacedSigmaSteps:
		return GenerateEquispacedSigmaArray(min, max, steps)
	case LogarithmicSigmaSteps:
		return GenerateLogarithmicSigmaArray(min, max, steps)
	default:
		return nil, fmt.Errorf("unknown sigma step method %d", method)
	}
}

// GenerateEquispacedSigmaArray returns scales with a constant difference.
func GenerateEquispacedSigmaArray(min, max float64, steps int) ([]float64, error) {
	return generate(min, max, steps, func(v float64) float64 { return v }, func(v float64) float64 { return v })
}

// GenerateLogarithmicSigmaArray returns scales with a constant ratio.
func GenerateLogarithmicSigmaArray(min, max float64, steps int) ([]float64, error) {
	if min <= 0 || max <= 0 {
		return nil, fmt.Errorf("logarithmic sigma steps need positive bounds, got %g and %g", min, max)
	}
	return generate(min, max, steps, math.Log, math.Exp)
}

func generate(min, max float64, steps int, forward, inverse func(float64) float64) ([]float64, error) {
	if steps < 1 {
		return nil, ErrNoSigmaSteps
	}
	if min > max {
		min, max = max, min
	}
	if min == max || steps == 1 {
		return []float64{min}, nil
	}

	lo := forward(min)
	step := (forward(max) - lo) / float64(steps-1)

	sigmas := make([]float64, steps)
	for i := range sigmas {
		sigmas[i] = inverse(lo + float64(i)*step)
	}
	// Pin the end points against rounding
	sigmas[0] = min
	sigmas[steps-1] = max
	return sigmas, nil
}
