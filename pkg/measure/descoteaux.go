package measure

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"boneenhance/internal/models"
	"boneenhance/internal/parallel"
	"boneenhance/pkg/hessian"
)

// Descoteaux computes the sheetness measure of Descoteaux et al.
//
//	Rsheet = |l2| / |l3|
//	Rblob  = |2|l3| - |l2| - |l1|| / |l3|
//	Rnoise = sqrt(l1^2 + l2^2 + l3^2)
//	s = exp(-Rsheet^2 / 2a^2) (1 - exp(-Rblob^2 / 2b^2)) (1 - exp(-Rnoise^2 / 2c^2))
//
// s is zero when l3 has the sign of the structure not being enhanced.
type Descoteaux struct {
	EnhanceType EnhanceType
}

// NewDescoteaux returns a Descoteaux measure enhancing bright objects.
func NewDescoteaux() *Descoteaux {
	return &Descoteaux{EnhanceType: EnhanceBrightObjects}
}

// EigenValueOrder implements EigenToMeasure.
func (d *Descoteaux) EigenValueOrder() hessian.EigenValueOrder {
	return hessian.OrderByMagnitude
}

// Apply implements EigenToMeasure. params is [alpha, beta, c].
func (d *Descoteaux) Apply(ev *models.EigenVolume, mask *models.Mask, params []float64, workers int) ([]float64, error) {
	if err := checkParameters(params); err != nil {
		return nil, err
	}
	if err := checkInputs(ev, mask); err != nil {
		return nil, err
	}
	alpha, beta, c := params[0], params[1], params[2]
	return applyPixelwise(ev, mask, workers, func(p [3]float64) float64 {
		return d.Pixel(p, alpha, beta, c)
	}), nil
}

// Pixel evaluates the measure for one magnitude-ordered eigenvalue triple.
func (d *Descoteaux) Pixel(p [3]float64, alpha, beta, c float64) float64 {
	a3 := p[2]
	l1 := math.Abs(p[0])
	l2 := math.Abs(p[1])
	l3 := math.Abs(a3)

	if float64(d.EnhanceType)*a3 < 0 {
		return 0
	}
	if l3 < eps {
		return 0
	}

	rSheet := l2 / l3
	rBlob := math.Abs(2*l3-l2-l1) / l3
	rNoise := math.Sqrt(l1*l1 + l2*l2 + l3*l3)

	sheetness := 1.0
	sheetness *= math.Exp(-(rSheet * rSheet) / (2 * alpha * alpha))
	sheetness *= 1 - math.Exp(-(rBlob*rBlob)/(2*beta*beta))
	sheetness *= 1 - math.Exp(-(rNoise*rNoise)/(2*c*c))
	return sheetness
}

// DescoteauxEstimator sets c to a fraction of the largest Frobenius norm
// of the Hessian, with alpha and beta fixed at 0.5.
type DescoteauxEstimator struct {
	FrobeniusNormWeight float64
}

// NewDescoteauxEstimator returns an estimator with the default weight of 0.5.
func NewDescoteauxEstimator() *DescoteauxEstimator {
	return &DescoteauxEstimator{FrobeniusNormWeight: 0.5}
}

// Estimate implements ParameterEstimator.
func (e *DescoteauxEstimator) Estimate(ev *models.EigenVolume, mask *models.Mask, workers int) ([]float64, error) {
	if err := checkInputs(ev, mask); err != nil {
		return nil, err
	}

	workers = parallel.Workers(workers)
	maxima := make([]float64, workers)
	for i := range maxima {
		maxima[i] = math.Inf(-1)
	}

	parallel.For(len(ev.Data), workers, func(w, start, end int) {
		best := math.Inf(-1)
		for i := start; i < end; i++ {
			if !mask.Contains(i) {
				continue
			}
			best = math.Max(best, FrobeniusNorm(ev.Data[i]))
		}
		maxima[w] = best
	})

	c := 0.0
	if maxNorm := floats.Max(maxima); maxNorm > 0 {
		c = e.FrobeniusNormWeight * maxNorm
	}
	return []float64{0.5, 0.5, c}, nil
}

// FrobeniusNorm of a real symmetric matrix, given its eigenvalues.
func FrobeniusNorm(p [3]float64) float64 {
	return floats.Norm(p[:], 2)
}
