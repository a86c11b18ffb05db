package measure

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"boneenhance/internal/models"
	"boneenhance/internal/parallel"
	"boneenhance/pkg/hessian"
)

// Krcah computes the sheetness measure of Krcah et al.
//
//	Rsheet = |l2| / |l3|
//	Rtube  = |l1| / (|l2| |l3|)
//	Rnoise = |l1| + |l2| + |l3|
//	s = sign(E l3) exp(-Rsheet^2 / a^2) exp(-Rtube^2 / b^2) (1 - exp(-Rnoise^2 / g^2))
//
// The average trace of the Hessian is folded into g by KrcahEstimator.
// Unlike Descoteaux the response is signed, so the multiscale maximum
// keeps the structure with the strongest response of either polarity.
type Krcah struct {
	EnhanceType EnhanceType
}

// NewKrcah returns a Krcah measure enhancing bright objects.
func NewKrcah() *Krcah {
	return &Krcah{EnhanceType: EnhanceBrightObjects}
}

// EigenValueOrder implements EigenToMeasure.
func (k *Krcah) EigenValueOrder() hessian.EigenValueOrder {
	return hessian.OrderByMagnitude
}

// Apply implements EigenToMeasure. params is [alpha, beta, gamma].
func (k *Krcah) Apply(ev *models.EigenVolume, mask *models.Mask, params []float64, workers int) ([]float64, error) {
	if err := checkParameters(params); err != nil {
		return nil, err
	}
	if err := checkInputs(ev, mask); err != nil {
		return nil, err
	}
	alpha, beta, gamma := params[0], params[1], params[2]
	return applyPixelwise(ev, mask, workers, func(p [3]float64) float64 {
		return k.Pixel(p, alpha, beta, gamma)
	}), nil
}

// Pixel evaluates the measure for one magnitude-ordered eigenvalue triple.
func (k *Krcah) Pixel(p [3]float64, alpha, beta, gamma float64) float64 {
	a3 := p[2]
	l1 := math.Abs(p[0])
	l2 := math.Abs(p[1])
	l3 := math.Abs(a3)

	if l3 < eps || l2 < eps {
		return 0
	}

	rSheet := l2 / l3
	rNoise := l1 + l2 + l3
	rTube := l1 / (l2 * l3)

	sheetness := float64(k.EnhanceType) * a3 / l3
	sheetness *= math.Exp(-(rSheet * rSheet) / (alpha * alpha))
	sheetness *= math.Exp(-(rTube * rTube) / (beta * beta))
	sheetness *= 1 - math.Exp(-(rNoise*rNoise)/(gamma*gamma))
	return sheetness
}

// ParameterSet selects which published constants KrcahEstimator uses.
type ParameterSet int

const (
	// UseImplementationParameters follows the authors' reference code:
	// alpha = beta = gamma = sqrt(2)/2 and trace = sum |li|.
	UseImplementationParameters ParameterSet = iota
	// UseJournalParameters follows the journal article:
	// alpha = beta = 0.5, gamma = 0.25 and trace = sum li.
	UseJournalParameters
)

func (p ParameterSet) String() string {
	switch p {
	case UseImplementationParameters:
		return "implementation"
	case UseJournalParameters:
		return "journal"
	default:
		return fmt.Sprintf("ParameterSet(%d)", int(p))
	}
}

// KrcahEstimator scales gamma by the average Hessian trace over the mask.
type KrcahEstimator struct {
	ParameterSet ParameterSet
}

// NewKrcahEstimator returns an estimator using the implementation parameters.
func NewKrcahEstimator() *KrcahEstimator {
	return &KrcahEstimator{ParameterSet: UseImplementationParameters}
}

// Estimate implements ParameterEstimator.
func (e *KrcahEstimator) Estimate(ev *models.EigenVolume, mask *models.Mask, workers int) ([]float64, error) {
	if err := checkInputs(ev, mask); err != nil {
		return nil, err
	}

	var alpha, beta, gamma float64
	var trace func([3]float64) float64
	switch e.ParameterSet {
	case UseImplementationParameters:
		alpha = math.Sqrt2 * 0.5
		beta = math.Sqrt2 * 0.5
		gamma = math.Sqrt2 * 0.5
		trace = absoluteTrace
	case UseJournalParameters:
		alpha = 0.5
		beta = 0.5
		gamma = 0.25
		trace = signedTrace
	default:
		return nil, fmt.Errorf("bad parameter set %v", e.ParameterSet)
	}

	workers = parallel.Workers(workers)
	partial := make([][]float64, workers)
	parallel.For(len(ev.Data), workers, func(w, start, end int) {
		traces := make([]float64, 0, end-start)
		for i := start; i < end; i++ {
			if mask.Contains(i) {
				traces = append(traces, trace(ev.Data[i]))
			}
		}
		partial[w] = traces
	})

	var traces []float64
	for _, p := range partial {
		traces = append(traces, p...)
	}

	if len(traces) > 0 {
		gamma *= stat.Mean(traces, nil)
	} else {
		gamma = 0
	}

	return []float64{alpha, beta, gamma}, nil
}

func absoluteTrace(p [3]float64) float64 {
	return math.Abs(p[0]) + math.Abs(p[1]) + math.Abs(p[2])
}

func signedTrace(p [3]float64) float64 {
	return p[0] + p[1] + p[2]
}
