// Package enhance drives the multiscale Hessian enhancement pipeline and
// the Krcah unsharp-mask preprocessing.
package enhance

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"boneenhance/internal/logger"
	"boneenhance/internal/models"
	"boneenhance/pkg/hessian"
	"boneenhance/pkg/measure"
)

// Share of one scale spent in each stage, used for progress reporting.
const (
	hessianShare  = 0.70
	eigenShare    = 0.20
	estimateShare = 0.05
	measureShare  = 0.05
)

// MultiScale enhances a volume with an eigenvalue measure at several scales
// and keeps, per voxel, the response with the largest magnitude.
//
// For every sigma the Hessian is computed, decomposed into eigenvalues in
// the order the measure asks for, parameters are estimated (when an
// estimator is set) and the measure is applied.
type MultiScale struct {
	// Measure converts eigenvalues into the scalar response
	Measure measure.EigenToMeasure

	// Estimator derives the measure parameters at each scale. When nil,
	// Parameters is used for every scale.
	Estimator measure.ParameterEstimator

	// Parameters are the fixed measure parameters used without an estimator
	Parameters []float64

	// Sigmas are the scales in mm
	Sigmas []float64

	// Mask restricts estimation and measurement; nil means the whole image
	Mask *models.Mask

	// Hessian controls the derivative computation
	Hessian hessian.Options

	// Workers is the number of goroutines per stage
	Workers int

	// Progress, when set, receives the completed fraction
	Progress ProgressFunc
}

// NewMultiScale creates a filter for the given measure and scales.
func NewMultiScale(m measure.EigenToMeasure, sigmas []float64) *MultiScale {
	return &MultiScale{
		Measure:    m,
		Parameters: measure.DefaultParameters(),
		Sigmas:     sigmas,
		Hessian:    hessian.DefaultOptions(),
	}
}

// Run executes the filter and returns the combined response as a float volume.
func (f *MultiScale) Run(ctx context.Context, input *models.Volume) (*models.Volume, error) {
	if f.Measure == nil {
		return nil, fmt.Errorf("multiscale filter has no eigen-to-measure filter")
	}
	if len(f.Sigmas) == 0 {
		return nil, ErrEmptySigmaArray
	}
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if f.Mask != nil && !f.Mask.Matches(input.Width, input.Height, input.Depth) {
		return nil, fmt.Errorf("%w: mask %dx%dx%d, image %dx%dx%d", measure.ErrMaskMismatch,
			f.Mask.Width, f.Mask.Height, f.Mask.Depth, input.Width, input.Height, input.Depth)
	}

	out := input.CopyGeometry()
	out.ElementType = models.ElementFloat

	p := newProgress(f.Progress)
	p.report(0)

	span := 1.0 / float64(len(f.Sigmas))
	for level, sigma := range f.Sigmas {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		response, params, err := f.responseAtScale(ctx, input, sigma, p.stage(float64(level)*span, span))
		if err != nil {
			return nil, fmt.Errorf("scale %d (sigma %g): %w", level, sigma, err)
		}

		if level == 0 {
			copy(out.Data, response)
		} else if err := MaximumAbsoluteValue(out.Data, response); err != nil {
			return nil, err
		}

		logger.WithFields(logrus.Fields{
			"sigma":      sigma,
			"parameters": params,
			"duration":   time.Since(start).String(),
		}).Debug("computed response at scale")
	}

	p.report(1)
	return out, nil
}

// responseAtScale computes the measure at one sigma; report receives the
// completed fraction of this scale.
func (f *MultiScale) responseAtScale(ctx context.Context, input *models.Volume, sigma float64,
	report func(float64)) ([]float64, []float64, error) {
	opts := f.Hessian
	opts.Workers = f.Workers

	h, err := hessian.Compute(ctx, input, sigma, opts)
	if err != nil {
		return nil, nil, err
	}
	at := hessianShare
	report(at)

	ev, err := hessian.EigenAnalysis(h, f.Measure.EigenValueOrder(), f.Workers)
	if err != nil {
		return nil, nil, err
	}
	at += eigenShare
	report(at)

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	params := f.Parameters
	if f.Estimator != nil {
		params, err = f.Estimator.Estimate(ev, f.Mask, f.Workers)
		if err != nil {
			return nil, nil, fmt.Errorf("estimating parameters: %w", err)
		}
	}
	at += estimateShare
	report(at)

	response, err := f.Measure.Apply(ev, f.Mask, params, f.Workers)
	if err != nil {
		return nil, nil, err
	}
	report(at + measureShare)

	return response, params, nil
}
