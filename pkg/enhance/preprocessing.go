package enhance

import (
	"context"
	"fmt"

	"boneenhance/internal/logger"
	"boneenhance/internal/models"
	"boneenhance/pkg/hessian"
)

// KrcahPreprocessing sharpens a volume with an unsharp mask,
// I + k (I - I*G), before Krcah enhancement.
type KrcahPreprocessing struct {
	// Sigma is the Gaussian standard deviation in mm
	Sigma float64

	// ScalingConstant is k
	ScalingConstant float64

	// Workers is the number of goroutines for the Gaussian
	Workers int

	// Progress, when set, receives the completed fraction
	Progress ProgressFunc
}

// NewKrcahPreprocessing returns the filter with sigma 1 and k 10.
func NewKrcahPreprocessing() *KrcahPreprocessing {
	return &KrcahPreprocessing{Sigma: 1, ScalingConstant: 10}
}

// Run returns the sharpened volume. The output keeps the input's element
// type so it can be written back in the same format.
func (f *KrcahPreprocessing) Run(ctx context.Context, input *models.Volume) (*models.Volume, error) {
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	p := newProgress(f.Progress)
	p.report(0)

	// I*G
	blurred, err := hessian.Smooth(ctx, input, f.Sigma, f.Workers)
	if err != nil {
		return nil, fmt.Errorf("gaussian smoothing: %w", err)
	}
	p.report(0.25)

	out := input.CopyGeometry()

	// I - I*G
	for i, v := range input.Data {
		out.Data[i] = v - blurred.Data[i]
	}
	p.report(0.5)

	// k(I - I*G)
	for i := range out.Data {
		out.Data[i] *= f.ScalingConstant
	}
	p.report(0.75)

	// I + k(I - I*G)
	for i, v := range input.Data {
		out.Data[i] += v
	}
	p.report(1)

	logger.WithField("sigma", f.Sigma).WithField("k", f.ScalingConstant).Debug("preprocessing done")
	return out, nil
}
