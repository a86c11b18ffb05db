// Package measure converts Hessian eigenvalues into scalar sheetness
// measures and estimates the parameters those measures need.
//
// Two published methods are provided:
//
//   - Descoteaux et al., "A multi-scale geometric flow for segmenting
//     vasculature in MRI" adapted to sheet-like structures.
//   - Krcah et al., "Fully automatic and fast segmentation of the femur
//     bone from 3D-CT images with no shape prior".
//
// Both expect eigenvalues ordered by magnitude, |l1| <= |l2| <= |l3|.
package measure

import (
	"errors"
	"fmt"

	"boneenhance/internal/models"
	"boneenhance/internal/parallel"
	"boneenhance/pkg/hessian"
)

var (
	// ErrParameterSize is returned when a parameter array does not hold 3 values.
	ErrParameterSize = errors.New("parameters must have size 3")

	// ErrMaskMismatch is returned when the mask grid differs from the eigen image.
	ErrMaskMismatch = errors.New("mask does not match image dimensions")
)

// eps guards divisions by eigenvalues that are numerically zero.
const eps = 2.220446049250313e-16

// EnhanceType selects the sign of the second derivative that is enhanced.
type EnhanceType float64

const (
	// EnhanceBrightObjects enhances bright sheets on a dark background.
	EnhanceBrightObjects EnhanceType = -1
	// EnhanceDarkObjects enhances dark sheets on a bright background.
	EnhanceDarkObjects EnhanceType = 1
)

// EnhanceTypeFor maps the bright/dark choice to an EnhanceType.
func EnhanceTypeFor(bright bool) EnhanceType {
	if bright {
		return EnhanceBrightObjects
	}
	return EnhanceDarkObjects
}

func (e EnhanceType) String() string {
	if e < 0 {
		return "bright"
	}
	return "dark"
}

// DefaultParameters are the parameters used before any estimation has run.
func DefaultParameters() []float64 {
	return []float64{0.5, 0.5, 1}
}

// EigenToMeasure maps an eigenvalue image to a scalar image.
type EigenToMeasure interface {
	// EigenValueOrder is the ordering the measure expects its input in.
	EigenValueOrder() hessian.EigenValueOrder

	// Apply computes the measure for every voxel. Voxels outside mask are zero.
	Apply(ev *models.EigenVolume, mask *models.Mask, params []float64, workers int) ([]float64, error)
}

// ParameterEstimator derives measure parameters from an eigenvalue image.
type ParameterEstimator interface {
	Estimate(ev *models.EigenVolume, mask *models.Mask, workers int) ([]float64, error)
}

func checkInputs(ev *models.EigenVolume, mask *models.Mask) error {
	if len(ev.Data) != ev.Len() {
		return fmt.Errorf("eigen volume holds %d voxels, expected %d", len(ev.Data), ev.Len())
	}
	if mask != nil && !mask.Matches(ev.Width, ev.Height, ev.Depth) {
		return fmt.Errorf("%w: mask %dx%dx%d, image %dx%dx%d", ErrMaskMismatch,
			mask.Width, mask.Height, mask.Depth, ev.Width, ev.Height, ev.Depth)
	}
	return nil
}

func checkParameters(params []float64) error {
	if len(params) != 3 {
		return fmt.Errorf("%w: given array of size %d", ErrParameterSize, len(params))
	}
	return nil
}

// applyPixelwise runs fn over every masked voxel in parallel.
func applyPixelwise(ev *models.EigenVolume, mask *models.Mask, workers int, fn func([3]float64) float64) []float64 {
	out := make([]float64, len(ev.Data))
	parallel.For(len(ev.Data), workers, func(_, start, end int) {
		for i := start; i < end; i++ {
			if !mask.Contains(i) {
				continue
			}
			out[i] = fn(ev.Data[i])
		}
	})
	return out
}
