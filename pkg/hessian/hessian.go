// Package hessian computes Gaussian-smoothed second derivatives of 3D
// volumes and the eigenvalues of the resulting Hessian matrices.
package hessian

import (
	"context"
	"errors"
	"fmt"
	"math"

	"boneenhance/internal/models"
)

// ErrInvalidSigma is returned for non-positive or non-finite scales.
var ErrInvalidSigma = errors.New("sigma must be positive and finite")

// Options controls the derivative computation.
type Options struct {
	// NormalizeAcrossScale multiplies the derivatives by sigma^2 so responses
	// at different scales are comparable.
	NormalizeAcrossScale bool

	// Workers is the number of goroutines per convolution pass.
	Workers int
}

// DefaultOptions matches the settings used by the multiscale filter.
func DefaultOptions() Options {
	return Options{NormalizeAcrossScale: true}
}

func checkSigma(sigma float64) error {
	if !(sigma > 0) || math.IsInf(sigma, 0) {
		return fmt.Errorf("%w: %g", ErrInvalidSigma, sigma)
	}
	return nil
}

// axisKernels builds the derivative kernels for a physical sigma on an axis
// with the given voxel spacing.
func axisKernels(sigma, spacing float64) (g0, g1, g2 Kernel) {
	return GaussianKernels(sigma / spacing)
}

// Smooth convolves vol with an isotropic Gaussian of standard deviation
// sigma, measured in the units of the voxel spacing.
func Smooth(ctx context.Context, vol *models.Volume, sigma float64, workers int) (*models.Volume, error) {
	if err := checkSigma(sigma); err != nil {
		return nil, err
	}
	if err := vol.Validate(); err != nil {
		return nil, err
	}

	g := grid{vol.Width, vol.Height, vol.Depth}
	kx, _, _ := axisKernels(sigma, vol.Spacing.X)
	ky, _, _ := axisKernels(sigma, vol.Spacing.Y)
	kz, _, _ := axisKernels(sigma, vol.Spacing.Z)

	out := vol.CopyGeometry()
	tmp := make([]float64, g.len())

	convolveAxis(vol.Data, out.Data, g, AxisX, kx, 1, workers)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	convolveAxis(out.Data, tmp, g, AxisY, ky, 1, workers)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	convolveAxis(tmp, out.Data, g, AxisZ, kz, 1, workers)

	return out, nil
}

// Compute returns the Hessian of vol at scale sigma.
//
// Each component is a separable product of 1D Gaussian derivative kernels,
// for example Hxy = D1x * D1y * G0z. Derivatives are taken with respect to
// physical coordinates.
func Compute(ctx context.Context, vol *models.Volume, sigma float64, opts Options) (*models.HessianVolume, error) {
	if err := checkSigma(sigma); err != nil {
		return nil, err
	}
	if err := vol.Validate(); err != nil {
		return nil, err
	}

	g := grid{vol.Width, vol.Height, vol.Depth}
	sp := vol.Spacing
	x0, x1, x2 := axisKernels(sigma, sp.X)
	y0, y1, y2 := axisKernels(sigma, sp.Y)
	z0, z1, z2 := axisKernels(sigma, sp.Z)

	norm := 1.0
	if opts.NormalizeAcrossScale {
		norm = sigma * sigma
	}

	n := g.len()
	w := opts.Workers

	// First pass along z, shared by the components below
	zs := make([]float64, n)
	zd1 := make([]float64, n)
	zd2 := make([]float64, n)
	convolveAxis(vol.Data, zs, g, AxisZ, z0, 1, w)
	convolveAxis(vol.Data, zd1, g, AxisZ, z1, 1/sp.Z, w)
	convolveAxis(vol.Data, zd2, g, AxisZ, z2, 1/(sp.Z*sp.Z), w)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type plan struct {
		src    []float64
		ky     Kernel
		scaleY float64
		kx     Kernel
		scaleX float64
	}
	plans := [6]plan{
		{zs, y0, 1, x2, norm / (sp.X * sp.X)}, // xx
		{zs, y1, 1 / sp.Y, x1, norm / sp.X},   // xy
		{zd1, y0, 1, x1, norm / sp.X},         // xz
		{zs, y2, 1 / (sp.Y * sp.Y), x0, norm}, // yy
		{zd1, y1, 1 / sp.Y, x0, norm},         // yz
		{zd2, y0, 1, x0, norm},                // zz
	}

	out := &models.HessianVolume{
		Data:   make([][6]float64, n),
		Width:  vol.Width,
		Height: vol.Height,
		Depth:  vol.Depth,
	}

	ys := make([]float64, n)
	comp := make([]float64, n)
	for c, p := range plans {
		convolveAxis(p.src, ys, g, AxisY, p.ky, p.scaleY, w)
		convolveAxis(ys, comp, g, AxisX, p.kx, p.scaleX, w)
		for i, value := range comp {
			out.Data[i][c] = value
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	return out, nil
}
