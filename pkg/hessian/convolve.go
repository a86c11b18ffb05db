package hessian

import (
	"boneenhance/internal/parallel"
)

// Axis selects the image direction a 1D kernel is applied along.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// grid describes the extent of a flat x-fastest buffer.
type grid struct {
	width, height, depth int
}

func (g grid) len() int {
	return g.width * g.height * g.depth
}

// lines returns the number of lines along axis, the length of each line,
// the element stride and a function mapping a line number to its first index.
func (g grid) lines(axis Axis) (count, length, stride int, base func(int) int) {
	switch axis {
	case AxisX:
		return g.height * g.depth, g.width, 1, func(l int) int {
			return l * g.width
		}
	case AxisY:
		return g.width * g.depth, g.height, g.width, func(l int) int {
			x := l % g.width
			z := l / g.width
			return z*g.width*g.height + x
		}
	default:
		return g.width * g.height, g.depth, g.width * g.height, func(l int) int {
			return l
		}
	}
}

// convolveAxis correlates src with k along one axis and writes dst.
// Samples outside the image repeat the nearest edge voxel. Every value is
// multiplied by scale.
func convolveAxis(src, dst []float64, g grid, axis Axis, k Kernel, scale float64, workers int) {
	count, length, stride, base := g.lines(axis)

	parallel.For(count, workers, func(_, start, end int) {
		buf := make([]float64, length+2*k.Radius)
		for l := start; l < end; l++ {
			b := base(l)

			// Pad the line with its edge values
			for i := 0; i < len(buf); i++ {
				j := i - k.Radius
				if j < 0 {
					j = 0
				} else if j >= length {
					j = length - 1
				}
				buf[i] = src[b+j*stride]
			}

			for i := 0; i < length; i++ {
				var sum float64
				window := buf[i : i+len(k.Weights)]
				for j, w := range k.Weights {
					sum += w * window[j]
				}
				dst[b+i*stride] = sum * scale
			}
		}
	})
}
