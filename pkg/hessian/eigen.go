package hessian

import (
	"fmt"
	"math"
	"sync/atomic"

	"gonum.org/v1/gonum/mat"

	"boneenhance/internal/models"
	"boneenhance/internal/parallel"
)

// EigenValueOrder controls how the three eigenvalues of each voxel are sorted.
type EigenValueOrder int

const (
	// OrderByValue sorts ascending by signed value.
	OrderByValue EigenValueOrder = iota + 1
	// OrderByMagnitude sorts ascending by absolute value, |l1| <= |l2| <= |l3|.
	OrderByMagnitude
	// DoNotOrder keeps the order produced by the decomposition.
	DoNotOrder
)

func (o EigenValueOrder) String() string {
	switch o {
	case OrderByValue:
		return "OrderByValue"
	case OrderByMagnitude:
		return "OrderByMagnitude"
	case DoNotOrder:
		return "DoNotOrder"
	default:
		return fmt.Sprintf("EigenValueOrder(%d)", int(o))
	}
}

// EigenAnalysis decomposes the Hessian of every voxel and returns its
// eigenvalues in the requested order. Voxels whose matrix cannot be
// factorized (for example because it holds NaN) get zero eigenvalues and
// are reported in the returned error.
func EigenAnalysis(h *models.HessianVolume, order EigenValueOrder, workers int) (*models.EigenVolume, error) {
	switch order {
	case OrderByValue, OrderByMagnitude, DoNotOrder:
	default:
		return nil, fmt.Errorf("unknown eigenvalue order %v", order)
	}

	out := &models.EigenVolume{
		Data:   make([][3]float64, len(h.Data)),
		Width:  h.Width,
		Height: h.Height,
		Depth:  h.Depth,
	}

	var failed int64
	parallel.For(len(h.Data), workers, func(_, start, end int) {
		sym := mat.NewSymDense(3, nil)
		var es mat.EigenSym
		values := make([]float64, 3)

		for i := start; i < end; i++ {
			c := h.Data[i]
			sym.SetSym(0, 0, c[0])
			sym.SetSym(0, 1, c[1])
			sym.SetSym(0, 2, c[2])
			sym.SetSym(1, 1, c[3])
			sym.SetSym(1, 2, c[4])
			sym.SetSym(2, 2, c[5])

			if ok := es.Factorize(sym, false); !ok {
				atomic.AddInt64(&failed, 1)
				continue
			}
			es.Values(values)

			ev := [3]float64{values[0], values[1], values[2]}
			if order == OrderByMagnitude {
				sortByMagnitude(&ev)
			}
			out.Data[i] = ev
		}
	})

	if failed > 0 {
		return out, fmt.Errorf("eigen decomposition failed for %d voxels", failed)
	}
	return out, nil
}

// sortByMagnitude orders three values ascending by absolute value.
func sortByMagnitude(ev *[3]float64) {
	less := func(a, b float64) bool { return math.Abs(a) < math.Abs(b) }
	if less(ev[1], ev[0]) {
		ev[0], ev[1] = ev[1], ev[0]
	}
	if less(ev[2], ev[1]) {
		ev[1], ev[2] = ev[2], ev[1]
	}
	if less(ev[1], ev[0]) {
		ev[0], ev[1] = ev[1], ev[0]
	}
}
