package enhance

import (
	"fmt"
	"math"
)

// MaximumAbsoluteValue keeps, voxel by voxel, the value of a or b with the
// larger magnitude. Ties keep a. The result is written into a.
func MaximumAbsoluteValue(a, b []float64) error {
	if len(a) != len(b) {
		return fmt.Errorf("maximum absolute value of buffers with %d and %d voxels", len(a), len(b))
	}
	for i := range a {
		if math.Abs(a[i]) < math.Abs(b[i]) {
			a[i] = b[i]
		}
	}
	return nil
}
