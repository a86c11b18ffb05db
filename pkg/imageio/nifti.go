package imageio

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/KyungWonPark/nifti"

	"boneenhance/internal/models"
)

// NIfTI-1 datatype codes
const (
	niftiUInt8   = 2
	niftiInt16   = 4
	niftiInt32   = 8
	niftiFloat32 = 16
	niftiFloat64 = 64
	niftiInt8    = 256
	niftiUInt16  = 512
	niftiUInt32  = 768
)

// isNiftiPath reports whether path names a .nii or .nii.gz file.
func isNiftiPath(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".nii") || strings.HasSuffix(lower, ".nii.gz")
}

// niftiElementType maps a NIfTI datatype onto the MetaImage element type
// used when the volume is written back.
func niftiElementType(datatype int16) models.ElementType {
	switch datatype {
	case niftiUInt8:
		return models.ElementUChar
	case niftiInt8:
		return models.ElementChar
	case niftiInt16:
		return models.ElementShort
	case niftiUInt16:
		return models.ElementUShort
	case niftiInt32:
		return models.ElementInt
	case niftiUInt32:
		return models.ElementUInt
	case niftiFloat64:
		return models.ElementDouble
	default:
		return models.ElementFloat
	}
}

// safelyLoadNifti consumes panics emitted by the nifti library, which are
// turned into recoverable errors.
func safelyLoadNifti(path string) (hdr nifti.Nifti1Header, img nifti.Nifti1Image, err error) {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			err = fmt.Errorf("%w: %v", ErrInvalidHeader, panicErr)
		}
	}()

	hdr.LoadHeader(path)
	img.LoadImage(path, true)

	return
}

// ReadNifti reads a 3D scalar NIfTI-1 image (.nii or .nii.gz). A fourth
// dimension is accepted only when it holds a single volume.
func ReadNifti(path string) (*models.Volume, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	hdr, img, err := safelyLoadNifti(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	ndim := int(hdr.Dim[0])
	if ndim < 3 || ndim > 7 {
		return nil, fmt.Errorf("%s: %w: %d dimensions", path, ErrNotVolume, ndim)
	}
	for i := 4; i <= ndim; i++ {
		if hdr.Dim[i] > 1 {
			return nil, fmt.Errorf("%s: %w: dimension %d has size %d", path, ErrNotVolume, i, hdr.Dim[i])
		}
	}

	dims := [3]int{int(hdr.Dim[1]), int(hdr.Dim[2]), int(hdr.Dim[3])}
	if _, _, err := dataSize(dims, 1); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	vol := models.NewVolume(dims[0], dims[1], dims[2])
	vol.ElementType = niftiElementType(hdr.Datatype)

	spacing := [3]float64{}
	for i := range spacing {
		spacing[i] = math.Abs(float64(hdr.Pixdim[i+1]))
		if spacing[i] == 0 || math.IsNaN(spacing[i]) || math.IsInf(spacing[i], 0) {
			spacing[i] = 1
		}
	}
	vol.Spacing = models.Vec3{X: spacing[0], Y: spacing[1], Z: spacing[2]}

	if err := copyNiftiVoxels(&img, vol); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return vol, nil
}

// copyNiftiVoxels fills vol from the first volume of img. The library
// panics when the data is shorter than the header promises.
func copyNiftiVoxels(img *nifti.Nifti1Image, vol *models.Volume) (err error) {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			err = fmt.Errorf("%w: %v", ErrTruncated, panicErr)
		}
	}()

	for z := 0; z < vol.Depth; z++ {
		for y := 0; y < vol.Height; y++ {
			for x := 0; x < vol.Width; x++ {
				vol.Set(x, y, z, float64(img.GetAt(uint32(x), uint32(y), uint32(z), 0)))
			}
		}
	}
	return nil
}
