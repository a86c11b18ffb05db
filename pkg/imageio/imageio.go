// Package imageio reads and writes 3D volumes. The format is chosen from
// the path: .mha and .mhd are MetaImage files, .nii and .nii.gz are NIfTI-1
// files (read only), a directory is a stack of 2D slice images.
package imageio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"boneenhance/internal/models"
)

var (
	// ErrUnsupportedFormat is returned for extensions or pixel types this package cannot handle.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrNotVolume is returned for images that are not three dimensional.
	ErrNotVolume = errors.New("image is not a 3D volume")

	// ErrInvalidHeader is returned for headers describing impossible images.
	ErrInvalidHeader = errors.New("invalid image header")

	// ErrTruncated is returned when the pixel data is shorter than the header promises.
	ErrTruncated = errors.New("image data is truncated")
)

// WriteOptions controls how volumes are stored.
type WriteOptions struct {
	// Compress stores MetaImage data zlib-compressed
	Compress bool
}

// isSliceStackPath reports whether path names a directory, existing or to be created.
func isSliceStackPath(path string) bool {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return true
	}
	return strings.HasSuffix(path, string(os.PathSeparator)) || strings.HasSuffix(path, "/")
}

// Read loads the volume at path.
func Read(path string) (*models.Volume, error) {
	if isSliceStackPath(path) {
		return ReadSliceStack(path)
	}
	if isNiftiPath(path) {
		return ReadNifti(path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".mha", ".mhd":
		return ReadMetaImage(path)
	default:
		if _, err := os.Stat(path); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// Write stores vol at path in the element type recorded on the volume.
func Write(path string, vol *models.Volume, opts WriteOptions) error {
	if isSliceStackPath(path) {
		return WriteSliceStack(path, vol)
	}
	if isNiftiPath(path) {
		return fmt.Errorf("%w: NIfTI output is not supported, write .mha or .mhd: %s", ErrUnsupportedFormat, path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".mha", ".mhd":
		return WriteMetaImage(path, vol, opts.Compress)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}
