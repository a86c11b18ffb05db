package models

import (
	"fmt"
)

// ElementType names the on-disk pixel type a volume was read from.
// The names follow the MetaImage convention.
type ElementType string

const (
	ElementUChar  ElementType = "MET_UCHAR"
	ElementChar   ElementType = "MET_CHAR"
	ElementUShort ElementType = "MET_USHORT"
	ElementShort  ElementType = "MET_SHORT"
	ElementUInt   ElementType = "MET_UINT"
	ElementInt    ElementType = "MET_INT"
	ElementFloat  ElementType = "MET_FLOAT"
	ElementDouble ElementType = "MET_DOUBLE"
)

// Vec3 is a triple of physical quantities along x, y and z.
type Vec3 struct {
	X, Y, Z float64
}

// Volume represents a 3D scalar image
type Volume struct {
	// Data is the 3D volume data as a 1D array, x fastest then y then z
	Data []float64

	// Width is the width of the volume in voxels
	Width int

	// Height is the height of the volume in voxels
	Height int

	// Depth is the depth of the volume in voxels
	Depth int

	// Spacing is the physical size of each voxel in mm
	Spacing Vec3

	// Origin is the physical position of the first voxel
	Origin Vec3

	// Direction is the row-major 3x3 direction cosine matrix
	Direction [9]float64

	// ElementType is the pixel type the volume was stored as
	ElementType ElementType
}

// IdentityDirection is the direction matrix of an axis-aligned volume.
var IdentityDirection = [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}

// NewVolume allocates a zero-filled float volume with unit spacing.
func NewVolume(width, height, depth int) *Volume {
	return &Volume{
		Data:        make([]float64, width*height*depth),
		Width:       width,
		Height:      height,
		Depth:       depth,
		Spacing:     Vec3{1, 1, 1},
		Direction:   IdentityDirection,
		ElementType: ElementFloat,
	}
}

// Len returns the number of voxels.
func (v *Volume) Len() int {
	return v.Width * v.Height * v.Depth
}

// Index returns the flat index of voxel (x, y, z).
func (v *Volume) Index(x, y, z int) int {
	return (z*v.Height+y)*v.Width + x
}

// At returns the value at voxel (x, y, z).
func (v *Volume) At(x, y, z int) float64 {
	return v.Data[v.Index(x, y, z)]
}

// Set assigns the value at voxel (x, y, z).
func (v *Volume) Set(x, y, z int, value float64) {
	v.Data[v.Index(x, y, z)] = value
}

// Validate checks the buffer size and spacing.
func (v *Volume) Validate() error {
	if v.Width <= 0 || v.Height <= 0 || v.Depth <= 0 {
		return fmt.Errorf("invalid volume size %dx%dx%d", v.Width, v.Height, v.Depth)
	}
	if len(v.Data) != v.Len() {
		return fmt.Errorf("volume buffer holds %d voxels, expected %d", len(v.Data), v.Len())
	}
	if v.Spacing.X <= 0 || v.Spacing.Y <= 0 || v.Spacing.Z <= 0 {
		return fmt.Errorf("invalid voxel spacing %+v", v.Spacing)
	}
	return nil
}

// CopyGeometry returns an empty volume on the same grid as v.
func (v *Volume) CopyGeometry() *Volume {
	return &Volume{
		Data:        make([]float64, v.Len()),
		Width:       v.Width,
		Height:      v.Height,
		Depth:       v.Depth,
		Spacing:     v.Spacing,
		Origin:      v.Origin,
		Direction:   v.Direction,
		ElementType: v.ElementType,
	}
}

// SameGrid reports whether o has the same voxel dimensions as v.
func (v *Volume) SameGrid(o *Volume) bool {
	return v.Width == o.Width && v.Height == o.Height && v.Depth == o.Depth
}

// HessianVolume holds the six unique second derivatives per voxel
// in the order xx, xy, xz, yy, yz, zz.
type HessianVolume struct {
	Data   [][6]float64
	Width  int
	Height int
	Depth  int
}

// EigenVolume holds three eigenvalues per voxel.
type EigenVolume struct {
	Data   [][3]float64
	Width  int
	Height int
	Depth  int
}

// Len returns the number of voxels.
func (e *EigenVolume) Len() int {
	return e.Width * e.Height * e.Depth
}

// Mask marks the voxels that take part in estimation and measurement.
type Mask struct {
	Inside []bool
	Width  int
	Height int
	Depth  int
}

// MaskFromVolume treats every non-zero voxel of v as inside.
func MaskFromVolume(v *Volume) *Mask {
	m := &Mask{
		Inside: make([]bool, v.Len()),
		Width:  v.Width,
		Height: v.Height,
		Depth:  v.Depth,
	}
	for i, value := range v.Data {
		m.Inside[i] = value != 0
	}
	return m
}

// Contains reports whether voxel i is inside the mask. A nil mask contains everything.
func (m *Mask) Contains(i int) bool {
	if m == nil {
		return true
	}
	return m.Inside[i]
}

// Matches reports whether the mask covers the same grid as v.
func (m *Mask) Matches(width, height, depth int) bool {
	return m.Width == width && m.Height == height && m.Depth == depth
}
