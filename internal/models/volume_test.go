package models

import "testing"

func TestVolumeIndexing(t *testing.T) {
	vol := NewVolume(4, 3, 2)
	if vol.Len() != 24 || len(vol.Data) != 24 {
		t.Fatalf("Expected 24 voxels, got Len %d and %d data", vol.Len(), len(vol.Data))
	}
	if vol.ElementType != ElementFloat {
		t.Errorf("Expected default element type %s, got %s", ElementFloat, vol.ElementType)
	}

	// x varies fastest, then y, then z
	if idx := vol.Index(1, 2, 1); idx != 1+2*4+1*12 {
		t.Errorf("Expected index 21, got %d", idx)
	}

	vol.Set(3, 2, 1, 5)
	if vol.Data[23] != 5 || vol.At(3, 2, 1) != 5 {
		t.Errorf("Set/At mismatch: data %g, at %g", vol.Data[23], vol.At(3, 2, 1))
	}
}

func TestVolumeValidate(t *testing.T) {
	vol := NewVolume(2, 2, 2)
	if err := vol.Validate(); err != nil {
		t.Fatalf("Expected valid volume, got %v", err)
	}

	short := NewVolume(2, 2, 2)
	short.Data = short.Data[:7]
	if err := short.Validate(); err == nil {
		t.Error("Expected error for short data buffer, got nil")
	}

	flat := NewVolume(2, 2, 2)
	flat.Spacing.Z = 0
	if err := flat.Validate(); err == nil {
		t.Error("Expected error for zero spacing, got nil")
	}

	empty := &Volume{}
	if err := empty.Validate(); err == nil {
		t.Error("Expected error for empty volume, got nil")
	}
}

func TestCopyGeometry(t *testing.T) {
	vol := NewVolume(3, 2, 1)
	vol.Spacing = Vec3{X: 0.5, Y: 0.5, Z: 3}
	vol.Origin = Vec3{X: 1, Y: 2, Z: 3}
	vol.ElementType = ElementShort
	vol.Data[0] = 9

	out := vol.CopyGeometry()
	if !out.SameGrid(vol) || out.Spacing != vol.Spacing || out.Origin != vol.Origin {
		t.Errorf("Geometry not copied: %+v", out)
	}
	if out.ElementType != ElementShort {
		t.Errorf("Expected element type %s, got %s", ElementShort, out.ElementType)
	}
	if out.Data[0] != 0 {
		t.Errorf("Expected zeroed data, got %g", out.Data[0])
	}
}

func TestMask(t *testing.T) {
	vol := NewVolume(2, 1, 1)
	vol.Data = []float64{0, 3}

	mask := MaskFromVolume(vol)
	if mask.Contains(0) || !mask.Contains(1) {
		t.Errorf("Expected only voxel 1 inside, got %v", mask.Inside)
	}
	if !mask.Matches(2, 1, 1) || mask.Matches(1, 2, 1) {
		t.Error("Matches reported the wrong grid")
	}

	var none *Mask
	if !none.Contains(0) {
		t.Error("A nil mask should contain every voxel")
	}
}
