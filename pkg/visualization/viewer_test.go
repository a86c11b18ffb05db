package visualization

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"testing"

	"boneenhance/internal/models"
)

// createGradientVolume fills a volume with its z index
func createGradientVolume(width, height, depth int) *models.Volume {
	vol := models.NewVolume(width, height, depth)
	for z := 0; z < depth; z++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				vol.Set(x, y, z, float64(z))
			}
		}
	}
	return vol
}

// TestExtractSlice verifies that slices are correctly extracted and windowed
func TestExtractSlice(t *testing.T) {
	width, height, depth := 10, 8, 5
	viewer := NewViewer(createGradientVolume(width, height, depth))

	// Test extracting Z slices
	for z := 0; z < depth; z++ {
		img, err := viewer.ExtractSlice("z", z)
		if err != nil {
			t.Fatalf("Failed to extract Z slice %d: %v", z, err)
		}

		bounds := img.Bounds()
		if bounds.Dx() != width || bounds.Dy() != height {
			t.Errorf("Expected Z slice dimensions %dx%d, got %dx%d",
				width, height, bounds.Dx(), bounds.Dy())
		}

		gray16Img, ok := img.(*image.Gray16)
		if !ok {
			t.Fatalf("Expected *image.Gray16, got %T", img)
		}

		expected := uint16(65535 * z / (depth - 1))
		got := gray16Img.Gray16At(width/2, height/2).Y
		if diff := int(got) - int(expected); diff > 1 || diff < -1 {
			t.Errorf("Expected Z slice value ~%d at center, got %d", expected, got)
		}
	}

	// Test extracting X slice
	imgX, err := viewer.ExtractSlice("x", width/2)
	if err != nil {
		t.Fatalf("Failed to extract X slice: %v", err)
	}
	if b := imgX.Bounds(); b.Dx() != depth || b.Dy() != height {
		t.Errorf("Expected X slice dimensions %dx%d, got %dx%d", depth, height, b.Dx(), b.Dy())
	}

	// Test extracting Y slice
	imgY, err := viewer.ExtractSlice("y", height/2)
	if err != nil {
		t.Fatalf("Failed to extract Y slice: %v", err)
	}
	if b := imgY.Bounds(); b.Dx() != width || b.Dy() != depth {
		t.Errorf("Expected Y slice dimensions %dx%d, got %dx%d", width, depth, b.Dx(), b.Dy())
	}

	// Test invalid axis
	if _, err := viewer.ExtractSlice("invalid", 0); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}

	// Test out of bounds position
	if _, err := viewer.ExtractSlice("z", depth); err == nil {
		t.Error("Expected error for out of bounds position, got nil")
	}
	if _, err := viewer.ExtractSlice("x", -1); err == nil {
		t.Error("Expected error for negative position, got nil")
	}
}

// TestWindowing verifies negative values and flat volumes map sensibly
func TestWindowing(t *testing.T) {
	vol := models.NewVolume(2, 1, 1)
	vol.Data = []float64{-1, 1}

	img, err := NewViewer(vol).ExtractSlice("z", 0)
	if err != nil {
		t.Fatalf("Failed to extract slice: %v", err)
	}
	g := img.(*image.Gray16)
	if g.Gray16At(0, 0).Y != 0 || g.Gray16At(1, 0).Y != 65535 {
		t.Errorf("Expected full window 0..65535, got %d..%d", g.Gray16At(0, 0).Y, g.Gray16At(1, 0).Y)
	}

	viewer := NewViewer(vol)
	viewer.SetWindow(0, 2)
	img, _ = viewer.ExtractSlice("z", 0)
	g = img.(*image.Gray16)
	if g.Gray16At(0, 0).Y != 0 {
		t.Errorf("Expected values below the window to clamp to 0, got %d", g.Gray16At(0, 0).Y)
	}
	if g.Gray16At(1, 0).Y != 32768 {
		t.Errorf("Expected mid window value 32768, got %d", g.Gray16At(1, 0).Y)
	}

	flat := models.NewVolume(3, 3, 1)
	img, _ = NewViewer(flat).ExtractSlice("z", 0)
	if v := img.(*image.Gray16).Gray16At(1, 1).Y; v != 0 {
		t.Errorf("Expected flat volume to render black, got %d", v)
	}
}

// TestSaveSliceSequence verifies that a sequence of slices can be saved
func TestSaveSliceSequence(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "viewer-sequence-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	width, height, depth := 5, 5, 3
	viewer := NewViewer(createGradientVolume(width, height, depth))

	outputDir := filepath.Join(tempDir, "slices")
	if err := viewer.SaveSliceSequence("z", outputDir); err != nil {
		t.Fatalf("Failed to save slice sequence: %v", err)
	}

	for z := 0; z < depth; z++ {
		filename := filepath.Join(outputDir, fmt.Sprintf("slice_z_%03d.png", z))
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			t.Errorf("Expected slice file does not exist: %s", filename)
		}
	}

	if err := viewer.SaveSliceSequence("invalid", outputDir); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}
}
