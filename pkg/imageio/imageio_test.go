package imageio

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"boneenhance/internal/models"
)

// createTestVolume builds a small volume with non-trivial geometry
func createTestVolume() *models.Volume {
	vol := models.NewVolume(4, 3, 2)
	vol.Spacing = models.Vec3{X: 0.5, Y: 0.75, Z: 2}
	vol.Origin = models.Vec3{X: -10, Y: 3.5, Z: 0}
	for i := range vol.Data {
		vol.Data[i] = float64(i) - 7.25
	}
	return vol
}

func TestMetaImageRoundTrip(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		name     string
		file     string
		compress bool
	}{
		{"local", "vol.mha", false},
		{"local compressed", "vol_z.mha", true},
		{"detached", "vol.mhd", false},
		{"detached compressed", "vol_z.mhd", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vol := createTestVolume()
			path := filepath.Join(tempDir, tt.file)

			if err := Write(path, vol, WriteOptions{Compress: tt.compress}); err != nil {
				t.Fatalf("Write failed: %v", err)
			}

			got, err := Read(path)
			if err != nil {
				t.Fatalf("Read failed: %v", err)
			}

			if !got.SameGrid(vol) {
				t.Errorf("Expected grid %dx%dx%d, got %dx%dx%d",
					vol.Width, vol.Height, vol.Depth, got.Width, got.Height, got.Depth)
			}
			if got.Spacing != vol.Spacing {
				t.Errorf("Expected spacing %v, got %v", vol.Spacing, got.Spacing)
			}
			if got.Origin != vol.Origin {
				t.Errorf("Expected origin %v, got %v", vol.Origin, got.Origin)
			}
			if got.ElementType != models.ElementFloat {
				t.Errorf("Expected element type %s, got %s", models.ElementFloat, got.ElementType)
			}
			for i := range vol.Data {
				if got.Data[i] != vol.Data[i] {
					t.Fatalf("voxel %d: expected %g, got %g", i, vol.Data[i], got.Data[i])
				}
			}
		})
	}

	if _, err := os.Stat(filepath.Join(tempDir, "vol.raw")); err != nil {
		t.Errorf("Expected detached data file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "vol_z.zraw")); err != nil {
		t.Errorf("Expected compressed detached data file: %v", err)
	}
}

func TestWriteIntegerTypesClamp(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		elementType models.ElementType
		input       []float64
		expected    []float64
	}{
		{models.ElementUChar, []float64{-3, 12.6, 300, 0}, []float64{0, 13, 255, 0}},
		{models.ElementShort, []float64{-40000, -1.4, 1.5, 40000}, []float64{-32768, -1, 2, 32767}},
		{models.ElementUShort, []float64{-1, 65536, 100, 7}, []float64{0, 65535, 100, 7}},
	}

	for _, tt := range tests {
		t.Run(string(tt.elementType), func(t *testing.T) {
			vol := models.NewVolume(2, 2, 1)
			vol.ElementType = tt.elementType
			copy(vol.Data, tt.input)

			path := filepath.Join(tempDir, string(tt.elementType)+".mha")
			if err := WriteMetaImage(path, vol, false); err != nil {
				t.Fatalf("WriteMetaImage failed: %v", err)
			}
			got, err := ReadMetaImage(path)
			if err != nil {
				t.Fatalf("ReadMetaImage failed: %v", err)
			}
			if got.ElementType != tt.elementType {
				t.Errorf("Expected element type %s, got %s", tt.elementType, got.ElementType)
			}
			for i := range tt.expected {
				if got.Data[i] != tt.expected[i] {
					t.Errorf("voxel %d: expected %g, got %g", i, tt.expected[i], got.Data[i])
				}
			}
		})
	}
}

func TestReadMetaImageBigEndian(t *testing.T) {
	header := "ObjectType = Image\n" +
		"NDims = 3\n" +
		"BinaryData = True\n" +
		"BinaryDataByteOrderMSB = True\n" +
		"DimSize = 2 1 1\n" +
		"ElementType = MET_SHORT\n" +
		"ElementDataFile = LOCAL\n"
	data := append([]byte(header), 0x01, 0x02, 0xff, 0xfe)

	path := filepath.Join(t.TempDir(), "msb.mha")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	vol, err := ReadMetaImage(path)
	if err != nil {
		t.Fatalf("ReadMetaImage failed: %v", err)
	}
	if vol.Data[0] != 258 || vol.Data[1] != -2 {
		t.Errorf("Expected [258 -2], got %v", vol.Data)
	}
	if vol.Spacing != (models.Vec3{X: 1, Y: 1, Z: 1}) {
		t.Errorf("Expected default unit spacing, got %v", vol.Spacing)
	}
}

func TestReadMetaImageErrors(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{
			name: "two dimensional",
			content: "NDims = 2\nDimSize = 2 2\nElementType = MET_UCHAR\nElementDataFile = LOCAL\n" +
				"\x00\x00\x00\x00",
			wantErr: ErrNotVolume,
		},
		{
			name:    "truncated",
			content: "NDims = 3\nDimSize = 2 2 2\nElementType = MET_UCHAR\nElementDataFile = LOCAL\n\x00\x00",
			wantErr: ErrTruncated,
		},
		{
			name:    "unknown element type",
			content: "NDims = 3\nDimSize = 1 1 1\nElementType = MET_COMPLEX\nElementDataFile = LOCAL\n\x00",
			wantErr: ErrUnsupportedFormat,
		},
		{
			name:    "vector image",
			content: "NDims = 3\nDimSize = 1 1 1\nElementNumberOfChannels = 3\nElementType = MET_UCHAR\nElementDataFile = LOCAL\n\x00\x00\x00",
			wantErr: ErrUnsupportedFormat,
		},
		{
			name:    "fractional size",
			content: "NDims = 3\nDimSize = 3.7 1 1\nElementType = MET_UCHAR\nElementDataFile = LOCAL\n\x00\x00\x00",
			wantErr: strconv.ErrSyntax,
		},
		{
			name:    "zero size",
			content: "NDims = 3\nDimSize = 2 0 2\nElementType = MET_UCHAR\nElementDataFile = LOCAL\n",
			wantErr: ErrInvalidHeader,
		},
		{
			name:    "size beyond data",
			content: "NDims = 3\nDimSize = 100000 100000 100000\nElementType = MET_DOUBLE\nElementDataFile = LOCAL\n\x00",
			wantErr: ErrTruncated,
		},
		{
			name:    "compressed size beyond data",
			content: "NDims = 3\nDimSize = 100000 100000 100000\nElementType = MET_DOUBLE\nCompressedData = True\nElementDataFile = LOCAL\n\x00",
			wantErr: ErrTruncated,
		},
		{
			name:    "size overflows",
			content: "NDims = 3\nDimSize = 4000000000 4000000000 4000000000\nElementType = MET_DOUBLE\nElementDataFile = LOCAL\n",
			wantErr: ErrInvalidHeader,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(tempDir, "bad.mha")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("Failed to write test file: %v", err)
			}
			if _, err := Read(path); !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	if _, err := Read(filepath.Join(tempDir, "missing.mha")); err == nil {
		t.Error("Expected error for missing file, got nil")
	}

	unknown := filepath.Join(tempDir, "volume.vtk")
	if err := os.WriteFile(unknown, []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
	if _, err := Read(unknown); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}
	for _, name := range []string{"volume.vtk", "volume.nii", "volume.nii.gz"} {
		err := Write(filepath.Join(tempDir, name), createTestVolume(), WriteOptions{})
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("%s: expected ErrUnsupportedFormat on write, got %v", name, err)
		}
	}
}

// writeSlice stores a uniform gray PNG
func writeSlice(t *testing.T, path string, width, height int, value uint16) {
	t.Helper()
	img := image.NewGray16(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray16(x, y, color.Gray16{Y: value})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create slice: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("Failed to encode slice: %v", err)
	}
}

func TestReadSliceStack(t *testing.T) {
	dir := t.TempDir()

	// Written out of order so sorting by number is exercised
	writeSlice(t, filepath.Join(dir, "slice_10.png"), 3, 2, 65535)
	writeSlice(t, filepath.Join(dir, "slice_2.png"), 3, 2, 0)
	writeSlice(t, filepath.Join(dir, "slice_3.png"), 3, 2, 13107)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644); err != nil {
		t.Fatalf("Failed to write notes: %v", err)
	}

	vol, err := Read(dir)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if vol.Width != 3 || vol.Height != 2 || vol.Depth != 3 {
		t.Fatalf("Expected 3x2x3 volume, got %dx%dx%d", vol.Width, vol.Height, vol.Depth)
	}

	expected := []float64{0, 0.2, 1}
	for z, want := range expected {
		if got := vol.At(1, 1, z); math.Abs(got-want) > 1e-9 {
			t.Errorf("slice %d: expected %g, got %g", z, want, got)
		}
	}
}

func TestReadSliceStackErrors(t *testing.T) {
	empty := t.TempDir()
	if _, err := ReadSliceStack(empty); err == nil {
		t.Error("Expected error for a directory without slices, got nil")
	}

	mixed := t.TempDir()
	writeSlice(t, filepath.Join(mixed, "a1.png"), 3, 3, 0)
	writeSlice(t, filepath.Join(mixed, "a2.png"), 4, 3, 0)
	if _, err := ReadSliceStack(mixed); err == nil {
		t.Error("Expected error for slices of different sizes, got nil")
	}
}

func TestWriteSliceStack(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out") + string(os.PathSeparator)
	vol := createTestVolume()

	if err := Write(dir, vol, WriteOptions{}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got, err := Read(dir)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !got.SameGrid(vol) {
		t.Fatalf("Expected %dx%dx%d, got %dx%dx%d",
			vol.Width, vol.Height, vol.Depth, got.Width, got.Height, got.Depth)
	}
	// The first voxel is the minimum and the last the maximum of the window
	if got.Data[0] != 0 || got.Data[len(got.Data)-1] != 1 {
		t.Errorf("Expected windowed range [0, 1], got [%g, %g]", got.Data[0], got.Data[len(got.Data)-1])
	}
}

func TestExtractNumber(t *testing.T) {
	tests := []struct {
		filename string
		expected int
	}{
		{"slice_001.png", 1},
		{"img42.tif", 42},
		{"/data/scan/slice_z_120.png", 120},
		{"nonumber.png", 0},
	}

	for _, tt := range tests {
		if got := extractNumber(tt.filename); got != tt.expected {
			t.Errorf("extractNumber(%q): expected %d, got %d", tt.filename, tt.expected, got)
		}
	}
}
