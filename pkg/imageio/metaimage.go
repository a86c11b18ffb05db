package imageio

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"boneenhance/internal/models"
)

// metaHeader holds the MetaImage header fields this package understands.
type metaHeader struct {
	nDims          int
	dims           [3]int
	spacing        [3]float64
	offset         [3]float64
	direction      [9]float64
	elementType    models.ElementType
	channels       int
	msb            bool
	compressed     bool
	compressedSize int64
	dataFile       string

	// headerSize is the number of bytes before LOCAL data
	headerSize int64
}

// maxDeflateRatio bounds how much zlib data can expand.
const maxDeflateRatio = 1032

// elementSize returns the size in bytes of one element of type t.
func elementSize(t models.ElementType) (int, error) {
	switch t {
	case models.ElementUChar, models.ElementChar:
		return 1, nil
	case models.ElementUShort, models.ElementShort:
		return 2, nil
	case models.ElementUInt, models.ElementInt, models.ElementFloat:
		return 4, nil
	case models.ElementDouble:
		return 8, nil
	default:
		return 0, fmt.Errorf("%w: element type %q", ErrUnsupportedFormat, t)
	}
}

func parseBool(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	return v == "true" || v == "1"
}

// parseFloats fills dst from the leading fields of value. Lower dimensional
// images list fewer values; NDims decides whether they are accepted.
func parseFloats(value string, dst []float64) error {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return fmt.Errorf("no values in %q", value)
	}
	for i := 0; i < len(dst) && i < len(fields); i++ {
		f, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return err
		}
		dst[i] = f
	}
	return nil
}

func parseInts(value string, dst []int) error {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return fmt.Errorf("no values in %q", value)
	}
	for i := 0; i < len(dst) && i < len(fields); i++ {
		n, err := strconv.Atoi(fields[i])
		if err != nil {
			return err
		}
		dst[i] = n
	}
	return nil
}

// dataSize returns the voxel count and byte size of the image, rejecting
// sizes that do not fit in memory addresses.
func dataSize(dims [3]int, elementSize int) (int, int, error) {
	n := 1
	for _, d := range dims {
		if d <= 0 {
			return 0, 0, fmt.Errorf("%w: DimSize %v", ErrInvalidHeader, dims)
		}
		if n > math.MaxInt/d {
			return 0, 0, fmt.Errorf("%w: DimSize %v overflows", ErrInvalidHeader, dims)
		}
		n *= d
	}
	if n > math.MaxInt/elementSize {
		return 0, 0, fmt.Errorf("%w: DimSize %v overflows", ErrInvalidHeader, dims)
	}
	return n, n * elementSize, nil
}

// readMetaHeader reads key = value lines up to and including ElementDataFile.
func readMetaHeader(r *bufio.Reader) (*metaHeader, error) {
	h := &metaHeader{
		spacing:   [3]float64{1, 1, 1},
		direction: models.IdentityDirection,
		channels:  1,
	}

	for {
		line, err := r.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return nil, fmt.Errorf("reading header: %w", err)
		}
		h.headerSize += int64(len(line))

		key, value, found := strings.Cut(line, "=")
		if !found {
			if strings.TrimSpace(line) == "" && err == nil {
				continue
			}
			return nil, fmt.Errorf("malformed header line %q", strings.TrimSpace(line))
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		var perr error
		switch key {
		case "NDims":
			h.nDims, perr = strconv.Atoi(value)
		case "DimSize":
			perr = parseInts(value, h.dims[:])
		case "ElementSpacing", "ElementSize":
			perr = parseFloats(value, h.spacing[:])
		case "Offset", "Position", "Origin":
			perr = parseFloats(value, h.offset[:])
		case "TransformMatrix", "Rotation", "Orientation":
			perr = parseFloats(value, h.direction[:])
		case "ElementType":
			h.elementType = models.ElementType(value)
		case "ElementNumberOfChannels":
			h.channels, perr = strconv.Atoi(value)
		case "BinaryDataByteOrderMSB", "ElementByteOrderMSB":
			h.msb = parseBool(value)
		case "CompressedData":
			h.compressed = parseBool(value)
		case "CompressedDataSize":
			h.compressedSize, perr = strconv.ParseInt(value, 10, 64)
		case "ElementDataFile":
			h.dataFile = value
			return h, nil
		}
		if perr != nil {
			return nil, fmt.Errorf("parsing %s: %w", key, perr)
		}
		if err == io.EOF {
			return nil, fmt.Errorf("header has no ElementDataFile")
		}
	}
}

// ReadMetaImage reads a 3D scalar .mha or .mhd file.
func ReadMetaImage(path string) (*models.Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	h, err := readMetaHeader(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if h.nDims != 3 {
		return nil, fmt.Errorf("%s: %w: NDims = %d", path, ErrNotVolume, h.nDims)
	}
	if h.channels != 1 {
		return nil, fmt.Errorf("%s: %w: %d channels per voxel", path, ErrUnsupportedFormat, h.channels)
	}
	size, err := elementSize(h.elementType)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	count, nbytes, err := dataSize(h.dims, size)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var data io.Reader = r
	var available int64
	switch h.dataFile {
	case "LOCAL":
		info, err := f.Stat()
		if err != nil {
			return nil, err
		}
		available = info.Size() - h.headerSize
	case "", "LIST":
		return nil, fmt.Errorf("%s: %w: ElementDataFile %q", path, ErrUnsupportedFormat, h.dataFile)
	default:
		raw, err := os.Open(filepath.Join(filepath.Dir(path), h.dataFile))
		if err != nil {
			return nil, err
		}
		defer raw.Close()
		info, err := raw.Stat()
		if err != nil {
			return nil, err
		}
		available = info.Size()
		data = bufio.NewReader(raw)
	}

	// Reject sizes the file cannot hold before allocating
	if h.compressed {
		if h.compressedSize > 0 && h.compressedSize < available {
			available = h.compressedSize
		}
		if int64(nbytes)/maxDeflateRatio > available {
			return nil, fmt.Errorf("%s: %w: %d compressed bytes cannot hold %d", path, ErrTruncated, available, nbytes)
		}
	} else if int64(nbytes) > available {
		return nil, fmt.Errorf("%s: %w: %d bytes of data, expected %d", path, ErrTruncated, available, nbytes)
	}

	if h.compressed {
		zr, err := zlib.NewReader(data)
		if err != nil {
			return nil, fmt.Errorf("%s: opening compressed data: %w", path, err)
		}
		defer zr.Close()
		data = zr
	}

	vol := &models.Volume{
		Width:       h.dims[0],
		Height:      h.dims[1],
		Depth:       h.dims[2],
		Spacing:     models.Vec3{X: h.spacing[0], Y: h.spacing[1], Z: h.spacing[2]},
		Origin:      models.Vec3{X: h.offset[0], Y: h.offset[1], Z: h.offset[2]},
		Direction:   h.direction,
		ElementType: h.elementType,
	}

	// The buffer grows with the data actually decoded
	buf, err := io.ReadAll(io.LimitReader(data, int64(nbytes)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, ErrTruncated, err)
	}
	if len(buf) != nbytes {
		return nil, fmt.Errorf("%s: %w: read %d of %d bytes", path, ErrTruncated, len(buf), nbytes)
	}

	var order binary.ByteOrder = binary.LittleEndian
	if h.msb {
		order = binary.BigEndian
	}
	vol.Data = decodeElements(buf, h.elementType, order, count)

	if err := vol.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return vol, nil
}

func decodeElements(buf []byte, t models.ElementType, order binary.ByteOrder, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		switch t {
		case models.ElementUChar:
			out[i] = float64(buf[i])
		case models.ElementChar:
			out[i] = float64(int8(buf[i]))
		case models.ElementUShort:
			out[i] = float64(order.Uint16(buf[2*i:]))
		case models.ElementShort:
			out[i] = float64(int16(order.Uint16(buf[2*i:])))
		case models.ElementUInt:
			out[i] = float64(order.Uint32(buf[4*i:]))
		case models.ElementInt:
			out[i] = float64(int32(order.Uint32(buf[4*i:])))
		case models.ElementFloat:
			out[i] = float64(math.Float32frombits(order.Uint32(buf[4*i:])))
		case models.ElementDouble:
			out[i] = math.Float64frombits(order.Uint64(buf[8*i:]))
		}
	}
	return out
}

// clampRound rounds v to the nearest integer inside [lo, hi].
func clampRound(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(lo, math.Min(hi, math.Round(v)))
}

func encodeElements(data []float64, t models.ElementType) ([]byte, error) {
	size, err := elementSize(t)
	if err != nil {
		return nil, err
	}
	order := binary.LittleEndian
	buf := make([]byte, len(data)*size)
	for i, v := range data {
		switch t {
		case models.ElementUChar:
			buf[i] = uint8(clampRound(v, 0, math.MaxUint8))
		case models.ElementChar:
			buf[i] = uint8(int8(clampRound(v, math.MinInt8, math.MaxInt8)))
		case models.ElementUShort:
			order.PutUint16(buf[2*i:], uint16(clampRound(v, 0, math.MaxUint16)))
		case models.ElementShort:
			order.PutUint16(buf[2*i:], uint16(int16(clampRound(v, math.MinInt16, math.MaxInt16))))
		case models.ElementUInt:
			order.PutUint32(buf[4*i:], uint32(clampRound(v, 0, math.MaxUint32)))
		case models.ElementInt:
			order.PutUint32(buf[4*i:], uint32(int32(clampRound(v, math.MinInt32, math.MaxInt32))))
		case models.ElementFloat:
			order.PutUint32(buf[4*i:], math.Float32bits(float32(v)))
		case models.ElementDouble:
			order.PutUint64(buf[8*i:], math.Float64bits(v))
		}
	}
	return buf, nil
}

func formatFloats(values ...float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, " ")
}

// WriteMetaImage writes vol as a .mha file, or as a .mhd header plus a raw
// data file next to it. Data is little-endian in vol.ElementType; integer
// types are rounded and clamped to their range.
func WriteMetaImage(path string, vol *models.Volume, compress bool) error {
	if err := vol.Validate(); err != nil {
		return err
	}
	elementType := vol.ElementType
	if elementType == "" {
		elementType = models.ElementFloat
	}

	payload, err := encodeElements(vol.Data, elementType)
	if err != nil {
		return err
	}
	if compress {
		var zbuf bytes.Buffer
		zw := zlib.NewWriter(&zbuf)
		if _, err := zw.Write(payload); err != nil {
			return fmt.Errorf("compressing data: %w", err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("compressing data: %w", err)
		}
		payload = zbuf.Bytes()
	}

	detached := strings.EqualFold(filepath.Ext(path), ".mhd")
	dataFile := "LOCAL"
	if detached {
		ext := ".raw"
		if compress {
			ext = ".zraw"
		}
		dataFile = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + ext
	}

	var header strings.Builder
	fmt.Fprintf(&header, "ObjectType = Image\n")
	fmt.Fprintf(&header, "NDims = 3\n")
	fmt.Fprintf(&header, "BinaryData = True\n")
	fmt.Fprintf(&header, "BinaryDataByteOrderMSB = False\n")
	if compress {
		fmt.Fprintf(&header, "CompressedData = True\n")
		fmt.Fprintf(&header, "CompressedDataSize = %d\n", len(payload))
	} else {
		fmt.Fprintf(&header, "CompressedData = False\n")
	}
	fmt.Fprintf(&header, "TransformMatrix = %s\n", formatFloats(vol.Direction[:]...))
	fmt.Fprintf(&header, "Offset = %s\n", formatFloats(vol.Origin.X, vol.Origin.Y, vol.Origin.Z))
	fmt.Fprintf(&header, "CenterOfRotation = 0 0 0\n")
	fmt.Fprintf(&header, "ElementSpacing = %s\n", formatFloats(vol.Spacing.X, vol.Spacing.Y, vol.Spacing.Z))
	fmt.Fprintf(&header, "DimSize = %d %d %d\n", vol.Width, vol.Height, vol.Depth)
	fmt.Fprintf(&header, "ElementType = %s\n", elementType)
	fmt.Fprintf(&header, "ElementDataFile = %s\n", dataFile)

	if detached {
		rawPath := filepath.Join(filepath.Dir(path), dataFile)
		if err := os.WriteFile(rawPath, payload, 0644); err != nil {
			return err
		}
		return os.WriteFile(path, []byte(header.String()), 0644)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if _, err := w.WriteString(header.String()); err != nil {
		f.Close()
		return err
	}
	if _, err := w.Write(payload); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
