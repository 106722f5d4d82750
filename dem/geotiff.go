package dem

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// TIFF tag IDs relevant to georeferencing (§4.3) and raster decode.
const (
	tagImageWidth        = 256
	tagImageLength       = 257
	tagBitsPerSample     = 258
	tagCompression       = 259
	tagSampleFormat      = 339
	tagStripOffsets      = 273
	tagStripByteCounts   = 279
	tagRowsPerStrip      = 278
	tagModelPixelScale   = 33550
	tagModelTiepoint     = 33922
	tagModelTransform    = 34264
	tagGDALNoData        = 42113
)

// Compression codes called out explicitly in §7b as user-facing hints
// when unsupported.
const (
	compressionNone     = 1
	compressionPackBits = 32773
	compressionDeflate  = 8
	compressionLERC     = 50000
	compressionJPEG2000 = 34712
	compressionWEBP     = 50001
)

type tiffTag struct {
	id     uint16
	typ    uint16
	count  uint32
	values []uint32 // raw field values (offsets or inline), interpreted per typ
	raw    []byte   // raw bytes when the value doesn't fit inline (for doubles)
}

type tiffFile struct {
	order     binary.ByteOrder
	width     uint32
	height    uint32
	nodata    float64
	hasNoData bool
	transform GeoTransform
	haveXform bool
	raster    []float32
}

// decodeTIFF parses just enough of a TIFF/GeoTIFF container to recover
// the georeferencing tags and a single band of float32 (or promoted
// int16/uint16) elevation samples. Only uncompressed, PackBits and
// Deflate-compressed single-strip/multi-strip images are supported;
// anything else returns ErrUnsupportedCodec naming the codec (§7b).
func decodeTIFF(blob []byte) (*tiffFile, error) {
	if len(blob) < 8 {
		return nil, fmt.Errorf("dem: TIFF blob too short")
	}

	var order binary.ByteOrder
	switch string(blob[0:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("dem: not a TIFF (missing byte-order mark)")
	}

	ifdOffset := order.Uint32(blob[4:8])
	tags, err := readIFD(blob, order, ifdOffset)
	if err != nil {
		return nil, err
	}

	tf := &tiffFile{order: order}

	if t, ok := tags[tagImageWidth]; ok {
		tf.width = t.values[0]
	}
	if t, ok := tags[tagImageLength]; ok {
		tf.height = t.values[0]
	}

	if t, ok := tags[tagGDALNoData]; ok {
		if v, err := strconv.ParseFloat(strings.TrimRight(string(t.raw), "\x00"), 64); err == nil {
			tf.nodata = v
			tf.hasNoData = true
		}
	}

	if t, ok := tags[tagModelTransform]; ok {
		m := decodeDoubles(t.raw, order, 16)
		tf.transform = GeoTransform{
			OriginX: m[3], OriginY: m[7],
			PixelWidth: m[0], PixelHeight: m[5],
			RotationX: m[4], RotationY: m[1],
		}
		tf.haveXform = true
	} else if scale, ok1 := tags[tagModelPixelScale]; ok1 {
		if tie, ok2 := tags[tagModelTiepoint]; ok2 {
			s := decodeDoubles(scale.raw, order, 3)
			p := decodeDoubles(tie.raw, order, 6)
			// p = [I, J, K, X, Y, Z] for the first tiepoint (§4.3).
			originX := p[3] - p[0]*s[0]
			originY := p[4] + p[1]*s[1]
			tf.transform = GeoTransform{
				OriginX: originX, OriginY: originY,
				PixelWidth: s[0], PixelHeight: -s[1],
			}
			tf.haveXform = true
		}
	}

	codec := uint32(compressionNone)
	if t, ok := tags[tagCompression]; ok {
		codec = t.values[0]
	}

	raster, err := decodeRaster(blob, order, tags, codec, tf.width, tf.height)
	if err != nil {
		return nil, err
	}
	tf.raster = raster

	return tf, nil
}

func codecHint(codec uint32) error {
	names := map[uint32]string{
		compressionLERC:     "LERC",
		compressionJPEG2000: "JPEG2000",
		compressionWEBP:     "WEBP",
	}
	if name, ok := names[codec]; ok {
		return fmt.Errorf("%w: codec %s (%d)", ErrUnsupportedCodec, name, codec)
	}
	return fmt.Errorf("%w: codec %d", ErrUnsupportedCodec, codec)
}

func decodeRaster(blob []byte, order binary.ByteOrder, tags map[uint16]tiffTag, codec, width, height uint32) ([]float32, error) {
	offsets := tags[tagStripOffsets]
	counts := tags[tagStripByteCounts]
	if len(offsets.values) == 0 {
		return nil, fmt.Errorf("dem: TIFF has no strip offsets")
	}

	sampleFormat := uint32(1) // unsigned integer, default per TIFF spec
	if t, ok := tags[tagSampleFormat]; ok {
		sampleFormat = t.values[0]
	}
	bits := uint32(32)
	if t, ok := tags[tagBitsPerSample]; ok {
		bits = t.values[0]
	}

	var raw []byte
	for i, off := range offsets.values {
		n := uint32(0)
		if i < len(counts.values) {
			n = counts.values[i]
		}
		if int(off)+int(n) > len(blob) {
			return nil, ErrBufferShort
		}
		strip := blob[off : off+n]

		switch codec {
		case compressionNone:
			raw = append(raw, strip...)
		case compressionPackBits:
			decoded, err := decodePackBits(strip)
			if err != nil {
				return nil, err
			}
			raw = append(raw, decoded...)
		case compressionDeflate, 32946: // 32946: legacy Adobe deflate code
			decoded, err := decodeDeflate(strip)
			if err != nil {
				return nil, err
			}
			raw = append(raw, decoded...)
		default:
			return nil, codecHint(codec)
		}
	}

	n := int(width) * int(height)
	out := make([]float32, n)
	bytesPerSample := int(bits) / 8
	if bytesPerSample == 0 {
		bytesPerSample = 4
	}
	for i := 0; i < n && (i+1)*bytesPerSample <= len(raw); i++ {
		chunk := raw[i*bytesPerSample : (i+1)*bytesPerSample]
		switch {
		case bits == 32 && sampleFormat == 3: // IEEE float
			out[i] = math.Float32frombits(order.Uint32(chunk))
		case bits == 16 && sampleFormat == 2: // signed int16
			out[i] = float32(int16(order.Uint16(chunk)))
		case bits == 16:
			out[i] = float32(order.Uint16(chunk))
		case bits == 32:
			out[i] = float32(int32(order.Uint32(chunk)))
		default:
			out[i] = float32(chunk[0])
		}
	}
	return out, nil
}

func decodePackBits(src []byte) ([]byte, error) {
	var out bytes.Buffer
	i := 0
	for i < len(src) {
		n := int8(src[i])
		i++
		switch {
		case n >= 0:
			count := int(n) + 1
			if i+count > len(src) {
				return nil, fmt.Errorf("dem: truncated PackBits stream")
			}
			out.Write(src[i : i+count])
			i += count
		case n != -128:
			if i >= len(src) {
				return nil, fmt.Errorf("dem: truncated PackBits stream")
			}
			count := 1 - int(n)
			b := src[i]
			i++
			for k := 0; k < count; k++ {
				out.WriteByte(b)
			}
		}
	}
	return out.Bytes(), nil
}

func decodeDeflate(src []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("dem: deflate strip: %w", err)
	}
	defer r.Close()
	var out bytes.Buffer
	buf := bufio.NewReader(r)
	if _, err := out.ReadFrom(buf); err != nil {
		return nil, fmt.Errorf("dem: deflate strip: %w", err)
	}
	return out.Bytes(), nil
}

func decodeDoubles(raw []byte, order binary.ByteOrder, n int) []float64 {
	out := make([]float64, n)
	for i := 0; i < n && (i+1)*8 <= len(raw); i++ {
		bits := order.Uint64(raw[i*8 : (i+1)*8])
		out[i] = math.Float64frombits(bits)
	}
	return out
}

// readIFD reads one Image File Directory's tag table, resolving each
// tag's value array (inlined for ones that fit in 4 bytes, otherwise
// read from its offset).
func readIFD(blob []byte, order binary.ByteOrder, offset uint32) (map[uint16]tiffTag, error) {
	if int(offset)+2 > len(blob) {
		return nil, ErrBufferShort
	}
	count := order.Uint16(blob[offset : offset+2])
	pos := offset + 2

	tags := make(map[uint16]tiffTag, count)
	for i := 0; i < int(count); i++ {
		if int(pos)+12 > len(blob) {
			return nil, ErrBufferShort
		}
		entry := blob[pos : pos+12]
		id := order.Uint16(entry[0:2])
		typ := order.Uint16(entry[2:4])
		cnt := order.Uint32(entry[4:8])
		valueBytes := entry[8:12]

		tag := tiffTag{id: id, typ: typ, count: cnt}
		size := tiffTypeSize(typ) * int(cnt)

		if size <= 4 {
			tag.raw = valueBytes[:size]
		} else {
			off := order.Uint32(valueBytes)
			if int(off)+size > len(blob) {
				return nil, ErrBufferShort
			}
			tag.raw = blob[off : off+uint32(size)]
		}
		tag.values = decodeTagInts(tag.raw, order, typ, int(cnt))

		tags[id] = tag
		pos += 12
	}
	return tags, nil
}

func tiffTypeSize(typ uint16) int {
	switch typ {
	case 1, 2, 6, 7: // byte, ascii, sbyte, undefined
		return 1
	case 3, 8: // short, sshort
		return 2
	case 4, 9, 11: // long, slong, float
		return 4
	case 5, 10, 12: // rational, srational, double
		return 8
	default:
		return 1
	}
}

func decodeTagInts(raw []byte, order binary.ByteOrder, typ uint16, count int) []uint32 {
	out := make([]uint32, 0, count)
	switch typ {
	case 1, 2, 6, 7:
		for _, b := range raw {
			out = append(out, uint32(b))
		}
	case 3, 8:
		for i := 0; (i+1)*2 <= len(raw); i++ {
			out = append(out, uint32(order.Uint16(raw[i*2:i*2+2])))
		}
	case 4, 9:
		for i := 0; (i+1)*4 <= len(raw); i++ {
			out = append(out, order.Uint32(raw[i*4:i*4+4]))
		}
	}
	return out
}

// parseWorldFile reads the six lines of a .tfw/.wld sidecar (§4.3,
// priority 1): pixel_width, rotation_y, rotation_x, pixel_height,
// origin_x, origin_y.
func parseWorldFile(contents string) (GeoTransform, error) {
	lines := strings.FieldsFunc(contents, func(r rune) bool { return r == '\n' || r == '\r' })
	var nums []float64
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		v, err := strconv.ParseFloat(l, 64)
		if err != nil {
			continue
		}
		nums = append(nums, v)
	}
	if len(nums) < 6 {
		return GeoTransform{}, ErrWorldFileShort
	}
	return GeoTransform{
		PixelWidth: nums[0], RotationY: nums[1],
		RotationX: nums[2], PixelHeight: nums[3],
		OriginX: nums[4], OriginY: nums[5],
	}, nil
}

var srtmNameRe = regexp.MustCompile(`(?i)([NS])(\d+)([EW])(\d+)`)

// filenameFallbackTransform implements §4.3 priority 3: SRTM-style
// filename heuristics, falling through to the generic 0..1/1..0
// fallback (priority 4) when the name doesn't match.
func filenameFallbackTransform(filename string, width, height uint32) GeoTransform {
	m := srtmNameRe.FindStringSubmatch(filename)
	if m == nil {
		return genericFallbackTransform(width, height)
	}

	ns, nsNum, ew, ewNum := m[1], m[2], m[3], m[4]
	lat, _ := strconv.Atoi(nsNum)
	lon, _ := strconv.Atoi(ewNum)
	if strings.EqualFold(ns, "S") {
		lat = -lat
	}
	if strings.EqualFold(ew, "W") {
		lon = -lon
	}

	if lat > 180 || lon > 180 || lat < -180 || lon < -180 {
		// Treat as a 50km projected tile. The origin sits at the
		// tile's upper edge, matching the geographic branch's lat+1
		// convention below.
		px := 50000.0 / float64(width)
		return GeoTransform{
			OriginX: float64(lon) * 1e4, OriginY: float64(lat)*1e4 + 50000,
			PixelWidth: px, PixelHeight: -px,
		}
	}

	return GeoTransform{
		OriginX: float64(lon), OriginY: float64(lat) + 1,
		PixelWidth: 1 / float64(width), PixelHeight: -1 / float64(height),
	}
}

func genericFallbackTransform(width, height uint32) GeoTransform {
	return GeoTransform{
		OriginX: 0, OriginY: 1,
		PixelWidth: 1 / float64(width), PixelHeight: -1 / float64(height),
	}
}
