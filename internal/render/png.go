package render

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/png"
	"math"
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// EncodePNG encodes img as PNG and records dpi in a pHYs chunk.
func EncodePNG(img image.Image, dpi int) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return withDPI(buf.Bytes(), dpi)
}

// withDPI inserts a pHYs chunk directly after IHDR.
func withDPI(data []byte, dpi int) ([]byte, error) {
	// signature + IHDR(length, type, 13 data bytes, crc)
	const ihdrEnd = 8 + 4 + 4 + 13 + 4
	if len(data) < ihdrEnd || !bytes.Equal(data[:8], pngSignature) || string(data[12:16]) != "IHDR" {
		return nil, errors.New("png: missing IHDR")
	}
	ppm := uint32(math.Round(float64(dpi) / 0.0254))

	chunk := make([]byte, 4+4+9+4)
	binary.BigEndian.PutUint32(chunk[0:4], 9)
	copy(chunk[4:8], "pHYs")
	binary.BigEndian.PutUint32(chunk[8:12], ppm)
	binary.BigEndian.PutUint32(chunk[12:16], ppm)
	chunk[16] = 1 // unit: metre
	binary.BigEndian.PutUint32(chunk[17:21], crc32.ChecksumIEEE(chunk[4:17]))

	out := make([]byte, 0, len(data)+len(chunk))
	out = append(out, data[:ihdrEnd]...)
	out = append(out, chunk...)
	out = append(out, data[ihdrEnd:]...)
	return out, nil
}

// DPIOf returns the horizontal resolution recorded in a PNG's pHYs chunk, or
// 0 when there is none.
func DPIOf(data []byte) int {
	if len(data) < 8 || !bytes.Equal(data[:8], pngSignature) {
		return 0
	}
	for off := 8; off+8 <= len(data); {
		n := int(binary.BigEndian.Uint32(data[off : off+4]))
		typ := string(data[off+4 : off+8])
		if typ == "pHYs" && n == 9 && off+8+9 <= len(data) && data[off+16] == 1 {
			ppm := binary.BigEndian.Uint32(data[off+8 : off+12])
			return int(math.Round(float64(ppm) * 0.0254))
		}
		if typ == "IDAT" || typ == "IEND" {
			return 0
		}
		off += 12 + n
	}
	return 0
}
