package export

import (
	"bufio"
	"encoding/binary"
	"image"
	"image/draw"
	"io"
)

// TIFF tag numbers and field types used by the CMYK writer.
const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagPhotometric     = 262
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagXResolution     = 282
	tagYResolution     = 283
	tagPlanarConfig    = 284
	tagResolutionUnit  = 296
	tagInkSet          = 332

	dtShort    = 3
	dtLong     = 4
	dtRational = 5

	photometricSeparated = 5
	inkSetCMYK           = 1
	resolutionUnitInch   = 2
)

type ifdEntry struct {
	tag, kind uint16
	count     uint32
	value     uint32
}

// ToCMYK converts img to the CMYK colour model.
func ToCMYK(img image.Image) *image.CMYK {
	if c, ok := img.(*image.CMYK); ok {
		return c
	}
	b := img.Bounds()
	out := image.NewCMYK(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// EncodeCMYKTIFF writes img as an uncompressed little-endian TIFF with four
// 8-bit separated channels and the given resolution in dots per inch.
func EncodeCMYKTIFF(w io.Writer, img *image.CMYK, dpi int) error {
	width, height := img.Rect.Dx(), img.Rect.Dy()
	const entries = 14
	const ifdOffset = 8
	ifdSize := 2 + entries*12 + 4
	bitsOffset := uint32(ifdOffset + ifdSize)
	xResOffset := bitsOffset + 8
	yResOffset := xResOffset + 8
	dataOffset := yResOffset + 8
	dataSize := uint32(width * height * 4)

	ifd := []ifdEntry{
		{tagImageWidth, dtLong, 1, uint32(width)},
		{tagImageLength, dtLong, 1, uint32(height)},
		{tagBitsPerSample, dtShort, 4, bitsOffset},
		{tagCompression, dtShort, 1, 1},
		{tagPhotometric, dtShort, 1, photometricSeparated},
		{tagStripOffsets, dtLong, 1, dataOffset},
		{tagSamplesPerPixel, dtShort, 1, 4},
		{tagRowsPerStrip, dtLong, 1, uint32(height)},
		{tagStripByteCounts, dtLong, 1, dataSize},
		{tagXResolution, dtRational, 1, xResOffset},
		{tagYResolution, dtRational, 1, yResOffset},
		{tagPlanarConfig, dtShort, 1, 1},
		{tagResolutionUnit, dtShort, 1, resolutionUnitInch},
		{tagInkSet, dtShort, 1, inkSetCMYK},
	}

	bw := bufio.NewWriter(w)
	le := binary.LittleEndian
	buf := make([]byte, 0, dataOffset)
	buf = append(buf, 'I', 'I')
	buf = le.AppendUint16(buf, 42)
	buf = le.AppendUint32(buf, ifdOffset)

	buf = le.AppendUint16(buf, entries)
	for _, e := range ifd {
		buf = le.AppendUint16(buf, e.tag)
		buf = le.AppendUint16(buf, e.kind)
		buf = le.AppendUint32(buf, e.count)
		if e.kind == dtShort && e.count == 1 {
			buf = le.AppendUint16(buf, uint16(e.value))
			buf = le.AppendUint16(buf, 0)
		} else {
			buf = le.AppendUint32(buf, e.value)
		}
	}
	buf = le.AppendUint32(buf, 0)

	for i := 0; i < 4; i++ {
		buf = le.AppendUint16(buf, 8)
	}
	for i := 0; i < 2; i++ {
		buf = le.AppendUint32(buf, uint32(dpi))
		buf = le.AppendUint32(buf, 1)
	}
	if _, err := bw.Write(buf); err != nil {
		return err
	}

	rowLen := width * 4
	for y := 0; y < height; y++ {
		start := img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y)
		if _, err := bw.Write(img.Pix[start : start+rowLen]); err != nil {
			return err
		}
	}
	return bw.Flush()
}
