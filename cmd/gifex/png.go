package main

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/draw"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/xfmoulet/qoi"
)

var pngSignature = []byte{137, 80, 78, 71, 13, 10, 26, 10}

// toRGBA copies any image.Image into an *image.RGBA with bounds starting at
// (0,0). An *image.RGBA whose bounds already start at (0,0) is returned
// as is, without a copy.
func toRGBA(src image.Image) *image.RGBA {
	if rgba, ok := src.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

func writeChunk(w io.Writer, chunkType string, data []byte) error {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(data)))
	if _, err := w.Write(length[:]); err != nil {
		return err
	}
	ctb := []byte(chunkType)
	if _, err := w.Write(ctb); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	var sum [4]byte
	binary.BigEndian.PutUint32(sum[:], crc32.Update(crc32.ChecksumIEEE(ctb), crc32.IEEETable, data))
	_, err := w.Write(sum[:])
	return err
}

// writePNG writes img as an 8-bit truecolor-with-alpha PNG. The IDAT stream
// uses filter 0 on every scanline.
func writePNG(w io.Writer, img *image.RGBA) error {
	if _, err := w.Write(pngSignature); err != nil {
		return err
	}

	width := img.Bounds().Dx()
	height := img.Bounds().Dy()

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], uint32(width))
	binary.BigEndian.PutUint32(ihdr[4:], uint32(height))
	ihdr[8] = 8 // bit depth
	ihdr[9] = 6 // truecolor with alpha
	if err := writeChunk(w, "IHDR", ihdr); err != nil {
		return err
	}

	var idat bytes.Buffer
	zw, err := zlib.NewWriterLevel(&idat, zlib.BestCompression)
	if err != nil {
		return err
	}
	rowLen := width * 4
	for y := 0; y < height; y++ {
		if _, err := zw.Write([]byte{0}); err != nil {
			return err
		}
		row := img.Pix[y*img.Stride : y*img.Stride+rowLen]
		if _, err := zw.Write(row); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return err
	}
	if err := writeChunk(w, "IDAT", idat.Bytes()); err != nil {
		return err
	}

	return writeChunk(w, "IEND", nil)
}

func writeQOI(w io.Writer, img image.Image) error {
	return qoi.Encode(w, img)
}
