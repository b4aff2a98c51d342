package main

import (
	"bytes"
	"encoding/binary"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/svanichkin/gifstream"
)

const rawMagic = "GIFX"

// rawDump accumulates frames and writes them as one file: a plain header
// (magic, width, height, frame count) followed by a zstd stream of
// per-frame records, each a uint16 delay plus the RGBA plane. Rows keep the
// decoder's orientation, so a bottom-up decode dumps upload-ready planes.
type rawDump struct {
	width, height int
	frames        int
	payload       bytes.Buffer
}

func newRawDump(w, h int) *rawDump {
	return &rawDump{width: w, height: h}
}

func (rd *rawDump) addFrame(frame *gifstream.Frame) {
	var delay [2]byte
	binary.BigEndian.PutUint16(delay[:], uint16(frame.DelayCS))
	rd.payload.Write(delay[:])
	for _, c := range frame.Colors {
		rd.payload.Write([]byte{c.R, c.G, c.B, c.A})
	}
	rd.frames++
}

func (rd *rawDump) writeFile(name string) error {
	out, err := os.Create(name)
	if err != nil {
		return err
	}
	defer out.Close()

	var header bytes.Buffer
	header.WriteString(rawMagic)
	binary.Write(&header, binary.BigEndian, uint16(rd.width))
	binary.Write(&header, binary.BigEndian, uint16(rd.height))
	binary.Write(&header, binary.BigEndian, uint16(rd.frames))
	if _, err := out.Write(header.Bytes()); err != nil {
		return err
	}

	enc, err := zstd.NewWriter(out)
	if err != nil {
		return err
	}
	if _, err := enc.Write(rd.payload.Bytes()); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}
