package gifstream

import (
	"fmt"
	"image/color"
	"io"
	"strings"

	bst "github.com/mixcode/binarystruct"
)

// Section introducers and extension labels from the GIF89a specification.
const (
	blockExtension       = 0x21
	blockImageDescriptor = 0x2C
	blockTrailer         = 0x3B

	extPlainText      = 0x01
	extGraphicControl = 0xF9
	extComment        = 0xFE
	extApplication    = 0xFF
)

// screenDescriptor is the signature plus the logical screen descriptor, the
// fixed 13-byte preamble of every GIF file.
type screenDescriptor struct {
	Signature   string `binary:"[6]byte"`
	Width       int    `binary:"uint16"`
	Height      int    `binary:"uint16"`
	Flags       byte
	Background  byte
	AspectRatio byte
}

// imageDescriptor follows the 0x2C introducer.
type imageDescriptor struct {
	Left   int `binary:"uint16"`
	Top    int `binary:"uint16"`
	Width  int `binary:"uint16"`
	Height int `binary:"uint16"`
	Flags  byte
}

// graphicControlBlock is the fixed payload of the 0xF9 extension: one 4-byte
// sub-block plus its terminator.
type graphicControlBlock struct {
	BlockSize        byte
	Flags            byte
	Delay            int `binary:"uint16"`
	TransparentIndex byte
	Terminator       byte
}

// graphicControl is the decoded control state carried to the next image
// only.
type graphicControl struct {
	hasTransparency  bool
	transparentIndex int // -1 when none
	delayCS          int
	disposal         DisposalMethod
}

func (gc *graphicControl) reset() {
	gc.hasTransparency = false
	gc.transparentIndex = -1
	gc.delayCS = 0
	gc.disposal = DisposalKeep
}

// Decoder is a streaming GIF parser. After construction the header has been
// read and Width, Height and Version are valid; the caller then alternates
// NextToken with ReadImage, SkipImage, ReadComment or SkipComment until
// TokenEOF.
//
// A Decoder is not safe for concurrent use. Independent decoders on
// independent streams may run on different goroutines.
type Decoder struct {
	r io.Reader

	width           int
	height          int
	version         Version
	backgroundIndex byte

	globalStorage [256]color.RGBA
	localStorage  [256]color.RGBA
	globalPalette []color.RGBA
	scratch       [768]byte

	canvas canvas
	dict   lzwDict
	blocks blockBitReader

	token        Token
	gc           graphicControl
	frameIndex   int
	dataStart    int64
	hasDataStart bool
}

// New returns a decoder with no stream bound; call SetStream before use.
// Vertical flipping defaults to on, producing a bottom-up raster suitable
// for texture upload.
func New() *Decoder {
	d := &Decoder{}
	d.canvas.flip = true
	d.gc.reset()
	return d
}

// NewDecoder binds r and eagerly parses the header, so Width, Height and
// Version are valid on return.
func NewDecoder(r io.Reader) (*Decoder, error) {
	d := New()
	if err := d.SetStream(r, false); err != nil {
		return nil, err
	}
	return d, nil
}

// SetStream rebinds the decoder to a new byte stream and parses its header.
// When closePrev is true and the previous stream is an io.Closer, it is
// closed first.
func (d *Decoder) SetStream(r io.Reader, closePrev bool) error {
	if closePrev {
		if c, ok := d.r.(io.Closer); ok {
			c.Close()
		}
	}
	d.r = r
	d.token = TokenUnknown
	d.frameIndex = 0
	d.gc.reset()
	return d.readHeader()
}

// Width returns the logical screen width in pixels.
func (d *Decoder) Width() int { return d.width }

// Height returns the logical screen height in pixels.
func (d *Decoder) Height() int { return d.height }

// Version returns the format variant declared in the header.
func (d *Decoder) Version() Version { return d.version }

// FlipVertically reports whether decoded frames use a bottom-up raster.
func (d *Decoder) FlipVertically() bool { return d.canvas.flip }

// SetFlipVertically selects the raster orientation for subsequent frames:
// true produces bottom-up rows for texture upload, false top-down rows.
func (d *Decoder) SetFlipVertically(flip bool) { d.canvas.flip = flip }

// Close closes the underlying stream if it is an io.Closer.
func (d *Decoder) Close() error {
	if c, ok := d.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (d *Decoder) readByte() (byte, error) {
	if _, err := io.ReadFull(d.r, d.scratch[:1]); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTruncatedStream, err)
	}
	return d.scratch[0], nil
}

func (d *Decoder) readHeader() error {
	var sd screenDescriptor
	if _, err := bst.Read(d.r, bst.LittleEndian, &sd); err != nil {
		return fmt.Errorf("%w: screen descriptor: %v", ErrTruncatedStream, err)
	}
	switch sd.Signature {
	case "GIF87a":
		d.version = Version87a
	case "GIF89a":
		d.version = Version89a
	default:
		return fmt.Errorf("%w: signature %q", ErrMalformedHeader, sd.Signature)
	}
	d.width = sd.Width
	d.height = sd.Height
	d.backgroundIndex = sd.Background

	d.globalPalette = nil
	d.canvas.background = color.RGBA{}
	if sd.Flags&0x80 != 0 {
		n := 1 << (sd.Flags&0x07 + 1)
		var err error
		d.globalPalette, err = d.readPalette(d.globalStorage[:n])
		if err != nil {
			return err
		}
		if int(sd.Background) < n {
			bg := d.globalPalette[sd.Background]
			d.canvas.background = color.RGBA{R: bg.R, G: bg.G, B: bg.B}
		}
	}
	d.canvas.setSize(d.width, d.height)

	d.hasDataStart = false
	if s, ok := d.r.(io.Seeker); ok {
		if pos, err := s.Seek(0, io.SeekCurrent); err == nil {
			d.dataStart = pos
			d.hasDataStart = true
		}
	}
	return nil
}

// readPalette fills dst with len(dst) RGB triplets from the stream, alpha
// fixed at 255.
func (d *Decoder) readPalette(dst []color.RGBA) ([]color.RGBA, error) {
	n := len(dst)
	if _, err := io.ReadFull(d.r, d.scratch[:3*n]); err != nil {
		return nil, fmt.Errorf("%w: color table: %v", ErrTruncatedStream, err)
	}
	for i := 0; i < n; i++ {
		dst[i] = color.RGBA{
			R: d.scratch[3*i],
			G: d.scratch[3*i+1],
			B: d.scratch[3*i+2],
			A: 0xFF,
		}
	}
	return dst, nil
}

// NextToken advances to the next observable token. Graphic-control
// extensions are consumed on the way; unrecognized extensions, including
// NETSCAPE2.0 application blocks, are skipped silently.
func (d *Decoder) NextToken() (Token, error) {
	if d.token != TokenUnknown {
		return d.token, fmt.Errorf("%w: NextToken with %v pending", ErrInvalidState, d.token)
	}
	for {
		b, err := d.readByte()
		if err != nil {
			return TokenUnknown, err
		}
		switch b {
		case blockExtension:
			label, err := d.readByte()
			if err != nil {
				return TokenUnknown, err
			}
			switch label {
			case extComment:
				d.token = TokenComment
				return d.token, nil
			case extGraphicControl:
				if err := d.readGraphicControl(); err != nil {
					return TokenUnknown, err
				}
			default:
				// Plain text, application and vendor extensions.
				if err := d.skipSubBlocks(); err != nil {
					return TokenUnknown, err
				}
			}
		case blockImageDescriptor:
			d.token = TokenImage
			return d.token, nil
		case blockTrailer:
			d.token = TokenEOF
			return d.token, nil
		default:
			return TokenUnknown, fmt.Errorf("%w: 0x%02x", ErrUnknownBlock, b)
		}
	}
}

func (d *Decoder) readGraphicControl() error {
	var b graphicControlBlock
	if _, err := bst.Read(d.r, bst.LittleEndian, &b); err != nil {
		return fmt.Errorf("%w: graphic control: %v", ErrTruncatedStream, err)
	}
	if b.BlockSize != 4 {
		return fmt.Errorf("%w: block size %d", ErrInvalidGraphicControl, b.BlockSize)
	}
	if b.Terminator != 0 {
		return fmt.Errorf("%w: missing terminator", ErrInvalidGraphicControl)
	}
	d.gc.hasTransparency = b.Flags&0x01 != 0
	d.gc.transparentIndex = -1
	if d.gc.hasTransparency {
		d.gc.transparentIndex = int(b.TransparentIndex)
	}
	d.gc.delayCS = b.Delay
	switch (b.Flags >> 2) & 0x07 {
	case 0, 1:
		d.gc.disposal = DisposalKeep
	case 2:
		d.gc.disposal = DisposalClearToBackground
	case 3:
		d.gc.disposal = DisposalRevert
	default:
		return fmt.Errorf("%w: disposal %d", ErrInvalidGraphicControl, (b.Flags>>2)&0x07)
	}
	return nil
}

func (d *Decoder) skipSubBlocks() error {
	for {
		n, err := d.readByte()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if _, err := io.ReadFull(d.r, d.scratch[:n]); err != nil {
			return fmt.Errorf("%w: extension data: %v", ErrTruncatedStream, err)
		}
	}
}

// ReadImage decodes the pending image into the canvas and returns the
// composed frame. The frame's Colors slice aliases the canvas and is valid
// until the next mutating call.
func (d *Decoder) ReadImage() (*Frame, error) {
	if d.token != TokenImage {
		return nil, fmt.Errorf("%w: ReadImage with %v pending", ErrInvalidState, d.token)
	}

	var desc imageDescriptor
	if _, err := bst.Read(d.r, bst.LittleEndian, &desc); err != nil {
		return nil, fmt.Errorf("%w: image descriptor: %v", ErrTruncatedStream, err)
	}
	if desc.Left+desc.Width > d.width || desc.Top+desc.Height > d.height {
		return nil, fmt.Errorf("gifstream: frame %dx%d at (%d,%d) exceeds %dx%d screen",
			desc.Width, desc.Height, desc.Left, desc.Top, d.width, d.height)
	}

	palette := d.globalPalette
	if desc.Flags&0x80 != 0 {
		n := 1 << (desc.Flags&0x07 + 1)
		var err error
		palette, err = d.readPalette(d.localStorage[:n])
		if err != nil {
			return nil, err
		}
	}
	if len(palette) == 0 {
		return nil, fmt.Errorf("gifstream: image has no active color table")
	}
	interlaced := desc.Flags&0x40 != 0

	minCodeSize, err := d.readByte()
	if err != nil {
		return nil, err
	}
	if minCodeSize < 2 || minCodeSize > 8 {
		return nil, fmt.Errorf("gifstream: LZW minimum code size %d out of range", minCodeSize)
	}

	d.canvas.beginFrame(desc.Left, desc.Top, desc.Width, desc.Height,
		palette, d.gc.transparentIndex, interlaced, d.gc.disposal)
	if err := d.decodeImageData(uint(minCodeSize)); err != nil {
		return nil, err
	}
	if !d.canvas.frameComplete() {
		return nil, fmt.Errorf("%w: image data ended before the frame was filled", ErrTruncatedStream)
	}
	if d.canvas.badIndex {
		return nil, fmt.Errorf("gifstream: pixel index outside active color table")
	}

	frame := &Frame{
		Index:   d.frameIndex,
		DelayCS: d.gc.delayCS,
		Width:   d.width,
		Height:  d.height,
		Colors:  d.canvas.colors,
	}
	d.frameIndex++
	d.gc.reset()
	d.token = TokenUnknown
	return frame, nil
}

// SkipImage consumes the pending image without returning it. The image is
// still decoded in full: later frames may depend on its pixels.
func (d *Decoder) SkipImage() error {
	_, err := d.ReadImage()
	return err
}

// decodeImageData runs the LZW loop, feeding decoded indices into the
// canvas.
func (d *Decoder) decodeImageData(minCodeSize uint) error {
	if err := d.blocks.start(d.r); err != nil {
		return err
	}
	d.dict.init(minCodeSize)

	last := -1
	endPadding := 0
	for {
		if d.blocks.end {
			// The terminator arrived before a stop code. Up to two more
			// codes are read as synthesized zero bits; completeness is
			// checked by the caller.
			endPadding++
			if endPadding > 2 {
				return nil
			}
		}
		code, err := d.blocks.readBits(d.dict.codeWidth)
		if err != nil {
			return err
		}
		switch {
		case d.dict.isClearCode(code):
			d.dict.clear()
			last = -1
		case d.dict.isStopCode(code):
			return d.blocks.drain()
		case d.dict.contains(code):
			d.dict.output(code, &d.canvas)
			if last >= 0 {
				d.dict.createCode(last, code)
			}
			last = code
		default:
			// The KwKwK case: the code being defined is used immediately.
			if last < 0 || code != d.dict.size {
				return fmt.Errorf("gifstream: LZW code %d out of range", code)
			}
			next := d.dict.createCode(last, last)
			if next < 0 {
				return fmt.Errorf("gifstream: LZW code %d past a full dictionary", code)
			}
			last = next
			d.dict.output(next, &d.canvas)
		}
	}
}

// ReadComment reads the pending comment extension and returns its text. A
// chain with only the terminator yields the empty string.
func (d *Decoder) ReadComment() (string, error) {
	if d.token != TokenComment {
		return "", fmt.Errorf("%w: ReadComment with %v pending", ErrInvalidState, d.token)
	}
	var sb strings.Builder
	for {
		n, err := d.readByte()
		if err != nil {
			return "", err
		}
		if n == 0 {
			break
		}
		if _, err := io.ReadFull(d.r, d.scratch[:n]); err != nil {
			return "", fmt.Errorf("%w: comment data: %v", ErrTruncatedStream, err)
		}
		sb.Write(d.scratch[:n])
	}
	d.token = TokenUnknown
	return sb.String(), nil
}

// SkipComment discards the pending comment extension.
func (d *Decoder) SkipComment() error {
	if d.token != TokenComment {
		return fmt.Errorf("%w: SkipComment with %v pending", ErrInvalidState, d.token)
	}
	if err := d.skipSubBlocks(); err != nil {
		return err
	}
	d.token = TokenUnknown
	return nil
}

// Reset seeks the stream back to the first data block so the frame sequence
// replays from the start. The underlying stream must be seekable. When
// resetCanvas is true the canvas is cleared to transparent black; otherwise
// the last composed frame stays visible.
func (d *Decoder) Reset(resetCanvas bool) error {
	s, ok := d.r.(io.Seeker)
	if !ok || !d.hasDataStart {
		return fmt.Errorf("gifstream: Reset requires a seekable stream")
	}
	if _, err := s.Seek(d.dataStart, io.SeekStart); err != nil {
		return fmt.Errorf("gifstream: Reset: %w", err)
	}
	d.token = TokenUnknown
	d.frameIndex = 0
	d.gc.reset()
	if resetCanvas {
		d.canvas.reset()
	}
	return nil
}
