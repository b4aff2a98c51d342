// Package gifstream decodes GIF87a and GIF89a byte streams into fully
// composed RGBA frames, one frame at a time.
//
// The decoder is a pull parser: the caller asks for the next token and then
// reads or skips it, so arbitrarily long animations decode without ever
// holding more than one frame of pixels. A composed Frame borrows the
// decoder's canvas buffer; copy or upload it before the next decoder call.
package gifstream

import (
	"errors"
	"image"
	"image/color"
	"io"
)

var (
	ErrMalformedHeader       = errors.New("gifstream: malformed header")
	ErrUnknownBlock          = errors.New("gifstream: unknown block")
	ErrInvalidGraphicControl = errors.New("gifstream: invalid graphic control")
	ErrTruncatedStream       = errors.New("gifstream: truncated stream")
	ErrInvalidState          = errors.New("gifstream: invalid decoder state")
)

// Version identifies the file format variant declared in the header.
type Version string

const (
	Version87a Version = "87a"
	Version89a Version = "89a"
)

// Token is what the stream surfaces next. NextToken may only be called while
// the current token is TokenUnknown; reading or skipping a surfaced token
// returns the decoder to TokenUnknown.
type Token int

const (
	TokenUnknown Token = iota
	TokenImage
	TokenComment
	TokenEOF
)

func (t Token) String() string {
	switch t {
	case TokenUnknown:
		return "unknown"
	case TokenImage:
		return "image"
	case TokenComment:
		return "comment"
	case TokenEOF:
		return "eof"
	}
	return "invalid"
}

// DisposalMethod tells the canvas how to prepare for the frame that follows
// the one carrying it.
type DisposalMethod int

const (
	// DisposalKeep leaves the canvas as painted.
	DisposalKeep DisposalMethod = iota
	// DisposalClearToBackground clears the whole canvas to the background
	// color with alpha 0 before the next frame.
	DisposalClearToBackground
	// DisposalRevert restores the canvas to its state from before the
	// carrying frame painted.
	DisposalRevert
)

func (m DisposalMethod) String() string {
	switch m {
	case DisposalKeep:
		return "keep"
	case DisposalClearToBackground:
		return "clear-to-background"
	case DisposalRevert:
		return "revert"
	}
	return "invalid"
}

// Frame is one composed animation frame. Colors aliases the decoder's canvas
// and stays valid only until the next call that mutates it (ReadImage,
// SkipImage, Reset with canvas reset, or SetStream).
type Frame struct {
	Index   int          // zero-based frame number
	DelayCS int          // display delay in centiseconds
	Width   int          // logical screen width
	Height  int          // logical screen height
	Colors  []color.RGBA // borrowed canvas view, Width*Height pixels
}

// RGBA copies the frame into a standalone image. Rows are copied in canvas
// order: with the decoder's default bottom-up layout the image comes out
// vertically mirrored, so callers that want a display-oriented image should
// decode with SetFlipVertically(false).
func (f *Frame) RGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			img.SetRGBA(x, y, f.Colors[y*f.Width+x])
		}
	}
	return img
}

// Clone deep-copies the frame so it survives further decoder calls.
func (f *Frame) Clone() Frame {
	cp := *f
	cp.Colors = append([]color.RGBA(nil), f.Colors...)
	return cp
}

// DecodeAll decodes every frame of the stream, deep-copying each one. Frames
// come out top-down. Comments and unknown extensions are skipped.
func DecodeAll(r io.Reader) ([]Frame, error) {
	d, err := NewDecoder(r)
	if err != nil {
		return nil, err
	}
	d.SetFlipVertically(false)

	var frames []Frame
	for {
		tok, err := d.NextToken()
		if err != nil {
			return nil, err
		}
		switch tok {
		case TokenImage:
			f, err := d.ReadImage()
			if err != nil {
				return nil, err
			}
			frames = append(frames, f.Clone())
		case TokenComment:
			if err := d.SkipComment(); err != nil {
				return nil, err
			}
		case TokenEOF:
			return frames, nil
		}
	}
}

// DecodeFirst decodes only the first frame and returns it as a top-down
// image.
func DecodeFirst(r io.Reader) (*image.RGBA, error) {
	d, err := NewDecoder(r)
	if err != nil {
		return nil, err
	}
	d.SetFlipVertically(false)

	for {
		tok, err := d.NextToken()
		if err != nil {
			return nil, err
		}
		switch tok {
		case TokenImage:
			f, err := d.ReadImage()
			if err != nil {
				return nil, err
			}
			return f.RGBA(), nil
		case TokenComment:
			if err := d.SkipComment(); err != nil {
				return nil, err
			}
		case TokenEOF:
			return nil, errors.New("gifstream: no image data before trailer")
		}
	}
}
