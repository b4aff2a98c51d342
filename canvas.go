package gifstream

import "image/color"

// interlacePasses is GIF's fixed four-pass row order over a sub-image.
var interlacePasses = [4]struct{ start, step int }{
	{0, 8},
	{4, 8},
	{2, 4},
	{1, 2},
}

// canvas is the logical-screen RGBA framebuffer on which frames composite.
// Frames paint into a sub-rectangle through a precomputed row schedule that
// already encodes interlacing and the vertical-flip setting.
type canvas struct {
	width, height int
	colors        []color.RGBA
	revert        []color.RGBA // lazily allocated, dropped only when the size changes
	background    color.RGBA
	prevDisposal  DisposalMethod
	flip          bool

	palette     []color.RGBA
	transparent int

	rowStart []int
	rowEnd   []int
	row      int
	cur, end int
	done     bool
	badIndex bool
}

// setSize resizes the canvas if the dimensions changed and always resets it.
func (cv *canvas) setSize(w, h int) {
	if w != cv.width || h != cv.height {
		cv.width, cv.height = w, h
		cv.colors = make([]color.RGBA, w*h)
		cv.revert = nil
	}
	cv.reset()
}

// reset fills the canvas with transparent black and forgets the previous
// frame's disposal.
func (cv *canvas) reset() {
	clear(cv.colors)
	cv.prevDisposal = DisposalKeep
}

// beginFrame prepares the canvas for one frame: it applies the previous
// frame's disposal, snapshots the canvas if this frame disposes by revert,
// and precomputes the row schedule for the frame rectangle.
func (cv *canvas) beginFrame(x, y, w, h int, palette []color.RGBA, transparent int, interlaced bool, disposal DisposalMethod) {
	switch cv.prevDisposal {
	case DisposalClearToBackground:
		// Background pixels render transparent.
		bg := color.RGBA{R: cv.background.R, G: cv.background.G, B: cv.background.B}
		for i := range cv.colors {
			cv.colors[i] = bg
		}
	case DisposalRevert:
		copy(cv.colors, cv.revert)
	}

	if disposal == DisposalRevert {
		if cv.revert == nil {
			cv.revert = make([]color.RGBA, len(cv.colors))
		}
		copy(cv.revert, cv.colors)
	}

	cv.prevDisposal = disposal
	cv.palette = palette
	cv.transparent = transparent
	cv.badIndex = false

	cv.buildRowSchedule(x, y, w, h, interlaced)
	cv.row = 0
	if w > 0 && len(cv.rowStart) > 0 {
		cv.cur, cv.end = cv.rowStart[0], cv.rowEnd[0]
		cv.done = false
	} else {
		cv.done = true
	}
}

func (cv *canvas) buildRowSchedule(x, y, w, h int, interlaced bool) {
	if cap(cv.rowStart) < h {
		cv.rowStart = make([]int, 0, h)
		cv.rowEnd = make([]int, 0, h)
	}
	cv.rowStart = cv.rowStart[:0]
	cv.rowEnd = cv.rowEnd[:0]

	appendRow := func(r int) {
		line := y + r
		if cv.flip {
			line = cv.height - 1 - line
		}
		start := line*cv.width + x
		cv.rowStart = append(cv.rowStart, start)
		cv.rowEnd = append(cv.rowEnd, start+w)
	}

	if interlaced {
		for _, p := range interlacePasses {
			for r := p.start; r < h; r += p.step {
				appendRow(r)
			}
		}
	} else {
		for r := 0; r < h; r++ {
			appendRow(r)
		}
	}
}

// outputPixel writes one palette index at the cursor and advances it.
// Indices equal to the transparent index advance without writing, and pixels
// past the end of the schedule are dropped.
func (cv *canvas) outputPixel(index byte) {
	if cv.done {
		return
	}
	if int(index) != cv.transparent {
		if int(index) >= len(cv.palette) {
			cv.badIndex = true
		} else {
			cv.colors[cv.cur] = cv.palette[index]
		}
	}
	cv.cur++
	if cv.cur == cv.end {
		cv.row++
		if cv.row < len(cv.rowStart) {
			cv.cur, cv.end = cv.rowStart[cv.row], cv.rowEnd[cv.row]
		} else {
			cv.done = true
		}
	}
}

// frameComplete reports whether the current frame received all of its
// pixels.
func (cv *canvas) frameComplete() bool {
	return cv.done
}
