package gifstream

import (
	"image/color"
	"testing"
)

func paintRect(cv *canvas, indices []byte) {
	for _, ix := range indices {
		cv.outputPixel(ix)
	}
}

// rowValues reads back one canvas row as palette-gray values.
func rowValues(t *testing.T, cv *canvas, y int) []byte {
	t.Helper()
	out := make([]byte, cv.width)
	for x := 0; x < cv.width; x++ {
		out[x] = cv.colors[y*cv.width+x].R
	}
	return out
}

func TestCanvasSequentialRows(t *testing.T) {
	cv := &canvas{}
	cv.setSize(2, 2)
	cv.beginFrame(0, 0, 2, 2, grayPalette(4), -1, false, DisposalKeep)
	paintRect(cv, []byte{1, 2, 3, 0})

	if !cv.frameComplete() {
		t.Fatal("frame not complete after 4 pixels")
	}
	if got := rowValues(t, cv, 0); got[0] != 1 || got[1] != 2 {
		t.Fatalf("row 0 = %v", got)
	}
	if got := rowValues(t, cv, 1); got[0] != 3 || got[1] != 0 {
		t.Fatalf("row 1 = %v", got)
	}
}

func TestCanvasVerticalFlip(t *testing.T) {
	cv := &canvas{flip: true}
	cv.setSize(2, 2)
	cv.beginFrame(0, 0, 2, 2, grayPalette(4), -1, false, DisposalKeep)
	paintRect(cv, []byte{1, 2, 3, 0})

	// The first painted row lands on the bottom of the buffer.
	if got := rowValues(t, cv, 1); got[0] != 1 || got[1] != 2 {
		t.Fatalf("bottom row = %v, want [1 2]", got)
	}
	if got := rowValues(t, cv, 0); got[0] != 3 || got[1] != 0 {
		t.Fatalf("top row = %v, want [3 0]", got)
	}
}

func TestCanvasInterlaceOrder(t *testing.T) {
	cv := &canvas{}
	cv.setSize(1, 8)
	cv.beginFrame(0, 0, 1, 8, grayPalette(8), -1, true, DisposalKeep)

	// Paint rows in stream order 0..7; interlacing scatters them.
	paintRect(cv, []byte{0, 1, 2, 3, 4, 5, 6, 7})
	if !cv.frameComplete() {
		t.Fatal("frame not complete")
	}

	wantByRow := []byte{0, 4, 2, 5, 1, 6, 3, 7}
	for y, want := range wantByRow {
		if got := cv.colors[y].R; got != want {
			t.Fatalf("row %d = %d, want %d", y, got, want)
		}
	}
}

func TestCanvasSubRectangle(t *testing.T) {
	cv := &canvas{}
	cv.setSize(4, 4)
	cv.beginFrame(1, 1, 2, 2, grayPalette(8), -1, false, DisposalKeep)
	paintRect(cv, []byte{5, 5, 5, 5})

	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			inside := x >= 1 && x <= 2 && y >= 1 && y <= 2
			got := cv.colors[y*4+x].R
			if inside && got != 5 {
				t.Fatalf("(%d,%d) = %d, want 5", x, y, got)
			}
			if !inside && got != 0 {
				t.Fatalf("(%d,%d) = %d, want untouched", x, y, got)
			}
		}
	}
}

func TestCanvasTransparencySkips(t *testing.T) {
	cv := &canvas{}
	cv.setSize(3, 1)
	cv.beginFrame(0, 0, 3, 1, grayPalette(8), -1, false, DisposalKeep)
	paintRect(cv, []byte{7, 7, 7})

	// Second frame writes index 2 with transparency on index 2: the
	// underlying pixels must survive.
	cv.beginFrame(0, 0, 3, 1, grayPalette(8), 2, false, DisposalKeep)
	paintRect(cv, []byte{1, 2, 2})

	want := []byte{1, 7, 7}
	for x, w := range want {
		if got := cv.colors[x].R; got != w {
			t.Fatalf("pixel %d = %d, want %d", x, got, w)
		}
	}
}

func TestCanvasDisposalClearToBackground(t *testing.T) {
	cv := &canvas{background: color.RGBA{R: 9, G: 9, B: 9, A: 0xFF}}
	cv.setSize(2, 1)
	cv.beginFrame(0, 0, 2, 1, grayPalette(8), -1, false, DisposalClearToBackground)
	paintRect(cv, []byte{5, 5})

	// The next frame covers one pixel; the other shows the disposed
	// background, which renders transparent.
	cv.beginFrame(0, 0, 1, 1, grayPalette(8), -1, false, DisposalKeep)
	paintRect(cv, []byte{1})

	if got := cv.colors[0]; got != grayPalette(8)[1] {
		t.Fatalf("painted pixel = %v", got)
	}
	if got := cv.colors[1]; got.R != 9 || got.A != 0 {
		t.Fatalf("disposed pixel = %v, want background with alpha 0", got)
	}
}

func TestCanvasDisposalRevert(t *testing.T) {
	cv := &canvas{}
	cv.setSize(2, 1)
	cv.beginFrame(0, 0, 2, 1, grayPalette(8), -1, false, DisposalKeep)
	paintRect(cv, []byte{3, 4})

	// A reverting frame overwrites everything, then the following frame
	// starts from the pre-revert snapshot.
	cv.beginFrame(0, 0, 2, 1, grayPalette(8), -1, false, DisposalRevert)
	paintRect(cv, []byte{6, 6})
	if cv.colors[0].R != 6 {
		t.Fatal("revert frame did not paint")
	}

	cv.beginFrame(0, 0, 1, 1, grayPalette(8), -1, false, DisposalKeep)
	paintRect(cv, []byte{5})

	if got := cv.colors[0].R; got != 5 {
		t.Fatalf("pixel 0 = %d, want 5", got)
	}
	if got := cv.colors[1].R; got != 4 {
		t.Fatalf("pixel 1 = %d, want reverted 4", got)
	}
}

func TestCanvasRevertOnFirstFrame(t *testing.T) {
	cv := &canvas{}
	cv.setSize(1, 1)
	cv.beginFrame(0, 0, 1, 1, grayPalette(8), -1, false, DisposalRevert)
	paintRect(cv, []byte{2})
	cv.beginFrame(0, 0, 1, 1, grayPalette(8), -1, false, DisposalKeep)

	// Reverting past the first frame restores the cleared canvas.
	if got := cv.colors[0]; got != (color.RGBA{}) {
		t.Fatalf("pixel = %v, want transparent black", got)
	}
}

func TestCanvasConsecutiveReverts(t *testing.T) {
	cv := &canvas{}
	cv.setSize(1, 1)
	cv.beginFrame(0, 0, 1, 1, grayPalette(8), -1, false, DisposalKeep)
	paintRect(cv, []byte{1})

	cv.beginFrame(0, 0, 1, 1, grayPalette(8), -1, false, DisposalRevert)
	paintRect(cv, []byte{2})
	cv.beginFrame(0, 0, 1, 1, grayPalette(8), -1, false, DisposalRevert)
	paintRect(cv, []byte{3})
	cv.beginFrame(0, 0, 1, 1, grayPalette(8), -1, false, DisposalKeep)

	// Each revert snapshot was taken after the previous revert restored,
	// so both unwinds land on the original pixel.
	if got := cv.colors[0].R; got != 1 {
		t.Fatalf("pixel = %d, want 1", got)
	}
}

func TestCanvasOverrunDropped(t *testing.T) {
	cv := &canvas{}
	cv.setSize(2, 1)
	cv.beginFrame(0, 0, 2, 1, grayPalette(8), -1, false, DisposalKeep)
	paintRect(cv, []byte{1, 2, 3, 4, 5})

	if got := rowValues(t, cv, 0); got[0] != 1 || got[1] != 2 {
		t.Fatalf("row = %v, extra pixels leaked", got)
	}
}

func TestCanvasBadIndex(t *testing.T) {
	cv := &canvas{}
	cv.setSize(1, 1)
	cv.beginFrame(0, 0, 1, 1, grayPalette(2), -1, false, DisposalKeep)
	paintRect(cv, []byte{5})
	if !cv.badIndex {
		t.Fatal("badIndex not set for out-of-palette pixel")
	}
}

func TestCanvasZeroSizeFrame(t *testing.T) {
	cv := &canvas{}
	cv.setSize(2, 2)
	cv.beginFrame(0, 0, 0, 0, grayPalette(2), -1, false, DisposalKeep)
	if !cv.frameComplete() {
		t.Fatal("empty frame should be complete immediately")
	}
	cv.outputPixel(1)
	for i, c := range cv.colors {
		if c != (color.RGBA{}) {
			t.Fatalf("pixel %d painted by empty frame", i)
		}
	}
}
