// gifex extracts every frame of a GIF animation into PNG or QOI images, or
// into a single zstd-compressed raw RGBA dump for texture pipelines.
package main

import (
	"flag"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/nfnt/resize"

	"github.com/svanichkin/gifstream"
)

var errColor = color.New(color.FgRed)

func fail(err error) {
	errColor.Fprintln(os.Stderr, "gifex:", err)
	os.Exit(1)
}

func main() {
	format := flag.String("format", "png", "output format: png, qoi or raw")
	scale := flag.Float64("scale", 1, "scale factor applied to exported frames")
	topdown := flag.Bool("topdown", true, "export top-down rows (disable for bottom-up GPU dumps)")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: gifex [-format png|qoi|raw] [-scale f] [-topdown=false] input.gif")
		os.Exit(1)
	}
	if *format != "png" && *format != "qoi" && *format != "raw" {
		fail(fmt.Errorf("unknown format %q", *format))
	}

	input := flag.Arg(0)
	in, err := os.Open(input)
	if err != nil {
		fail(err)
	}

	dec, err := gifstream.NewDecoder(in)
	if err != nil {
		fail(err)
	}
	defer dec.Close()
	dec.SetFlipVertically(!*topdown)

	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	outDir := filepath.Join(filepath.Dir(input), base)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		fail(err)
	}

	fmt.Printf("%s: GIF%s, %dx%d\n", input, dec.Version(), dec.Width(), dec.Height())

	var dump *rawDump
	if *format == "raw" {
		dump = newRawDump(dec.Width(), dec.Height())
	}

	count := 0
	for {
		tok, err := dec.NextToken()
		if err != nil {
			fail(err)
		}
		switch tok {
		case gifstream.TokenImage:
			frame, err := dec.ReadImage()
			if err != nil {
				fail(err)
			}
			if dump != nil {
				dump.addFrame(frame)
			} else {
				name := filepath.Join(outDir, fmt.Sprintf("%s-%d.%s", base, frame.Index+1, *format))
				if err := exportFrame(name, frame, *format, *scale); err != nil {
					fail(err)
				}
			}
			fmt.Printf("  frame %d: delay %d cs\n", frame.Index+1, frame.DelayCS)
			count++

		case gifstream.TokenComment:
			text, err := dec.ReadComment()
			if err != nil {
				fail(err)
			}
			if text != "" {
				color.New(color.Faint).Printf("  comment: %s\n", text)
			}

		case gifstream.TokenEOF:
			if dump != nil {
				name := filepath.Join(outDir, base+".gifx")
				if err := dump.writeFile(name); err != nil {
					fail(err)
				}
			}
			color.Green("extracted %d frames to %s", count, outDir)
			return
		}
	}
}

// exportFrame writes one frame as a standalone image file.
func exportFrame(name string, frame *gifstream.Frame, format string, scale float64) error {
	var img image.Image = frame.RGBA()
	if scale != 1 {
		w := uint(float64(frame.Width)*scale + 0.5)
		img = resize.Resize(w, 0, img, resize.Lanczos3)
	}

	out, err := os.Create(name)
	if err != nil {
		return err
	}
	defer out.Close()

	switch format {
	case "png":
		return writePNG(out, toRGBA(img))
	case "qoi":
		return writeQOI(out, img)
	}
	return fmt.Errorf("unknown format %q", format)
}
