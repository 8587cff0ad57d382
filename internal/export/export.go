// Package export persists compiled labels when no printer is reachable:
// raw TSPL command files for manual resend, or PNG rasters at the printer's
// fixed 203 dpi resolution (one pixel per dot).
package export

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"labelpress/internal/label"
	"labelpress/internal/symbol"
)

// Commands serializes the instruction stream verbatim. The result is
// byte-identical to the transport frame, so the file can be resent manually.
func Commands(stream label.InstructionStream) []byte {
	return stream.Bytes()
}

// WriteCommandFile writes the command frame to <dir>/<name>.tspl.
func WriteCommandFile(dir, name string, stream label.InstructionStream) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	path := filepath.Join(dir, name+".tspl")
	if err := os.WriteFile(path, Commands(stream), 0o644); err != nil {
		return "", fmt.Errorf("failed to write command file: %w", err)
	}
	return path, nil
}

// Image rasterizes the compiled layout to a monochrome-on-white bitmap.
// Deterministic and independent of any transport state.
func Image(spec label.Spec, sym *symbol.Symbol, text label.TextFields) (image.Image, error) {
	layout, err := label.Plan(spec, sym, text, 1)
	if err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, spec.WidthDots(), spec.HeightDots()))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	drawSymbol(img, layout)
	for _, t := range layout.Texts {
		drawText(img, t)
	}

	return img, nil
}

// WriteImageFile renders the layout and writes <dir>/<name>.png.
func WriteImageFile(dir, name string, spec label.Spec, sym *symbol.Symbol, text label.TextFields) (string, error) {
	img, err := Image(spec, sym, text)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	path := filepath.Join(dir, name+".png")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}
	defer f.Close()

	if err := EncodePNG(f, img); err != nil {
		return "", err
	}
	return path, nil
}

func EncodePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return nil
}

func drawSymbol(img *image.RGBA, layout *label.Layout) {
	sym := layout.Symbol
	switch sym.Kind {
	case symbol.SymbologyQR:
		drawQR(img, sym, layout.SymbolX, layout.SymbolY)
	default:
		drawBars(img, sym, layout.SymbolX, layout.SymbolY)
	}
}

// drawBars renders the alternating bar/space width sequence, bar first,
// after the leading quiet zone.
func drawBars(img *image.RGBA, sym *symbol.Symbol, x0, y0 int) {
	x := x0 + 10*symbol.NarrowDots
	bar := true
	for _, w := range sym.Bars {
		wDots := w * symbol.NarrowDots
		if bar {
			fillRect(img, x, y0, wDots, symbol.BarHeightDots)
		}
		x += wDots
		bar = !bar
	}
}

func drawQR(img *image.RGBA, sym *symbol.Symbol, x0, y0 int) {
	cell := symbol.CellWidthDots
	for row, cols := range sym.Matrix {
		for col, set := range cols {
			if set {
				fillRect(img, x0+col*cell, y0+row*cell, cell, cell)
			}
		}
	}
}

func fillRect(img *image.RGBA, x, y, w, h int) {
	r := image.Rect(x, y, x+w, y+h)
	draw.Draw(img, r, image.NewUniform(color.Black), image.Point{}, draw.Src)
}

func drawText(img *image.RGBA, t label.TextPlacement) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(t.X, t.Y+basicfont.Face7x13.Ascent),
	}
	d.DrawString(t.Text)
}
