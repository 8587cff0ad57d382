package label

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"labelpress/internal/symbol"
)

// Layout constants in printer dots. The TE200 built-in fonts have fixed
// cell sizes: font "2" is 12x20 dots, font "3" is 16x24 dots.
const (
	textOriginX   = 10
	productY      = 10
	symbolOriginY = 40
	textGapY      = 8
	lineGapY      = 25

	productFont       = "3"
	detailFont        = "2"
	productFontWidth  = 16
	productFontHeight = 24
	detailFontWidth   = 12
	detailFontHeight  = 20
)

// TextPlacement is one positioned, truncated text line.
type TextPlacement struct {
	Text       string
	X, Y       int
	Font       string
	FontWidth  int
	FontHeight int
}

// Layout is the resolved geometry of one label: where the symbol and each
// text line land, in printer dots. Compile formats it as TSPL; the image
// exporter rasterizes it. Both paths therefore place content identically.
type Layout struct {
	Spec    Spec
	Symbol  *symbol.Symbol
	Copies  int
	SymbolX int
	SymbolY int
	Texts   []TextPlacement
}

// Plan validates the spec and resolves the label layout. Deterministic.
func Plan(spec Spec, sym *symbol.Symbol, text TextFields, copies int) (*Layout, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if sym == nil {
		return nil, fmt.Errorf("%w: no symbol", ErrInvalidLabelSpec)
	}
	if copies <= 0 {
		copies = 1
	}

	symbolX := (spec.WidthDots() - sym.WidthDots) / 2
	if symbolX < 0 {
		symbolX = 0
	}

	symbolBottom := symbolOriginY + sym.HeightDots
	if sym.Kind == symbol.SymbologyCode128 {
		// Readable mode prints the payload under the bars.
		symbolBottom += 24
	}
	destY := symbolBottom + textGapY

	texts := []TextPlacement{
		placeText(spec, productFont, textOriginX, productY, productFontWidth, productFontHeight,
			"Product: "+text.Product),
		placeText(spec, detailFont, textOriginX, destY, detailFontWidth, detailFontHeight,
			"Dest: "+text.Location),
		placeText(spec, detailFont, textOriginX, destY+lineGapY, detailFontWidth, detailFontHeight,
			"Packed: "+text.Packer),
	}

	return &Layout{
		Spec:    spec,
		Symbol:  sym,
		Copies:  copies,
		SymbolX: symbolX,
		SymbolY: symbolOriginY,
		Texts:   texts,
	}, nil
}

// placeText truncates at the last character that fits the printable width.
// Cut on rune boundaries: the font cell is per glyph, and a byte cut would
// leave a broken UTF-8 fragment inside the quoted TEXT argument.
// Single-line primitive: never wraps.
func placeText(spec Spec, font string, x, y, charWidth, charHeight int, content string) TextPlacement {
	maxChars := (spec.WidthDots() - 2*x) / charWidth
	if maxChars < 0 {
		maxChars = 0
	}
	if utf8.RuneCountInString(content) > maxChars {
		runes := []rune(content)
		content = string(runes[:maxChars])
	}
	return TextPlacement{
		Text:       content,
		X:          x,
		Y:          y,
		Font:       font,
		FontWidth:  charWidth,
		FontHeight: charHeight,
	}
}

// InstructionStream is an immutable ordered sequence of TSPL command lines.
type InstructionStream struct {
	lines []string
}

func (s InstructionStream) Lines() []string {
	out := make([]string, len(s.lines))
	copy(out, s.lines)
	return out
}

// Bytes is the exact frame the transport writes to the printer.
func (s InstructionStream) Bytes() []byte {
	return []byte(strings.Join(s.lines, "\n") + "\n")
}

func (s InstructionStream) String() string {
	return string(s.Bytes())
}

// Compile translates geometry, symbol and text into the TE200 instruction
// stream. Deterministic: identical inputs yield byte-identical output.
func Compile(spec Spec, sym *symbol.Symbol, text TextFields, copies int) (InstructionStream, error) {
	layout, err := Plan(spec, sym, text, copies)
	if err != nil {
		return InstructionStream{}, err
	}

	lines := []string{
		fmt.Sprintf("SIZE %.0f mm,%.0f mm", spec.WidthMM, spec.HeightMM),
		fmt.Sprintf("GAP %.0f mm,0 mm", spec.GapMM),
		fmt.Sprintf("SPEED %d", spec.Speed),
		fmt.Sprintf("DENSITY %d", spec.Density),
		"DIRECTION 1,0",
		"CLS",
	}

	lines = append(lines, textCommand(layout.Texts[0]))
	lines = append(lines, symbolCommand(layout))
	lines = append(lines, textCommand(layout.Texts[1]))
	lines = append(lines, textCommand(layout.Texts[2]))
	lines = append(lines, fmt.Sprintf("PRINT %d,1", layout.Copies))

	return InstructionStream{lines: lines}, nil
}

func symbolCommand(layout *Layout) string {
	sym := layout.Symbol
	switch sym.Kind {
	case symbol.SymbologyQR:
		return fmt.Sprintf(`QRCODE %d,%d,M,%d,A,0,"%s"`,
			layout.SymbolX, layout.SymbolY, symbol.CellWidthDots, escapeTSPL(sym.Data))
	default:
		// Readable mode 2 prints the payload centered under the bars.
		return fmt.Sprintf(`BARCODE %d,%d,"128",%d,2,0,%d,%d,"%s"`,
			layout.SymbolX, layout.SymbolY, sym.HeightDots,
			symbol.NarrowDots, symbol.WideDots, escapeTSPL(sym.Data))
	}
}

func textCommand(p TextPlacement) string {
	return fmt.Sprintf(`TEXT %d,%d,"%s",0,1,1,"%s"`, p.X, p.Y, p.Font, escapeTSPL(p.Text))
}

func escapeTSPL(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, "\r", `\r`)
	s = strings.ReplaceAll(s, "\t", `\t`)
	return s
}
