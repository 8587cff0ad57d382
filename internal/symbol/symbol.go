package symbol

import (
	"errors"
	"fmt"
)

var (
	ErrUnencodableCharacter   = errors.New("unencodable character")
	ErrPayloadTooLong         = errors.New("payload too long")
	ErrSymbolExceedsLabelArea = errors.New("symbol exceeds label area")
)

type Symbology string

const (
	SymbologyCode128 Symbology = "code128"
	SymbologyQR      Symbology = "qr"
)

// Target printer model geometry (TSC TE200, 203 dpi).
const (
	DotsPerMM = 8.0
	MarginMM  = 2.0
)

// Default symbol scaling in printer dots. Narrow is the 1D narrow bar
// width, CellWidth the QR cell size, BarHeightDots the 1D bar height.
const (
	NarrowDots    = 2
	WideDots      = 2
	CellWidthDots = 4
	BarHeightDots = 80
)

// Quiet zones in modules, per symbology standard.
const (
	code128QuietModules = 10
	qrQuietModules      = 4
)

// Symbol is the rendered representation of one payload: a bar/space width
// sequence for Code128 or a boolean module matrix for QR. Dimensions are in
// printer dots at the default scaling above.
type Symbol struct {
	Kind Symbology
	Data string

	// Code128: alternating bar/space widths in modules, bar first.
	Bars []int

	// QR: module matrix including the quiet-zone margin.
	Matrix    [][]bool
	QRVersion int

	WidthModules  int
	HeightModules int
	WidthDots     int
	HeightDots    int
}

func ParseSymbology(s string) (Symbology, error) {
	switch Symbology(s) {
	case SymbologyCode128, SymbologyQR:
		return Symbology(s), nil
	default:
		return "", fmt.Errorf("unsupported symbology: %q", s)
	}
}

// Render encodes data as the requested symbology and verifies the result
// fits the label's printable area (label size minus a fixed margin per side).
func Render(data string, kind Symbology, widthMM, heightMM float64) (*Symbol, error) {
	var (
		sym *Symbol
		err error
	)

	switch kind {
	case SymbologyCode128:
		sym, err = renderCode128(data)
	case SymbologyQR:
		sym, err = renderQR(data)
	default:
		return nil, fmt.Errorf("unsupported symbology: %q", kind)
	}
	if err != nil {
		return nil, err
	}

	if err := sym.fitCheck(widthMM, heightMM); err != nil {
		return nil, err
	}
	return sym, nil
}

func (s *Symbol) fitCheck(widthMM, heightMM float64) error {
	printableW := int((widthMM - 2*MarginMM) * DotsPerMM)
	printableH := int((heightMM - 2*MarginMM) * DotsPerMM)

	if s.WidthDots > printableW || s.HeightDots > printableH {
		return fmt.Errorf("%w: symbol %dx%d dots, printable area %dx%d dots",
			ErrSymbolExceedsLabelArea, s.WidthDots, s.HeightDots, printableW, printableH)
	}
	return nil
}
