package label

import (
	"errors"
	"fmt"

	"labelpress/internal/symbol"
)

var ErrInvalidLabelSpec = errors.New("invalid label spec")

// Documented inclusive ranges for the TSC TE200 command set.
const (
	DensityMin = 0
	DensityMax = 15
	SpeedMin   = 1
	SpeedMax   = 6
)

// Spec is the label geometry and print configuration. Values are validated
// eagerly; out-of-range settings are rejected, never clamped.
type Spec struct {
	WidthMM   float64          `yaml:"width_mm" json:"width_mm"`
	HeightMM  float64          `yaml:"height_mm" json:"height_mm"`
	GapMM     float64          `yaml:"gap_mm" json:"gap_mm"`
	Symbology symbol.Symbology `yaml:"symbology" json:"symbology"`
	Density   int              `yaml:"density" json:"density"`
	Speed     int              `yaml:"speed" json:"speed"`
}

// TextFields are the human-readable names printed beside the symbol.
type TextFields struct {
	Product  string
	Location string
	Packer   string
}

func (s Spec) Validate() error {
	if s.WidthMM <= 0 || s.HeightMM <= 0 {
		return fmt.Errorf("%w: label size %.1fx%.1f mm", ErrInvalidLabelSpec, s.WidthMM, s.HeightMM)
	}
	if s.GapMM < 0 {
		return fmt.Errorf("%w: negative gap %.1f mm", ErrInvalidLabelSpec, s.GapMM)
	}
	if s.Density < DensityMin || s.Density > DensityMax {
		return fmt.Errorf("%w: density %d outside %d..%d", ErrInvalidLabelSpec, s.Density, DensityMin, DensityMax)
	}
	if s.Speed < SpeedMin || s.Speed > SpeedMax {
		return fmt.Errorf("%w: speed %d outside %d..%d", ErrInvalidLabelSpec, s.Speed, SpeedMin, SpeedMax)
	}
	if s.Symbology != symbol.SymbologyCode128 && s.Symbology != symbol.SymbologyQR {
		return fmt.Errorf("%w: symbology %q", ErrInvalidLabelSpec, s.Symbology)
	}
	return nil
}

// WidthDots and HeightDots convert the geometry to printer dots at the
// fixed 203 dpi resolution (8 dots per mm).
func (s Spec) WidthDots() int  { return int(s.WidthMM * symbol.DotsPerMM) }
func (s Spec) HeightDots() int { return int(s.HeightMM * symbol.DotsPerMM) }
