package symbol

import (
	"fmt"
)

// Code128 bar/space width patterns indexed by symbol value. Each pattern is
// three bars and three spaces, alternating bar first, eleven modules total.
var code128Patterns = [107]string{
	"212222", "222122", "222221", "121223", "121322", "131222", "122213",
	"122312", "132212", "221213", "221312", "231212", "112232", "122132",
	"122231", "113222", "123122", "123221", "223211", "221132", "221231",
	"213212", "223112", "312131", "311222", "321122", "321221", "312212",
	"322112", "322211", "212123", "212321", "232121", "111323", "131123",
	"131321", "112313", "132113", "132311", "211313", "231113", "231311",
	"112133", "112331", "132131", "113123", "113321", "133121", "313121",
	"211331", "231131", "213113", "213311", "213131", "311123", "311321",
	"331121", "312113", "312311", "332111", "314111", "221411", "431111",
	"111224", "111422", "121124", "121421", "141122", "141221", "112214",
	"112412", "122114", "122411", "142112", "142211", "241211", "221114",
	"413111", "241112", "134111", "111242", "121142", "121241", "114212",
	"124112", "124211", "411212", "421112", "421211", "212141", "214121",
	"412121", "111143", "111341", "131141", "114113", "114311", "411113",
	"411311", "113141", "114131", "311141", "411131", "211412", "211214",
	"211232", "2331112",
}

const (
	code128StartB = 104
	code128Stop   = 106
)

// code128ValueB maps a character to its Code 128 subset B symbol value.
// Subset B covers ASCII 32..127; values 95..100 above DEL are control
// values (FNC/shift) that never appear in payload data.
func code128ValueB(c byte) (int, error) {
	if c < 32 || c > 126 {
		return 0, fmt.Errorf("%w: %q not in Code 128 subset B", ErrUnencodableCharacter, c)
	}
	return int(c) - 32, nil
}

// renderCode128 encodes data in Code 128 subset B: start code, data symbols,
// modulo-103 checksum, stop pattern.
func renderCode128(data string) (*Symbol, error) {
	if data == "" {
		return nil, fmt.Errorf("%w: empty data", ErrUnencodableCharacter)
	}

	values := make([]int, 0, len(data)+2)
	values = append(values, code128StartB)

	checksum := code128StartB
	for i := 0; i < len(data); i++ {
		v, err := code128ValueB(data[i])
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		checksum += v * (i + 1)
	}
	values = append(values, checksum%103, code128Stop)

	var bars []int
	modules := 0
	for _, v := range values {
		for _, d := range code128Patterns[v] {
			w := int(d - '0')
			bars = append(bars, w)
			modules += w
		}
	}

	widthModules := modules + 2*code128QuietModules

	return &Symbol{
		Kind:          SymbologyCode128,
		Data:          data,
		Bars:          bars,
		WidthModules:  widthModules,
		HeightModules: 1,
		WidthDots:     widthModules * NarrowDots,
		HeightDots:    BarHeightDots,
	}, nil
}
