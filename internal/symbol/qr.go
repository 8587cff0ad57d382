package symbol

import (
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// QR character capacities at error-correction level M, versions 1..40,
// from the QR standard capacity tables.
var (
	qrCapacityAlnumM = [40]int{
		20, 38, 61, 90, 122, 154, 178, 221, 262, 311,
		366, 419, 483, 528, 600, 656, 734, 816, 909, 970,
		1035, 1134, 1248, 1326, 1451, 1542, 1637, 1732, 1839, 1994,
		2113, 2238, 2369, 2506, 2632, 2780, 2894, 3054, 3220, 3391,
	}
	qrCapacityByteM = [40]int{
		14, 26, 42, 62, 84, 106, 122, 152, 180, 213,
		251, 287, 331, 362, 412, 450, 504, 560, 624, 666,
		711, 779, 857, 911, 997, 1059, 1125, 1190, 1264, 1370,
		1452, 1538, 1628, 1722, 1809, 1911, 1989, 2099, 2213, 2331,
	}
)

const qrAlnumCharset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ $%*+-./:"

func qrIsAlnum(data string) bool {
	for _, r := range data {
		if !strings.ContainsRune(qrAlnumCharset, r) {
			return false
		}
	}
	return true
}

// QRMinVersion returns the smallest QR version whose level-M capacity holds
// data, or ErrPayloadTooLong past version 40.
func QRMinVersion(data string) (int, error) {
	table := &qrCapacityByteM
	if qrIsAlnum(data) {
		table = &qrCapacityAlnumM
	}
	for v, capacity := range table {
		if len(data) <= capacity {
			return v + 1, nil
		}
	}
	return 0, fmt.Errorf("%w: %d characters exceed QR version 40 level M capacity",
		ErrPayloadTooLong, len(data))
}

// renderQR encodes data at error-correction level M with the minimum
// version that fits. The returned matrix includes the quiet-zone margin.
func renderQR(data string) (*Symbol, error) {
	if _, err := QRMinVersion(data); err != nil {
		return nil, err
	}

	q, err := qrcode.New(data, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("qr encoding failed: %w", err)
	}

	matrix := q.Bitmap()
	side := len(matrix)

	return &Symbol{
		Kind:          SymbologyQR,
		Data:          data,
		Matrix:        matrix,
		QRVersion:     q.VersionNumber,
		WidthModules:  side,
		HeightModules: side,
		WidthDots:     side * CellWidthDots,
		HeightDots:    side * CellWidthDots,
	}, nil
}
