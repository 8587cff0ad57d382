package payload

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidCodeFormat = errors.New("invalid code format")
	ErrMalformedPayload  = errors.New("malformed payload")
)

// TimestampLayout is the fixed timestamp format embedded in every tracking
// string (YYYYMMDDHHMMSS).
const TimestampLayout = "20060102150405"

const fieldDelimiter = "-"

// Payload is the tracking record embedded in a barcode. Immutable once built.
type Payload struct {
	Location string
	Product  string
	Packer   string
	At       time.Time
}

func (p Payload) String() string {
	return strings.Join([]string{
		p.Location, p.Product, p.Packer, p.At.Format(TimestampLayout),
	}, fieldDelimiter)
}

// Encode builds the tracking string LOCATION-PRODUCT-PACKER-TIMESTAMP.
// Codes must be non-empty and must not contain the field delimiter.
func Encode(locationCode, productCode, packerCode string, at time.Time) (string, error) {
	for _, code := range []string{locationCode, productCode, packerCode} {
		if code == "" {
			return "", fmt.Errorf("%w: empty code", ErrInvalidCodeFormat)
		}
		if strings.Contains(code, fieldDelimiter) {
			return "", fmt.Errorf("%w: code %q contains delimiter", ErrInvalidCodeFormat, code)
		}
	}

	p := Payload{
		Location: locationCode,
		Product:  productCode,
		Packer:   packerCode,
		At:       at,
	}
	return p.String(), nil
}

// Decode splits a tracking string back into its four fields.
func Decode(s string) (Payload, error) {
	parts := strings.Split(s, fieldDelimiter)
	if len(parts) != 4 {
		return Payload{}, fmt.Errorf("%w: expected 4 fields, got %d", ErrMalformedPayload, len(parts))
	}

	for _, part := range parts[:3] {
		if part == "" {
			return Payload{}, fmt.Errorf("%w: empty field", ErrMalformedPayload)
		}
	}

	at, err := time.Parse(TimestampLayout, parts[3])
	if err != nil {
		return Payload{}, fmt.Errorf("%w: bad timestamp %q", ErrMalformedPayload, parts[3])
	}

	return Payload{
		Location: parts[0],
		Product:  parts[1],
		Packer:   parts[2],
		At:       at,
	}, nil
}
