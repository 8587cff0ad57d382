package payload_test

import (
	"errors"
	"testing"
	"time"

	"labelpress/internal/payload"
)

func TestEncodeProducesFixedFormat(t *testing.T) {
	at := time.Date(2024, 1, 15, 14, 30, 22, 0, time.UTC)
	s, err := payload.Encode("LOC01", "BAG01", "PKR03", at)
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if s != "LOC01-BAG01-PKR03-20240115143022" {
		t.Fatalf("unexpected tracking string: %q", s)
	}
}

func TestEncodeRejectsBadCodes(t *testing.T) {
	at := time.Date(2024, 1, 15, 14, 30, 22, 0, time.UTC)

	cases := []struct {
		name     string
		location string
		product  string
		packer   string
	}{
		{"empty location", "", "BAG01", "PKR03"},
		{"empty product", "LOC01", "", "PKR03"},
		{"empty packer", "LOC01", "BAG01", ""},
		{"hyphen in location", "LOC-01", "BAG01", "PKR03"},
		{"hyphen in product", "LOC01", "BAG-01", "PKR03"},
		{"hyphen in packer", "LOC01", "BAG01", "PKR-03"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := payload.Encode(tc.location, tc.product, tc.packer, at)
			if !errors.Is(err, payload.ErrInvalidCodeFormat) {
				t.Fatalf("expected ErrInvalidCodeFormat, got %v", err)
			}
		})
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	at := time.Date(2024, 1, 15, 14, 30, 22, 0, time.UTC)
	s, err := payload.Encode("LOC01", "BAG01", "PKR03", at)
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}

	p, err := payload.Decode(s)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if p.Location != "LOC01" || p.Product != "BAG01" || p.Packer != "PKR03" {
		t.Fatalf("unexpected fields: %+v", p)
	}
	if !p.At.Equal(at) {
		t.Fatalf("timestamp mismatch: got %v want %v", p.At, at)
	}
	if p.String() != s {
		t.Fatalf("String() mismatch: got %q want %q", p.String(), s)
	}
}

func TestDecodeVariableWidthCodes(t *testing.T) {
	p, err := payload.Decode("WAREHOUSE7-X-PACKER0042-20231201080000")
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if p.Location != "WAREHOUSE7" || p.Product != "X" || p.Packer != "PACKER0042" {
		t.Fatalf("unexpected fields: %+v", p)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"too few fields", "LOC01-BAG01-20240115143022"},
		{"too many fields", "LOC01-BAG01-PKR03-EXTRA-20240115143022"},
		{"empty string", ""},
		{"short timestamp", "LOC01-BAG01-PKR03-20240115"},
		{"non-numeric timestamp", "LOC01-BAG01-PKR03-2024011514302X"},
		{"empty field", "LOC01--PKR03-20240115143022"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := payload.Decode(tc.in)
			if !errors.Is(err, payload.ErrMalformedPayload) {
				t.Fatalf("expected ErrMalformedPayload, got %v", err)
			}
		})
	}
}
