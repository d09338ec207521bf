package barcode

import "strings"

// Symbology is a barcode encoding scheme.
type Symbology string

const (
	EAN13   Symbology = "ean13"
	EAN8    Symbology = "ean8"
	EAN14   Symbology = "ean14"
	Code128 Symbology = "code128"
)

// SymbologyFor picks the symbology from the length of the trimmed code.
func SymbologyFor(code string) Symbology {
	switch len(strings.TrimSpace(code)) {
	case 13:
		return EAN13
	case 8:
		return EAN8
	case 14:
		return EAN14
	default:
		return Code128
	}
}
