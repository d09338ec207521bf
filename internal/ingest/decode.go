package ingest

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// DefaultEncodings is the order in which dataset encodings are attempted.
var DefaultEncodings = []string{"windows-1252", "utf-8"}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Bytes that windows-1252 leaves unassigned.
var cp1252Undefined = [256]bool{0x81: true, 0x8D: true, 0x8F: true, 0x90: true, 0x9D: true}

// Decode converts a dataset to text. A leading UTF-8 byte order mark selects
// UTF-8 outright; otherwise each encoding is tried in order and the first that
// accepts every byte of data wins. The name of the winning encoding is
// returned alongside the text.
func Decode(data []byte, encodings []string) (string, string, error) {
	if len(data) == 0 {
		return "", "", ErrEmptyDataset
	}
	if bytes.HasPrefix(data, utf8BOM) {
		rest := data[len(utf8BOM):]
		if !utf8.Valid(rest) {
			return "", "", fmt.Errorf("utf-8 with byte order mark: %w", ErrUndecodable)
		}
		return string(rest), "utf-8", nil
	}
	if len(encodings) == 0 {
		encodings = DefaultEncodings
	}
	for _, name := range encodings {
		text, ok, err := decodeAs(data, name)
		if err != nil {
			return "", "", err
		}
		if ok {
			return text, canonicalName(name), nil
		}
	}
	return "", "", ErrUndecodable
}

func decodeAs(data []byte, name string) (string, bool, error) {
	switch canonicalName(name) {
	case "utf-8":
		if !utf8.Valid(data) {
			return "", false, nil
		}
		return string(data), true, nil
	case "windows-1252":
		for _, b := range data {
			if cp1252Undefined[b] {
				return "", false, nil
			}
		}
		out, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return "", false, nil
		}
		return string(out), true, nil
	case "iso-8859-1":
		out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return "", false, nil
		}
		return string(out), true, nil
	}
	return "", false, fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
}

func canonicalName(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "utf-8", "utf8":
		return "utf-8"
	case "windows-1252", "cp1252", "1252":
		return "windows-1252"
	case "iso-8859-1", "latin1", "latin-1":
		return "iso-8859-1"
	}
	return name
}
