// Package pdfutil reads back PDF sheets produced by the exporter.
package pdfutil

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

// PageCount returns the number of pages in the PDF held by r.
func PageCount(r io.ReaderAt, size int64) (int, error) {
	doc, err := pdf.NewReader(r, size)
	if err != nil {
		return 0, fmt.Errorf("new pdf reader: %w", err)
	}
	return doc.NumPage(), nil
}

// PageCountBytes is PageCount for an in-memory document.
func PageCountBytes(data []byte) (int, error) {
	return PageCount(bytes.NewReader(data), int64(len(data)))
}

// ExtractText returns the plain text of every page, one page per line group.
// Label sheets are image-only, so this is mostly empty; it is kept for
// inspecting arbitrary PDFs.
func ExtractText(data []byte) (string, error) {
	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("new pdf reader: %w", err)
	}
	var builder strings.Builder
	total := doc.NumPage()
	for page := 1; page <= total; page++ {
		p := doc.Page(page)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", page, err)
		}
		builder.WriteString(content)
		builder.WriteString("\n")
	}
	return builder.String(), nil
}
