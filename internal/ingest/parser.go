package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dharsanguruparan/LabelDrop/internal/model"
)

// Recognised dataset columns.
const (
	ColProductName = "ProductName"
	ColMRP         = "MRP"
	ColQuality     = "Quality"
	ColSize        = "Size"
	ColNetQuantity = "Net Quantity"
	ColProductCode = "Product Code"
	ColDesignColor = "Design / Color"
	ColMfgDate     = "Mth & Year of Mfg."
	ColGTINs       = "GTINs"
	ColGTIN        = "GTIN"
)

// Row is one data row keyed by header name.
type Row struct {
	Line int
	Data map[string]string
}

// Get returns the value of column, or "" when the dataset has no such column.
func (r *Row) Get(column string) string {
	return r.Data[column]
}

// IsEmpty reports whether every cell of the row is blank.
func (r *Row) IsEmpty() bool {
	for _, v := range r.Data {
		if v != "" {
			return false
		}
	}
	return true
}

// Parse reads decoded CSV text into rows. Header names and cells are trimmed,
// short rows are padded with "" and blank rows are skipped.
func Parse(text string) ([]string, []*Row, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, ErrMissingHeader
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	if allBlank(header) {
		return nil, nil, ErrMissingHeader
	}

	var rows []*Row
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return header, rows, fmt.Errorf("read row: %w", err)
		}
		line, _ := r.FieldPos(0)
		row := &Row{Line: line, Data: make(map[string]string, len(header))}
		for i, name := range header {
			if name == "" {
				continue
			}
			if i < len(record) {
				row.Data[name] = strings.TrimSpace(record[i])
			} else {
				row.Data[name] = ""
			}
		}
		if row.IsEmpty() {
			continue
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

// Record maps a row onto a label record carrying the given manufacturer
// block. Identity, batch and position are left for the caller.
func Record(row *Row, manufacturer string) model.LabelRecord {
	rec := model.LabelRecord{
		ProductName:  row.Get(ColProductName),
		MRP:          row.Get(ColMRP),
		Quality:      row.Get(ColQuality),
		Size:         row.Get(ColSize),
		NetQuantity:  row.Get(ColNetQuantity),
		ProductCode:  row.Get(ColProductCode),
		DesignColor:  row.Get(ColDesignColor),
		GTIN:         row.Get(ColGTINs),
		Manufacturer: manufacturer,
	}
	if rec.GTIN == "" {
		rec.GTIN = row.Get(ColGTIN)
	}
	rec.MfgMonth, rec.MfgYear = SplitMfgDate(row.Get(ColMfgDate))
	return rec
}

// SplitMfgDate splits "Month Year" into its first two whitespace-separated
// tokens. Missing tokens are "".
func SplitMfgDate(s string) (month, year string) {
	parts := strings.Fields(s)
	if len(parts) > 0 {
		month = parts[0]
	}
	if len(parts) > 1 {
		year = parts[1]
	}
	return month, year
}

func allBlank(fields []string) bool {
	for _, f := range fields {
		if f != "" {
			return false
		}
	}
	return true
}
