// Package model contains the record types shared across ingestion, rendering,
// storage and export.
package model

import (
	"time"
)

// Batch is one uploaded dataset plus the labels derived from it. Reprocessing a
// batch discards every LabelRecord it owns before new ones are created.
type Batch struct {
	ID          string `json:"id"`
	DatasetName string `json:"datasetName"`
	// DatasetPath is the blob path of the uploaded CSV.
	DatasetPath string    `json:"-"`
	Processed   bool      `json:"processed"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// LabelRecord holds the fields of one dataset row and a reference to its
// rendered image. Position preserves row order for listing and export.
type LabelRecord struct {
	ID           string `json:"id"`
	BatchID      string `json:"batchId"`
	Position     int    `json:"position"`
	ProductName  string `json:"productName"`
	MRP          string `json:"mrp"`
	Quality      string `json:"quality"`
	Size         string `json:"size"`
	NetQuantity  string `json:"netQuantity"`
	ProductCode  string `json:"productCode"`
	DesignColor  string `json:"designColor"`
	MfgMonth     string `json:"mfgMonth"`
	MfgYear      string `json:"mfgYear"`
	GTIN         string `json:"gtin"`
	Manufacturer string `json:"manufacturer"`
	// ImagePath is empty until the label has been rendered successfully.
	ImagePath string    `json:"imagePath,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// HasImage reports whether a rendered image was stored for the record.
func (l *LabelRecord) HasImage() bool {
	return l.ImagePath != ""
}

// MfgDate joins month and year the way the label prints them.
func (l *LabelRecord) MfgDate() string {
	switch {
	case l.MfgMonth == "":
		return l.MfgYear
	case l.MfgYear == "":
		return l.MfgMonth
	}
	return l.MfgMonth + " " + l.MfgYear
}

// BarcodeArtifact is a pre-supplied barcode raster scoped to one batch.
type BarcodeArtifact struct {
	ID       string `json:"id"`
	BatchID  string `json:"batchId"`
	Filename string `json:"filename"`
	// Code is the lower-cased identifier extracted from Filename.
	Code      string    `json:"code"`
	Path      string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// RowStatus is the outcome of processing one dataset row.
type RowStatus string

const (
	RowRendered RowStatus = "rendered"
	RowFailed   RowStatus = "failed"
)

// RowOutcome reports what happened to a single dataset row during ingestion.
type RowOutcome struct {
	Line        int       `json:"line"`
	LabelID     string    `json:"labelId,omitempty"`
	ProductCode string    `json:"productCode"`
	Status      RowStatus `json:"status"`
	Barcode     bool      `json:"barcode"`
	Message     string    `json:"message,omitempty"`
}
