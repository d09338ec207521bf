package storage

import (
	"fmt"
	"path"
	"strings"
)

// Blob layout. Every path is namespaced by batch so concurrent batches never
// share a directory.

// DatasetPath is where a batch's uploaded CSV is kept.
func DatasetPath(batchID, filename string) string {
	return path.Join("datasets", batchID, safeName(filename, "dataset.csv"))
}

// ArtifactPath is where a supplied barcode image is kept.
func ArtifactPath(batchID, filename string) string {
	return path.Join("barcodes", batchID, safeName(filename, "barcode.png"))
}

// LabelImagePath is where a label's rendered PNG is kept.
func LabelImagePath(batchID, labelID string) string {
	return path.Join("labels", batchID, fmt.Sprintf("label_%s.png", labelID))
}

// ExportPath is where a batch export of the given extension is published.
func ExportPath(batchID, ext string) string {
	return path.Join("exports", fmt.Sprintf("%s.%s", batchID, strings.TrimPrefix(ext, ".")))
}

func safeName(name, fallback string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == ".." || name == "" {
		return fallback
	}
	return name
}
