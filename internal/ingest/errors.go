package ingest

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyDataset is returned when the uploaded file has no bytes.
	ErrEmptyDataset = errors.New("dataset is empty")

	// ErrUndecodable is returned when no configured encoding decodes the
	// whole dataset.
	ErrUndecodable = errors.New("dataset encoding not recognised")

	// ErrMissingHeader is returned when the dataset has no header row.
	ErrMissingHeader = errors.New("dataset missing header row")

	// ErrUnknownEncoding is returned for an encoding name LabelDrop cannot
	// decode.
	ErrUnknownEncoding = errors.New("unknown encoding")
)

// IngestionError reports a batch whose dataset could not be read at all. No
// label records are created when it is returned.
type IngestionError struct {
	BatchID string
	Tried   []string
	Err     error
}

func (e *IngestionError) Error() string {
	if len(e.Tried) > 0 {
		return fmt.Sprintf("batch %s: tried %s: %v", e.BatchID, strings.Join(e.Tried, ", "), e.Err)
	}
	return fmt.Sprintf("batch %s: %v", e.BatchID, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// RowError describes why one dataset row produced no stored label.
type RowError struct {
	Line        int
	ProductCode string
	Stage       string
	Err         error
}

func (e *RowError) Error() string {
	if e.ProductCode != "" {
		return fmt.Sprintf("line %d (%s): %s: %v", e.Line, e.ProductCode, e.Stage, e.Err)
	}
	return fmt.Sprintf("line %d: %s: %v", e.Line, e.Stage, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }
