package export

import "fmt"

// Error reports a failed export. Nothing is published when it is returned.
type Error struct {
	Kind    Kind
	BatchID string
	Op      string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("export %s of batch %s: %s: %v", e.Kind, e.BatchID, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
