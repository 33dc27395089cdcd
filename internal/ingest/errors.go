package ingest

import (
	"errors"
	"fmt"
)

// ErrIdentityConflict reports that another run inserted the same identity
// first. It is benign: the record is counted as skipped.
var ErrIdentityConflict = errors.New("identity conflict")

// MalformedRecordError is returned by the normalizer for a record that
// cannot be stored.
type MalformedRecordError struct {
	Source   string
	SourceID string
	Field    string
	Reason   string
}

func (e *MalformedRecordError) Error() string {
	id := e.SourceID
	if id == "" {
		id = "-"
	}
	return fmt.Sprintf("malformed record %s/%s: %s %s", e.Source, id, e.Field, e.Reason)
}

// AdapterUnavailableError wraps a source-level fetch failure. The source's
// remaining work for the run is abandoned.
type AdapterUnavailableError struct {
	Source string
	Err    error
}

func (e *AdapterUnavailableError) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Err)
}

func (e *AdapterUnavailableError) Unwrap() error { return e.Err }

// PersistenceError wraps an unexpected datastore failure for one record.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// errorKind labels an error for the run log.
func errorKind(err error) string {
	var mal *MalformedRecordError
	var unavail *AdapterUnavailableError
	var pers *PersistenceError
	switch {
	case errors.As(err, &mal):
		return "malformed_record"
	case errors.As(err, &unavail):
		return "adapter_unavailable"
	case errors.As(err, &pers):
		return "persistence"
	case errors.Is(err, ErrIdentityConflict):
		return "identity_conflict"
	default:
		return "unknown"
	}
}
