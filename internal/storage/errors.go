package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by a Backend that has nothing persisted yet.
	ErrNotFound     = errors.New("store not found")
	ErrTaskNotFound = errors.New("task not found")
	ErrDuplicateID  = errors.New("duplicate task id")
	ErrEmptySummary = errors.New("summary is empty")
	ErrInvalidID    = errors.New("invalid task id")
	ErrBadStatus    = errors.New("unknown status")
)

// CorruptStoreError reports a persisted record that could not be decoded.
// Line is 1-based; for the SQLite backend it is the row position.
type CorruptStoreError struct {
	Path string
	Line int
	Err  error
}

func (e *CorruptStoreError) Error() string {
	return fmt.Sprintf("corrupt store %s: line %d: %v", e.Path, e.Line, e.Err)
}

func (e *CorruptStoreError) Unwrap() error { return e.Err }

type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// SchemaError reports a filter on a field tasks do not have.
type SchemaError struct {
	Field string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("unknown task field %q", e.Field)
}
