package valueindex

import (
	"errors"
	"fmt"
)

var (
	// ErrIntegrity is returned when the internal structures of an index disagree.
	// It is never recoverable; the owning store must rebuild or restore the index.
	ErrIntegrity = errors.New("index integrity violation")

	// ErrIdentityMismatch is returned when a checkpoint was written for a
	// different durability file than the one expected by the caller.
	ErrIdentityMismatch = errors.New("durability identity mismatch")

	// ErrCorrupt is returned when a checkpoint record fails verification.
	ErrCorrupt = errors.New("index state corrupt")

	// ErrUnsupportedQuery is returned when an index is asked for a query its
	// value type cannot answer (e.g. ordering over an unordered type).
	ErrUnsupportedQuery = errors.New("query not supported by index")

	// ErrTypeMismatch is returned when a query constant cannot be converted to
	// the value type of the index.
	ErrTypeMismatch = errors.New("value type mismatch")
)

// IntegrityError describes a cross-structure desynchronization inside an index.
//
// It unwraps to ErrIntegrity.
type IntegrityError struct {
	Op     string
	ID     uint32
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s: %s id %d: %s", ErrIntegrity, e.Op, e.ID, e.Reason)
}

func (e *IntegrityError) Unwrap() error { return ErrIntegrity }

// UnsupportedQueryError names the query and value type that were rejected.
//
// It unwraps to ErrUnsupportedQuery.
type UnsupportedQueryError struct {
	Query QueryType
	Type  string
}

func (e *UnsupportedQueryError) Error() string {
	return fmt.Sprintf("%s: %s on %s", ErrUnsupportedQuery, e.Query, e.Type)
}

func (e *UnsupportedQueryError) Unwrap() error { return ErrUnsupportedQuery }

func integrity(op string, id uint32, reason string) error {
	return &IntegrityError{Op: op, ID: id, Reason: reason}
}
