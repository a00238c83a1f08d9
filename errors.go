package nodegraph

import (
	"errors"
	"fmt"

	"github.com/hupe1980/nodegraph/internal/checkpoint"
	"github.com/hupe1980/nodegraph/query"
	"github.com/hupe1980/nodegraph/valueindex"
)

var (
	// ErrNotFound is returned when a node, node type or checkpoint does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnknownType is returned when a node type has not been defined.
	ErrUnknownType = errors.New("unknown node type")
	// ErrInvalidArgument is returned for malformed input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnsupported is returned when an index cannot answer a request.
	ErrUnsupported = errors.New("unsupported")
	// ErrIntegrity is returned when an index disagrees with itself or with the
	// node table. The store must be restored or rebuilt.
	ErrIntegrity = errors.New("integrity violation")
	// ErrCorrupt is returned when a checkpoint cannot be read.
	ErrCorrupt = errors.New("corrupt checkpoint")
	// ErrIdentityMismatch is returned when a checkpoint belongs to another store.
	ErrIdentityMismatch = errors.New("identity mismatch")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store closed")
)

// ErrTypeMismatch indicates a property value that cannot be converted to the
// declared kind.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrTypeMismatch struct {
	Property string
	Kind     valueindex.Kind
	cause    error
}

func (e *ErrTypeMismatch) Error() string {
	return fmt.Sprintf("property %q: expected %s", e.Property, e.Kind)
}

func (e *ErrTypeMismatch) Unwrap() []error { return []error{ErrInvalidArgument, e.cause} }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, valueindex.ErrIntegrity):
		return fmt.Errorf("%w: %w", ErrIntegrity, err)
	case errors.Is(err, valueindex.ErrIdentityMismatch):
		return fmt.Errorf("%w: %w", ErrIdentityMismatch, err)
	case errors.Is(err, valueindex.ErrCorrupt), errors.Is(err, checkpoint.ErrCorrupt):
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	case errors.Is(err, checkpoint.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, valueindex.ErrUnsupportedQuery), errors.Is(err, query.ErrNoResolver):
		return fmt.Errorf("%w: %w", ErrUnsupported, err)
	case errors.Is(err, valueindex.ErrTypeMismatch), errors.Is(err, query.ErrUnknownProperty):
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return err
}
