package storage

import (
	"database/sql"
	"errors"
	"fmt"
)

// Sentinel errors for the storage layer: a small set of sentinels,
// wrapped with operation context via fmt.Errorf("%s: %w", ...), so callers
// can errors.Is against the sentinel regardless of which operation raised
// it.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidID          = errors.New("invalid id")
	ErrConnectionClosed   = errors.New("connection closed")
	ErrSchemaMismatch     = errors.New("schema mismatch")
	ErrTenantUnauthorized = errors.New("tenant unauthorized")
	ErrInvariantViolation = errors.New("invariant violation")
)

// TransientError marks a driver error the hosted backend should retry.
// PermanentDriverError marks one it should not, or one a transient error
// became after retries were exhausted.
type TransientError struct{ Err error }

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

type PermanentDriverError struct{ Err error }

func (e *PermanentDriverError) Error() string { return e.Err.Error() }
func (e *PermanentDriverError) Unwrap() error { return e.Err }

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// wrapDBError converts sql.ErrNoRows to ErrNotFound and attaches operation
// context to any other error.
func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
