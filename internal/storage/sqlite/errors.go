package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/morphexe/vestige/internal/storage"
)

// wrapDBError converts sql.ErrNoRows to storage.ErrNotFound and attaches
// operation context.
func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
