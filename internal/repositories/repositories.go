// package repositories provides persistence layer implementations for the credential store and link flow.
package repositories

import (
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is wrapped by every lookup that matched no rows.
var ErrNotFound = errors.New("record not found")

// expectOneRow turns a zero-row write into [ErrNotFound].
func expectOneRow(result sql.Result, what, key string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s %s", ErrNotFound, what, key)
	}
	return nil
}
