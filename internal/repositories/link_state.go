package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// LinkStateRepository stores OAuth state values for in-flight account links.
type LinkStateRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewLinkStateRepository creates a new [LinkStateRepository] with the given database connection
func NewLinkStateRepository(db *sql.DB) *LinkStateRepository {
	return &LinkStateRepository{db: db, now: time.Now}
}

// Create records that state belongs to userID until ttl elapses.
func (r *LinkStateRepository) Create(state, userID string, ttl time.Duration) error {
	if state == "" || userID == "" {
		return fmt.Errorf("validation failed: state and user id are required")
	}

	expires := r.now().Add(ttl).UTC()
	_, err := r.db.Exec("INSERT INTO link_states (state, user_id, expires_at) VALUES (?, ?, ?)", state, userID, expires)
	if err != nil {
		return fmt.Errorf("failed to insert link state: %w", err)
	}
	return nil
}

// Consume deletes state and returns the user it was bound to.
//
// Expired states are deleted too but reported as [ErrNotFound].
func (r *LinkStateRepository) Consume(state string) (string, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		userID  string
		expires time.Time
	)
	err = tx.QueryRow("SELECT user_id, expires_at FROM link_states WHERE state = ?", state).Scan(&userID, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: link state", ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to query link state: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM link_states WHERE state = ?", state); err != nil {
		return "", fmt.Errorf("failed to delete link state: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit link state: %w", err)
	}

	if !r.now().Before(expires) {
		return "", fmt.Errorf("%w: link state expired", ErrNotFound)
	}
	return userID, nil
}

// Prune removes expired states and returns how many were removed.
func (r *LinkStateRepository) Prune() (int64, error) {
	result, err := r.db.Exec("DELETE FROM link_states WHERE expires_at <= ?", r.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune link states: %w", err)
	}
	return result.RowsAffected()
}
