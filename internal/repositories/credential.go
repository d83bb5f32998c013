package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/maestro/internal/models"
)

// CredentialRepository persists [models.Credential] rows keyed by user id.
type CredentialRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewCredentialRepository creates a new [CredentialRepository] with the given database connection
func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db, now: time.Now}
}

// Get retrieves the credential for userID.
func (r *CredentialRepository) Get(userID string) (models.Credential, error) {
	query := `
		SELECT user_id, access_token, refresh_token, expires_at, created_at, updated_at
		FROM credentials
		WHERE user_id = ?
	`

	var c models.Credential
	err := r.db.QueryRow(query, userID).Scan(&c.UserID, &c.AccessToken, &c.RefreshToken, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Credential{}, fmt.Errorf("%w: credential for %s", ErrNotFound, userID)
	}
	if err != nil {
		return models.Credential{}, fmt.Errorf("failed to query credential: %w", err)
	}

	return c, nil
}

// Save inserts or replaces the credential for cred.UserID. CreatedAt survives replacement.
func (r *CredentialRepository) Save(cred models.Credential) error {
	if err := cred.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := r.now().UTC()
	query := `
		INSERT INTO credentials (user_id, access_token, refresh_token, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`

	_, err := r.db.Exec(query, cred.UserID, cred.AccessToken, cred.RefreshToken, cred.ExpiresAt.UTC(), now, now)
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}

	return nil
}

// Delete removes the credential for userID.
func (r *CredentialRepository) Delete(userID string) error {
	result, err := r.db.Exec("DELETE FROM credentials WHERE user_id = ?", userID)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return expectOneRow(result, "credential for", userID)
}

// List returns every stored credential ordered by user id.
func (r *CredentialRepository) List() ([]models.Credential, error) {
	query := `
		SELECT user_id, access_token, refresh_token, expires_at, created_at, updated_at
		FROM credentials
		ORDER BY user_id
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query credentials: %w", err)
	}
	defer rows.Close()

	var creds []models.Credential
	for rows.Next() {
		var c models.Credential
		if err := rows.Scan(&c.UserID, &c.AccessToken, &c.RefreshToken, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		creds = append(creds, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating credentials: %w", err)
	}

	return creds, nil
}
