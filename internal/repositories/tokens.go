package repositories

import (
	"database/sql"
	"fmt"
	"time"
)

// TokenRepository persists the opaque refresh token so a connected session
// survives process restarts. Access tokens are short-lived and never stored.
type TokenRepository struct {
	db *sql.DB
}

// NewTokenRepository creates a new [TokenRepository] with the given database connection.
func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Save stores the opaque refresh token, replacing any prior value.
func (r *TokenRepository) Save(opaque string) error {
	query := `
		INSERT INTO token_records (slot, refresh_token, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET refresh_token = excluded.refresh_token,
			updated_at = excluded.updated_at
	`

	if _, err := r.db.Exec(query, opaque, time.Now()); err != nil {
		return fmt.Errorf("failed to store token record: %w", err)
	}

	return nil
}

// Load returns the stored opaque refresh token, or "" when none is stored.
func (r *TokenRepository) Load() (string, error) {
	var opaque string
	err := r.db.QueryRow("SELECT refresh_token FROM token_records WHERE slot = 1").Scan(&opaque)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query token record: %w", err)
	}
	return opaque, nil
}

// Clear removes the stored token record. Idempotent.
func (r *TokenRepository) Clear() error {
	if _, err := r.db.Exec("DELETE FROM token_records WHERE slot = 1"); err != nil {
		return fmt.Errorf("failed to clear token record: %w", err)
	}
	return nil
}
