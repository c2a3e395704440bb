package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/zenithdesk/chord/internal/auth"
	"github.com/zenithdesk/chord/internal/shared"
)

// SessionRepository persists the pending PKCE session between the moment the
// browser navigates to the provider and the callback redirect.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new [SessionRepository] with the given database connection.
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Put stores a session, overwriting any prior one. A second login attempt
// therefore invalidates any in-flight authorization.
func (r *SessionRepository) Put(sess *auth.Session) error {
	query := `
		INSERT INTO pkce_sessions (slot, id, verifier, state, created_at) VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET id = excluded.id, verifier = excluded.verifier,
			state = excluded.state, created_at = excluded.created_at
	`

	if _, err := r.db.Exec(query, sess.ID, sess.Verifier, sess.State, sess.CreatedAt); err != nil {
		return fmt.Errorf("failed to store pkce session: %w", err)
	}

	return nil
}

// Take returns the stored session and deletes it in the same transaction.
//
// The delete happens regardless of what the caller does with the session, so a
// duplicate callback invocation finds nothing and aborts harmlessly. Returns
// [shared.ErrNoPendingLogin] when no session is stored.
func (r *SessionRepository) Take() (*auth.Session, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		id        string
		verifier  string
		state     string
		createdAt time.Time
	)

	err = tx.QueryRow("SELECT id, verifier, state, created_at FROM pkce_sessions WHERE slot = 1").
		Scan(&id, &verifier, &state, &createdAt)
	if err == sql.ErrNoRows {
		return nil, shared.ErrNoPendingLogin
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query pkce session: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM pkce_sessions WHERE slot = 1"); err != nil {
		return nil, fmt.Errorf("failed to delete pkce session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit session take: %w", err)
	}

	return &auth.Session{ID: id, Verifier: verifier, State: state, CreatedAt: createdAt}, nil
}

// Clear removes any stored session. Idempotent.
func (r *SessionRepository) Clear() error {
	if _, err := r.db.Exec("DELETE FROM pkce_sessions WHERE slot = 1"); err != nil {
		return fmt.Errorf("failed to clear pkce session: %w", err)
	}
	return nil
}
