package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/shelf/internal/shared"
)

// StoredSession is the persisted form of a signed-in principal.
type StoredSession struct {
	ID           string
	UID          string
	Email        string
	Name         string
	RefreshToken string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate checks that the session can be restored later.
func (s *StoredSession) Validate() error {
	if s.UID == "" {
		return fmt.Errorf("%w: uid is required", shared.ErrInvalidInput)
	}
	if s.RefreshToken == "" {
		return fmt.Errorf("%w: refresh token is required", shared.ErrInvalidInput)
	}
	return nil
}

// SessionRepository persists the current session. At most one row is current at a time.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new [SessionRepository] with the given database connection
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Save replaces any stored session with s, assigning an ID and timestamps.
func (r *SessionRepository) Save(s *StoredSession) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	if s.ID == "" {
		s.ID = shared.GenerateID()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM sessions"); err != nil {
		return fmt.Errorf("failed to clear sessions: %w", err)
	}

	query := `
		INSERT INTO sessions (id, uid, email, name, refresh_token, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := tx.Exec(query, s.ID, s.UID, s.Email, s.Name, s.RefreshToken, s.CreatedAt, s.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}
	return nil
}

// Current returns the stored session, or [shared.ErrNotAuthenticated] when nobody is signed in.
func (r *SessionRepository) Current() (*StoredSession, error) {
	query := `
		SELECT id, uid, email, name, refresh_token, created_at, updated_at
		FROM sessions
		ORDER BY updated_at DESC
		LIMIT 1
	`

	var s StoredSession
	err := r.db.QueryRow(query).Scan(&s.ID, &s.UID, &s.Email, &s.Name, &s.RefreshToken, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}
	return &s, nil
}

// Clear removes every stored session.
func (r *SessionRepository) Clear() error {
	if _, err := r.db.Exec("DELETE FROM sessions"); err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}
	return nil
}
