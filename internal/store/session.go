package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/authd/internal/model"
	"github.com/google/uuid"
)

type SessionStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db, now: utcNow}
}

// NewSession holds the fields required to insert a session.
type NewSession struct {
	UserID    string
	Token     string
	ExpiresAt time.Time
	IPAddress string
	UserAgent string
}

func scanSession(scanner interface{ Scan(...any) error }) (*model.Session, error) {
	var s model.Session
	var ip, ua sql.NullString
	err := scanner.Scan(&s.ID, &s.UserID, &s.Token, &s.ExpiresAt, &s.IsActive, &ip, &ua, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	s.IPAddress = ip.String
	s.UserAgent = ua.String
	return &s, nil
}

const sessionCols = `id, user_id, token, expires_at, is_active, ip_address, user_agent, created_at`

func (s *SessionStore) Create(ctx context.Context, ns NewSession) (*model.Session, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, token, expires_at, ip_address, user_agent, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, ns.UserID, ns.Token, ns.ExpiresAt.UTC(), nullString(ns.IPAddress), nullString(ns.UserAgent), s.now(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("insert session: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionCols+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	return sess, nil
}

// GetByToken returns the session row for token whatever its state, or nil if absent.
func (s *SessionStore) GetByToken(ctx context.Context, token string) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionCols+` FROM sessions WHERE token = ?`, token)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session by token: %w", err)
	}
	return sess, nil
}

// GetIdentityByToken returns the identity behind an active, unexpired session
// owned by an active user, or nil. User and role are joined in the same query
// so the role is never older than the call.
func (s *SessionStore) GetIdentityByToken(ctx context.Context, token string, now time.Time) (*model.Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT u.id, u.email, u.first_name, u.last_name, r.name, u.email_verified
		 FROM sessions s
		 JOIN users u ON u.id = s.user_id
		 JOIN roles r ON r.id = u.role_id
		 WHERE s.token = ? AND s.is_active = 1 AND s.expires_at > ? AND u.is_active = 1`,
		token, now.UTC(),
	)

	var id model.Identity
	var roleName string
	err := row.Scan(&id.ID, &id.Email, &id.FirstName, &id.LastName, &roleName, &id.EmailVerified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get identity by token: %w", err)
	}
	if id.Role, err = model.ParseRole(roleName); err != nil {
		return nil, fmt.Errorf("get identity by token: %w", err)
	}
	return &id, nil
}

// Deactivate marks the session for token inactive. Unknown tokens are not an error.
func (s *SessionStore) Deactivate(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET is_active = 0 WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("deactivate session: %w", err)
	}
	return nil
}

func (s *SessionStore) DeactivateByUserID(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET is_active = 0 WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("deactivate sessions by user: %w", err)
	}
	return nil
}

// DeleteExpired removes sessions whose expiry is at or before now.
func (s *SessionStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
