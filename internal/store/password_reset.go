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

// PasswordResetStore persists single-use password reset tokens.
type PasswordResetStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPasswordResetStore(db *sql.DB) *PasswordResetStore {
	return &PasswordResetStore{db: db, now: utcNow}
}

func scanPasswordReset(scanner interface{ Scan(...any) error }) (*model.PasswordResetToken, error) {
	var t model.PasswordResetToken
	var usedAt sql.NullTime
	err := scanner.Scan(&t.ID, &t.UserID, &t.Token, &t.ExpiresAt, &usedAt, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	if usedAt.Valid {
		t.UsedAt = &usedAt.Time
	}
	return &t, nil
}

const passwordResetCols = `id, user_id, token, expires_at, used_at, created_at`

// Create issues a token valid for ttl. Pending tokens for the same user are
// marked used first, so at most one is redeemable.
func (s *PasswordResetStore) Create(ctx context.Context, userID string, ttl time.Duration) (*model.PasswordResetToken, error) {
	now := s.now()
	_, err := s.db.ExecContext(ctx,
		`UPDATE password_reset_tokens SET used_at = ? WHERE user_id = ? AND used_at IS NULL AND expires_at > ?`,
		now, userID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("invalidate previous reset tokens: %w", err)
	}

	token, err := NewToken()
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO password_reset_tokens (id, user_id, token, expires_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, userID, token, now.Add(ttl), now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert reset token: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+passwordResetCols+` FROM password_reset_tokens WHERE id = ?`, id)
	return scanPasswordReset(row)
}

// GetValid returns the unused, unexpired token, or nil.
func (s *PasswordResetStore) GetValid(ctx context.Context, token string) (*model.PasswordResetToken, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+passwordResetCols+` FROM password_reset_tokens WHERE token = ? AND used_at IS NULL AND expires_at > ?`,
		token, s.now(),
	)
	t, err := scanPasswordReset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reset token: %w", err)
	}
	return t, nil
}

// Consume marks a valid token used and returns it. A token can be consumed
// once; later calls, expired and unknown tokens return nil.
func (s *PasswordResetStore) Consume(ctx context.Context, token string) (*model.PasswordResetToken, error) {
	now := s.now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE password_reset_tokens SET used_at = ? WHERE token = ? AND used_at IS NULL AND expires_at > ?`,
		now, token, now,
	)
	if err != nil {
		return nil, fmt.Errorf("consume reset token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+passwordResetCols+` FROM password_reset_tokens WHERE token = ?`, token)
	return scanPasswordReset(row)
}

// DeleteExpired removes expired tokens and tokens that have been used.
func (s *PasswordResetStore) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM password_reset_tokens WHERE expires_at <= ? OR used_at IS NOT NULL`, s.now(),
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired reset tokens: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
