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

type UserStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db, now: utcNow}
}

// NewUser holds the fields required to insert a user.
type NewUser struct {
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	Role         model.Role
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var roleName string
	var lastLogin, promotedAt sql.NullTime
	var promotedBy sql.NullString

	err := scanner.Scan(
		&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash, &roleName,
		&u.IsActive, &u.EmailVerified, &u.CreatedAt, &lastLogin, &promotedAt, &promotedBy,
	)
	if err != nil {
		return nil, err
	}

	role, err := model.ParseRole(roleName)
	if err != nil {
		return nil, err
	}
	u.Role = role
	if lastLogin.Valid {
		u.LastLoginAt = &lastLogin.Time
	}
	if promotedAt.Valid {
		u.PromotedAt = &promotedAt.Time
	}
	if promotedBy.Valid {
		u.PromotedBy = &promotedBy.String
	}
	return &u, nil
}

const userSelect = `SELECT u.id, u.email, u.first_name, u.last_name, u.password_hash, r.name,
	u.is_active, u.email_verified, u.created_at, u.last_login_at, u.promoted_at, u.promoted_by
	FROM users u JOIN roles r ON r.id = u.role_id`

// Create inserts an active, unverified user. A taken email yields ErrDuplicate.
func (s *UserStore) Create(ctx context.Context, nu NewUser) (*model.User, error) {
	role := nu.Role
	if role == 0 {
		role = model.RoleUser
	}
	id := uuid.NewString()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, first_name, last_name, password_hash, role_id, created_at)
		 VALUES (?, ?, ?, ?, ?, (SELECT id FROM roles WHERE name = ?), ?)`,
		id, nu.Email, nu.FirstName, nu.LastName, nu.PasswordHash, role.String(), s.now(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, userSelect+` WHERE u.id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetByEmail matches the email exactly as stored.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, userSelect+` WHERE u.email = ?`, email)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (s *UserStore) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET last_login_at = ? WHERE id = ?`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

func (s *UserStore) SetActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET is_active = ? WHERE id = ?`, active, id)
	if err != nil {
		return fmt.Errorf("set user active: %w", err)
	}
	return requireOneRow(res)
}

// SetRole assigns a role unconditionally. Used for administrative seeding.
func (s *UserStore) SetRole(ctx context.Context, id string, role model.Role) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET role_id = (SELECT id FROM roles WHERE name = ?) WHERE id = ?`,
		role.String(), id,
	)
	if err != nil {
		return fmt.Errorf("set user role: %w", err)
	}
	return requireOneRow(res)
}

// PromoteToLister moves a plain User to Lister and records who promoted them.
// The role precondition and the update are one statement, so concurrent
// promotions of the same user cannot both succeed. When nothing is updated the
// row is re-read: ErrNotFound if absent, ErrAlreadyPrivileged (with the current
// user) otherwise.
func (s *UserStore) PromoteToLister(ctx context.Context, id, promotedBy string) (*model.User, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users
		 SET role_id = (SELECT id FROM roles WHERE name = ?), promoted_at = ?, promoted_by = ?
		 WHERE id = ? AND role_id = (SELECT id FROM roles WHERE name = ?)`,
		model.RoleLister.String(), s.now(), promotedBy, id, model.RoleUser.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("promote user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}

	u, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	if n == 0 {
		return u, ErrAlreadyPrivileged
	}
	return u, nil
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
