// Package auth verifies credentials, issues sessions and enforces role policy.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dukerupert/authd/internal/autherr"
	"github.com/dukerupert/authd/internal/model"
	"github.com/dukerupert/authd/internal/session"
	"github.com/dukerupert/authd/internal/store"
)

const (
	minPasswordChars = 8
	// bcrypt ignores input past 72 bytes; longer passwords are rejected.
	maxPasswordBytes = 72
)

var emailRegexp = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// UserRepository is the subset of the user store the Authenticator needs.
type UserRepository interface {
	Create(ctx context.Context, nu store.NewUser) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
	VerifyDummy(password string)
}

// Sessions issues and resolves session tokens.
type Sessions interface {
	IssueToken() (string, error)
	Create(ctx context.Context, userID, token string, ttl time.Duration, meta session.ClientMeta) (*model.Session, error)
	Validate(ctx context.Context, token string) (model.Identity, error)
	Invalidate(ctx context.Context, token string) error
}

type Authenticator struct {
	users      UserRepository
	hasher     PasswordHasher
	sessions   Sessions
	sessionTTL time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

func NewAuthenticator(users UserRepository, hasher PasswordHasher, sessions Sessions, sessionTTL time.Duration, logger *slog.Logger) *Authenticator {
	if sessionTTL <= 0 {
		sessionTTL = session.DefaultTTL
	}
	return &Authenticator{
		users:      users,
		hasher:     hasher,
		sessions:   sessions,
		sessionTTL: sessionTTL,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger,
	}
}

type RegisterInput struct {
	Email     string
	FirstName string
	LastName  string
	Password  string
}

// Register creates a User-role account and returns its id.
func (a *Authenticator) Register(ctx context.Context, in RegisterInput) (string, error) {
	email := strings.TrimSpace(in.Email)
	first := strings.TrimSpace(in.FirstName)
	last := strings.TrimSpace(in.LastName)

	if email == "" || first == "" || last == "" || in.Password == "" {
		return "", autherr.Validation("All fields are required")
	}
	if !emailRegexp.MatchString(email) {
		return "", autherr.Validation("Invalid email format")
	}
	if utf8.RuneCountInString(in.Password) < minPasswordChars {
		return "", autherr.Validation("Password must be at least 8 characters long")
	}
	if len(in.Password) > maxPasswordBytes {
		return "", autherr.Validation("Password must be at most 72 bytes long")
	}

	existing, err := a.users.GetByEmail(ctx, email)
	if err != nil {
		a.logger.ErrorContext(ctx, "register lookup", "error", err)
		return "", fmt.Errorf("%w: register lookup", autherr.ErrInternal)
	}
	if existing != nil {
		return "", autherr.WithMessage(autherr.ErrConflict, "User with this email already exists")
	}

	hash, err := a.hasher.Hash(in.Password)
	if err != nil {
		a.logger.ErrorContext(ctx, "hash password", "error", err)
		return "", fmt.Errorf("%w: hash password", autherr.ErrInternal)
	}

	u, err := a.users.Create(ctx, store.NewUser{
		Email:        email,
		FirstName:    first,
		LastName:     last,
		PasswordHash: hash,
		Role:         model.RoleUser,
	})
	if errors.Is(err, store.ErrDuplicate) {
		return "", autherr.WithMessage(autherr.ErrConflict, "User with this email already exists")
	}
	if err != nil {
		a.logger.ErrorContext(ctx, "create user", "error", err)
		return "", fmt.Errorf("%w: create user", autherr.ErrInternal)
	}

	a.logger.InfoContext(ctx, "user registered", "user_id", u.ID)
	return u.ID, nil
}

type LoginInput struct {
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

// LoginResult carries the raw session token. It is handed to the caller once
// and not retained anywhere except the session row.
type LoginResult struct {
	Identity  model.Identity
	Token     string
	ExpiresAt time.Time
}

// Login verifies credentials and opens a new session. Unknown email and wrong
// password both return ErrInvalidCredentials. The password is checked before
// the active flag, so a disabled account with the right password gets
// ErrAccountDisabled.
func (a *Authenticator) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" || in.Password == "" {
		return LoginResult{}, autherr.Validation("Email and password are required")
	}

	u, err := a.users.GetByEmail(ctx, email)
	if err != nil {
		a.logger.ErrorContext(ctx, "login lookup", "error", err)
		return LoginResult{}, fmt.Errorf("%w: login lookup", autherr.ErrInternal)
	}
	if u == nil {
		a.hasher.VerifyDummy(in.Password)
		return LoginResult{}, autherr.ErrInvalidCredentials
	}
	if !a.hasher.Verify(in.Password, u.PasswordHash) {
		return LoginResult{}, autherr.ErrInvalidCredentials
	}
	if !u.IsActive {
		return LoginResult{}, autherr.ErrAccountDisabled
	}

	token, err := a.sessions.IssueToken()
	if err != nil {
		a.logger.ErrorContext(ctx, "issue token", "error", err)
		return LoginResult{}, fmt.Errorf("%w: issue token", autherr.ErrInternal)
	}
	sess, err := a.sessions.Create(ctx, u.ID, token, a.sessionTTL, session.ClientMeta{
		IPAddress: in.IPAddress,
		UserAgent: in.UserAgent,
	})
	if err != nil {
		return LoginResult{}, err
	}

	if err := a.users.UpdateLastLogin(ctx, u.ID, a.now()); err != nil {
		a.logger.ErrorContext(ctx, "update last login", "user_id", u.ID, "error", err)
		if ierr := a.sessions.Invalidate(ctx, token); ierr != nil {
			a.logger.ErrorContext(ctx, "roll back session", "user_id", u.ID, "error", ierr)
		}
		return LoginResult{}, fmt.Errorf("%w: update last login", autherr.ErrInternal)
	}

	a.logger.InfoContext(ctx, "user logged in", "user_id", u.ID)
	return LoginResult{Identity: u.Identity(), Token: token, ExpiresAt: sess.ExpiresAt}, nil
}

// Logout invalidates the session. Already invalid tokens succeed.
func (a *Authenticator) Logout(ctx context.Context, token string) error {
	return a.sessions.Invalidate(ctx, token)
}

// WhoAmI returns the identity behind token.
func (a *Authenticator) WhoAmI(ctx context.Context, token string) (model.Identity, error) {
	return a.sessions.Validate(ctx, token)
}
