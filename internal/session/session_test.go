package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dukerupert/authd/internal/autherr"
	"github.com/dukerupert/authd/internal/database"
	"github.com/dukerupert/authd/internal/model"
	"github.com/dukerupert/authd/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*Manager, *store.UserStore, *store.SessionStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ss := store.NewSessionStore(db)
	return NewManager(ss, slog.New(slog.NewTextHandler(io.Discard, nil))), store.NewUserStore(db), ss
}

func newUser(t *testing.T, us *store.UserStore, email string) *model.User {
	t.Helper()
	u, err := us.Create(context.Background(), store.NewUser{Email: email, FirstName: "Alice", LastName: "Anders", PasswordHash: "x"})
	require.NoError(t, err)
	return u
}

func TestIssueToken(t *testing.T) {
	m, _, _ := setup(t)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		tok, err := m.IssueToken()
		require.NoError(t, err)
		assert.Len(t, tok, 64)
		assert.False(t, seen[tok], "duplicate token")
		seen[tok] = true
	}
}

func TestCreateAndValidate(t *testing.T) {
	m, us, _ := setup(t)
	ctx := context.Background()
	u := newUser(t, us, "alice@example.com")

	tok, err := m.IssueToken()
	require.NoError(t, err)
	sess, err := m.Create(ctx, u.ID, tok, 0, ClientMeta{IPAddress: "127.0.0.1", UserAgent: "test"})
	require.NoError(t, err)

	assert.WithinDuration(t, time.Now().Add(DefaultTTL), sess.ExpiresAt, time.Minute)
	assert.Equal(t, "127.0.0.1", sess.IPAddress)

	id, err := m.Validate(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id.ID)
	assert.Equal(t, "alice@example.com", id.Email)
	assert.Equal(t, model.RoleUser, id.Role)
}

func TestValidateReadsCurrentRole(t *testing.T) {
	m, us, _ := setup(t)
	ctx := context.Background()
	u := newUser(t, us, "alice@example.com")
	tok, _ := m.IssueToken()
	_, err := m.Create(ctx, u.ID, tok, time.Hour, ClientMeta{})
	require.NoError(t, err)

	require.NoError(t, us.SetRole(ctx, u.ID, model.RoleAdmin))

	id, err := m.Validate(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, id.Role)
}

func TestValidateExpiredLazily(t *testing.T) {
	m, us, _ := setup(t)
	ctx := context.Background()
	u := newUser(t, us, "alice@example.com")
	tok, _ := m.IssueToken()
	_, err := m.Create(ctx, u.ID, tok, time.Hour, ClientMeta{})
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }

	_, err = m.Validate(ctx, tok)
	assert.ErrorIs(t, err, autherr.ErrUnauthenticated)
}

func TestValidateRejectsInactiveOwner(t *testing.T) {
	m, us, _ := setup(t)
	ctx := context.Background()
	u := newUser(t, us, "alice@example.com")
	tok, _ := m.IssueToken()
	_, err := m.Create(ctx, u.ID, tok, time.Hour, ClientMeta{})
	require.NoError(t, err)

	require.NoError(t, us.SetActive(ctx, u.ID, false))

	_, err = m.Validate(ctx, tok)
	assert.ErrorIs(t, err, autherr.ErrUnauthenticated)
}

func TestValidateEmptyAndUnknown(t *testing.T) {
	m, _, _ := setup(t)

	_, err := m.Validate(context.Background(), "")
	assert.ErrorIs(t, err, autherr.ErrUnauthenticated)
	_, err = m.Validate(context.Background(), "deadbeef")
	assert.ErrorIs(t, err, autherr.ErrUnauthenticated)
}

func TestInvalidateIsIdempotent(t *testing.T) {
	m, us, _ := setup(t)
	ctx := context.Background()
	u := newUser(t, us, "alice@example.com")
	tok, _ := m.IssueToken()
	_, err := m.Create(ctx, u.ID, tok, time.Hour, ClientMeta{})
	require.NoError(t, err)

	require.NoError(t, m.Invalidate(ctx, tok))
	_, err = m.Validate(ctx, tok)
	assert.ErrorIs(t, err, autherr.ErrUnauthenticated)

	assert.NoError(t, m.Invalidate(ctx, tok))
	assert.NoError(t, m.Invalidate(ctx, "never-issued"))
	assert.NoError(t, m.Invalidate(ctx, ""))
}

type failingRepo struct{}

func (failingRepo) Create(context.Context, store.NewSession) (*model.Session, error) {
	return nil, errors.New("database is locked")
}

func (failingRepo) GetIdentityByToken(context.Context, string, time.Time) (*model.Identity, error) {
	return nil, errors.New("database is locked")
}

func (failingRepo) Deactivate(context.Context, string) error {
	return errors.New("database is locked")
}

func TestStoreFailuresBecomeInternal(t *testing.T) {
	var buf bytes.Buffer
	m := NewManager(failingRepo{}, slog.New(slog.NewTextHandler(&buf, nil)))
	ctx := context.Background()

	_, err := m.Create(ctx, "u1", "tok", time.Hour, ClientMeta{})
	assert.ErrorIs(t, err, autherr.ErrInternal)
	_, err = m.Validate(ctx, "tok")
	assert.ErrorIs(t, err, autherr.ErrInternal)
	err = m.Invalidate(ctx, "tok")
	assert.ErrorIs(t, err, autherr.ErrInternal)

	assert.NotContains(t, err.Error(), "database is locked")
	assert.Contains(t, buf.String(), "database is locked")
}
