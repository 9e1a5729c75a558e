package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/dukerupert/authd/internal/database"
	"github.com/dukerupert/authd/internal/password"
	"github.com/dukerupert/authd/internal/session"
	"github.com/dukerupert/authd/internal/store"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fixture struct {
	users    *store.UserStore
	sessions *store.SessionStore
	hasher   *countingHasher
	manager  *session.Manager
	authn    *Authenticator
	guard    *Guard
}

// countingHasher records how often a real password check ran.
type countingHasher struct {
	*password.Hasher
	verifies int
	dummies  int
}

func (h *countingHasher) Verify(pw, hash string) bool {
	h.verifies++
	return h.Hasher.Verify(pw, hash)
}

func (h *countingHasher) VerifyDummy(pw string) {
	h.dummies++
	h.Hasher.VerifyDummy(pw)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h, err := password.New(bcrypt.MinCost)
	require.NoError(t, err)

	users := store.NewUserStore(db)
	sessions := store.NewSessionStore(db)
	hasher := &countingHasher{Hasher: h}
	manager := session.NewManager(sessions, logger)

	return &fixture{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		manager:  manager,
		authn:    NewAuthenticator(users, hasher, manager, session.DefaultTTL, logger),
		guard:    NewGuard(manager, users, logger),
	}
}

func (f *fixture) register(t *testing.T, email, pw string) string {
	t.Helper()
	id, err := f.authn.Register(context.Background(), RegisterInput{
		Email: email, FirstName: "Test", LastName: "User", Password: pw,
	})
	require.NoError(t, err)
	return id
}
