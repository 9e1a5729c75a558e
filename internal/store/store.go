package store

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrDuplicate is returned when an insert violates a uniqueness constraint.
	ErrDuplicate = errors.New("duplicate record")
	// ErrNotFound is returned by mutations that target a missing row.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyPrivileged is returned when promoting a user who is already Lister or Admin.
	ErrAlreadyPrivileged = errors.New("user already privileged")
)

// TokenBytes is the entropy of generated tokens: 32 bytes, 64 hex characters.
const TokenBytes = 32

// NewToken returns a hex-encoded token read from crypto/rand.
func NewToken() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

func utcNow() time.Time {
	return time.Now().UTC()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
