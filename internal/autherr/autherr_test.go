package autherr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Validation("email is required"), http.StatusBadRequest},
		{AlreadyPrivileged("Lister"), http.StatusBadRequest},
		{ErrInvalidCredentials, http.StatusUnauthorized},
		{ErrAccountDisabled, http.StatusUnauthorized},
		{ErrUnauthenticated, http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("promote: %w", ErrNotFound), http.StatusNotFound},
		{ErrConflict, http.StatusConflict},
		{ErrInternal, http.StatusInternalServerError},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Status(tt.err), tt.err.Error())
	}
}

func TestMessageHidesInternalDetail(t *testing.T) {
	err := fmt.Errorf("%w: insert user: UNIQUE constraint failed: users.email", ErrInternal)
	assert.Equal(t, "Registration failed", Message(err, "Registration failed"))
	assert.Equal(t, "Registration failed", Message(errors.New("raw"), "Registration failed"))
}

func TestMessageDetailed(t *testing.T) {
	assert.Equal(t, "Password must be at least 8 characters long", Message(Validation("Password must be at least 8 characters long"), "x"))
	assert.Equal(t, "User is already a Admin", Message(AlreadyPrivileged("Admin"), "x"))
	assert.Equal(t, "Invalid email or password", Message(ErrInvalidCredentials, "x"))
	assert.True(t, errors.Is(Validation("bad"), ErrValidation))
	assert.False(t, errors.Is(Validation("bad"), ErrConflict))
}

func TestWithMessage(t *testing.T) {
	err := WithMessage(ErrConflict, "User with this email already exists")
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, http.StatusConflict, Status(err))
	assert.Equal(t, "User with this email already exists", Message(err, "x"))
	assert.Equal(t, "Invalid or expired session", Message(ErrUnauthenticated, "x"))
}
