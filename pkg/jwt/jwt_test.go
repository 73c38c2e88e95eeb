package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	s := NewService("secret", time.Hour)

	token, err := s.GenerateToken("owner-1", "ada@example.com", RoleUser)
	require.NoError(t, err)

	claims, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "owner-1", claims.UserID)
	assert.Equal(t, RoleUser, claims.Role)
	assert.True(t, claims.HasRole(RoleUser))
	assert.False(t, claims.HasRole(RoleAdmin))
}

func TestValidateRejectsForeignSecret(t *testing.T) {
	token, err := NewService("one", time.Hour).GenerateToken("owner-1", "", RoleAdmin)
	require.NoError(t, err)

	_, err = NewService("two", time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateExpired(t *testing.T) {
	s := NewService("secret", time.Minute)
	issued := time.Now().Add(-time.Hour)
	s.now = func() time.Time { return issued }
	token, err := s.GenerateToken("owner-1", "", RoleUser)
	require.NoError(t, err)

	s.now = time.Now
	_, err = s.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestAdminHoldsEveryRole(t *testing.T) {
	c := &JWTClaims{Role: RoleAdmin}
	assert.True(t, c.HasRole(RoleUser))
	assert.Equal(t, RoleAdmin, ParseRole("admin"))
	assert.Equal(t, RoleUser, ParseRole("guest"))
}
