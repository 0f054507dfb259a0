package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/tokyo-express/internal/domain"
	"github.com/xenking/tokyo-express/internal/domain/user"
)

func newTestTokens(t *testing.T, now time.Time) *Tokens {
	t.Helper()
	tk, err := NewTokens([]byte("test-secret"), time.Hour)
	require.NoError(t, err)
	tk.now = func() time.Time { return now }
	return tk
}

func TestTokens_RoundTrip(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	tk := newTestTokens(t, now)

	raw, err := tk.Issue(&user.User{ID: "u1", Login: "chef", Role: user.RoleManager})
	require.NoError(t, err)

	id, err := tk.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, &Identity{UserID: "u1", Login: "chef", Role: user.RoleManager}, id)
}

func TestTokens_Rejects(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	tk := newTestTokens(t, now)
	good, err := tk.Issue(&user.User{ID: "u1", Login: "chef", Role: user.RoleAdmin})
	require.NoError(t, err)

	other, err := NewTokens([]byte("other-secret"), time.Hour)
	require.NoError(t, err)
	forged, err := other.Issue(&user.User{ID: "u1", Login: "chef", Role: user.RoleAdmin})
	require.NoError(t, err)

	noRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: "customer",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u2",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             user.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u3"},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	tests := []struct {
		name string
		raw  string
		at   time.Time
	}{
		{name: "empty", raw: "", at: now},
		{name: "garbage", raw: "not.a.token", at: now},
		{name: "expired", raw: good, at: now.Add(2 * time.Hour)},
		{name: "wrong secret", raw: forged, at: now},
		{name: "unknown role", raw: noRole, at: now},
		{name: "no expiry", raw: noExpiry, at: now},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk.now = func() time.Time { return tt.at }
			_, err := tk.Parse(tt.raw)
			assert.ErrorIs(t, err, ErrInvalidToken)
			assert.ErrorIs(t, err, domain.ErrUnauthorized)
		})
	}
}

func TestNewTokens(t *testing.T) {
	_, err := NewTokens(nil, time.Hour)
	assert.Error(t, err)

	tk, err := NewTokens([]byte("s"), 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTTL, tk.ttl)
}

func TestIdentityContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), &Identity{UserID: "u1"})
	id, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1", id.UserID)
}
