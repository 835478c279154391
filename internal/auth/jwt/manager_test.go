package jwt

import (
	"testing"
	"time"

	"github.com/medistock/medistock-backend/pkg/config"
	"github.com/medistock/medistock-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(secret string) *Manager {
	return NewManager(&config.JWTConfig{
		Secret:        secret,
		AccessExpiry:  15 * time.Minute,
		RefreshExpiry: 24 * time.Hour,
		Issuer:        "medistock-test",
	})
}

var testUser = &UserInfo{
	ID:         "7f1c1e0a-8a4b-4f5e-9b3f-1a2b3c4d5e6f",
	Email:      "admin@example.com",
	Name:       "Ada Admin",
	Role:       "Admin",
	TenantID:   "11111111-1111-1111-1111-111111111111",
	TenantSlug: "station-north",
}

func TestTokenPairRoundTrip(t *testing.T) {
	m := newTestManager("secret")

	pair, err := m.GenerateTokenPair(testUser, "session-1")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)

	claims, err := m.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, testUser.ID, claims.UserID)
	assert.Equal(t, testUser.ID, claims.Subject)
	assert.Equal(t, "Admin", claims.Role)
	assert.Equal(t, "station-north", claims.TenantSlug)

	refresh, err := m.ValidateRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "session-1", refresh.SessionID)
	assert.Equal(t, testUser.TenantID, refresh.TenantID)
}

func TestValidateAccessToken_Expired(t *testing.T) {
	m := newTestManager("secret")
	issued := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return issued }

	pair, err := m.GenerateTokenPair(testUser, "session-1")
	require.NoError(t, err)

	m.now = func() time.Time { return issued.Add(time.Hour) }
	_, err = m.ValidateAccessToken(pair.AccessToken)

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "TOKEN_EXPIRED", appErr.Code)
}

func TestValidateAccessToken_Invalid(t *testing.T) {
	signer := newTestManager("secret")
	pair, err := signer.GenerateTokenPair(testUser, "session-1")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		m     *Manager
	}{
		{"other secret", pair.AccessToken, newTestManager("other")},
		{"garbage", "not.a.token", signer},
		{"empty", "", signer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.m.ValidateAccessToken(tt.token)

			var appErr *errors.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, "TOKEN_INVALID", appErr.Code)
		})
	}
}
