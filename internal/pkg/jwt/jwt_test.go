package jwt

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestGenerateToken(t *testing.T) {
	before := time.Now().Add(-time.Second)
	token, err := GenerateToken(42, testSecret, 24)
	require.NoError(t, err)

	claims, err := ParseToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.PersonID)
	assert.True(t, claims.IssuedAt.After(before))
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), claims.ExpiresAt.Time, 5*time.Second)

	other, err := GenerateToken(43, testSecret, 24)
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestParseToken(t *testing.T) {
	valid, err := GenerateToken(7, testSecret, 1)
	require.NoError(t, err)
	expired, err := GenerateToken(7, testSecret, -1)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{PersonID: 7})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	parts := strings.Split(valid, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	tests := []struct {
		name    string
		token   string
		secret  string
		wantErr error
	}{
		{"valid", valid, testSecret, nil},
		{"wrong secret", valid, "other-secret", ErrInvalidToken},
		{"expired", expired, testSecret, ErrExpiredToken},
		{"alg none", unsigned, testSecret, ErrInvalidToken},
		{"tampered payload", tampered, testSecret, ErrInvalidToken},
		{"garbage", "not.a.token", testSecret, ErrInvalidToken},
		{"empty", "", testSecret, ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := ParseToken(tt.token, tt.secret)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, claims)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(7), claims.PersonID)
		})
	}
}
