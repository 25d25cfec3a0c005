package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/bookshelf/internal/entities"
)

var testSecret = []byte("test-secret-key-32-bytes-long!!!")

func TestTokenIssuer_IssueAndValidate(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, time.Hour)
	user := &entities.User{ID: 42, Email: "ana@x.com"}

	token, expiresAt, err := issuer.Issue(user)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	userID, err := issuer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), userID)
}

func TestTokenIssuer_Validate_WrongSecret(t *testing.T) {
	token, _, err := NewTokenIssuer(testSecret, time.Hour).Issue(&entities.User{ID: 1})
	require.NoError(t, err)

	_, err = NewTokenIssuer([]byte("another-secret"), time.Hour).Validate(token)

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuer_Validate_Expired(t *testing.T) {
	claims := Claims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)

	_, err = NewTokenIssuer(testSecret, time.Hour).Validate(token)

	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenIssuer_Validate_WrongAudience(t *testing.T) {
	claims := Claims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{"someone-else"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)

	_, err = NewTokenIssuer(testSecret, time.Hour).Validate(token)

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuer_Validate_Garbage(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, time.Hour)

	for _, token := range []string{"", "not.a.token", "abc"} {
		_, err := issuer.Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken, token)
	}
}
