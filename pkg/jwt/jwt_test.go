package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-access-secret-key-for-testing-purposes"

func TestGenerateAndValidateAccessToken(t *testing.T) {
	service := NewService(testSecret, "tourbook-identity", time.Hour)
	userID := uuid.New()

	token, err := service.GenerateAccessToken(userID, "traveller@example.com", []string{"customer"})
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := service.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "traveller@example.com", claims.Email)
	assert.Equal(t, []string{"customer"}, claims.Roles)
	assert.Equal(t, AccessToken, claims.TokenType)
	assert.False(t, claims.HasRole(RoleAdmin))
}

func TestValidateAccessToken_WrongSecret(t *testing.T) {
	issuer := NewService("another-secret", "", time.Hour)
	token, err := issuer.GenerateAccessToken(uuid.New(), "", nil)
	require.NoError(t, err)

	_, err = NewService(testSecret, "", time.Hour).ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestValidateAccessToken_WrongIssuer(t *testing.T) {
	token, err := NewService(testSecret, "someone-else", time.Hour).GenerateAccessToken(uuid.New(), "", nil)
	require.NoError(t, err)

	_, err = NewService(testSecret, "tourbook-identity", time.Hour).ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestValidateAccessToken_Expired(t *testing.T) {
	service := NewService(testSecret, "", -time.Minute)
	token, err := service.GenerateAccessToken(uuid.New(), "", nil)
	require.NoError(t, err)

	_, err = service.ValidateAccessToken(token)
	require.Error(t, err)
	assert.True(t, IsExpiredError(err))
}

func TestValidateAccessToken_WrongTokenType(t *testing.T) {
	claims := Claims{
		UserID:    uuid.New(),
		TokenType: "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = NewService(testSecret, "", time.Hour).ValidateAccessToken(token)
	assert.ErrorContains(t, err, "invalid token type")
}

func TestValidateAccessToken_RejectsOtherAlgorithms(t *testing.T) {
	claims := Claims{UserID: uuid.New(), TokenType: AccessToken}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewService(testSecret, "", time.Hour).ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestHasRole(t *testing.T) {
	claims := &Claims{Roles: []string{"customer", RoleAdmin}}
	assert.True(t, claims.HasRole(RoleAdmin))
	assert.True(t, claims.HasRole("guide", "customer"))
	assert.False(t, claims.HasRole("guide"))
}
