package auth

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeClaims(t *testing.T) {
	claims, err := decodeClaims(jwt.MapClaims{
		"sub":         "auth0|abc123",
		"iss":         testIssuer,
		"aud":         testAudience,
		"family_name": "Lovelace",
		"email":       "ada@example.com",
		"exp":         float64(1893456000),
		"permissions": []any{"read:costs"},
	})
	require.NoError(t, err)

	assert.Equal(t, "auth0|abc123", claims.Subject)
	assert.Equal(t, "Lovelace", claims.FamilyName)
	assert.Equal(t, "", claims.GivenName)
	assert.Equal(t, "", claims.Picture)
	assert.Equal(t, []string{testAudience}, claims.Audience)
}

func TestDecodeClaims_MissingSubject(t *testing.T) {
	_, err := decodeClaims(jwt.MapClaims{"iss": testIssuer})
	assert.ErrorIs(t, err, errMissingSubject)
}

func TestDecodeClaims_WeakTyping(t *testing.T) {
	claims, err := decodeClaims(jwt.MapClaims{"sub": "github|42", "name": float64(42)})
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Name)
}
