package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	testDomain   = "tenant.auth0.test"
	testIssuer   = "https://" + testDomain + "/"
	testAudience = "https://api.cloudwise.test"
)

var (
	keyOnce          sync.Once
	signingKey       *rsa.PrivateKey
	otherSigningKey  *rsa.PrivateKey
	keyGenerationErr error
)

func testKeys(t *testing.T) (*rsa.PrivateKey, *rsa.PrivateKey) {
	t.Helper()
	keyOnce.Do(func() {
		signingKey, keyGenerationErr = rsa.GenerateKey(rand.Reader, 2048)
		if keyGenerationErr == nil {
			otherSigningKey, keyGenerationErr = rsa.GenerateKey(rand.Reader, 2048)
		}
	})
	require.NoError(t, keyGenerationErr)
	return signingKey, otherSigningKey
}

func validClaims() jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"sub": "auth0|abc123",
		"iss": testIssuer,
		"aud": []string{testAudience, "https://" + testDomain + "/userinfo"},
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
}

func signRS256(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func jwksBody(t *testing.T, keys ...jose.JSONWebKey) []byte {
	t.Helper()
	body, err := json.Marshal(jose.JSONWebKeySet{Keys: keys})
	require.NoError(t, err)
	return body
}

func rsaJWK(key *rsa.PrivateKey, kid string) jose.JSONWebKey {
	return jose.JSONWebKey{Key: &key.PublicKey, KeyID: kid, Algorithm: "RS256", Use: "sig"}
}

func writeJWKS(body []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}
}
