package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/apierr"
)

type failingKeySet struct{ err error }

func (f failingKeySet) Key(context.Context, string) (any, error) { return nil, f.err }

func newTestVerifier(t *testing.T) *Verifier {
	key, _ := testKeys(t)
	return NewVerifier(VerifierConfig{Issuer: testIssuer, Audience: testAudience}, StaticKeySet{"k1": &key.PublicKey})
}

func requireAuthError(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	var apiErr *apierr.Error
	require.True(t, errors.As(err, &apiErr), "expected *apierr.Error, got %T", err)
	assert.Equal(t, apierr.KindAuthentication, apiErr.Kind)
	assert.Equal(t, InvalidTokenMessage, apiErr.Message)
}

func TestVerifier_AcceptsValidToken(t *testing.T) {
	key, _ := testKeys(t)
	claims := validClaims()
	claims["email"] = "ada@example.com"
	claims["given_name"] = "Ada"
	claims["picture"] = "https://cdn.example.com/ada.png"

	got, err := newTestVerifier(t).Verify(context.Background(), signRS256(t, key, "k1", claims))
	require.NoError(t, err)

	assert.Equal(t, "auth0|abc123", got.Subject)
	assert.Equal(t, "ada@example.com", got.Email)
	assert.Equal(t, "Ada", got.GivenName)
	assert.Equal(t, "", got.FamilyName)
	assert.Equal(t, testIssuer, got.Issuer)
	assert.Contains(t, got.Audience, testAudience)
}

func TestVerifier_AcceptsSingleStringAudience(t *testing.T) {
	key, _ := testKeys(t)
	claims := validClaims()
	claims["aud"] = testAudience

	got, err := newTestVerifier(t).Verify(context.Background(), signRS256(t, key, "k1", claims))
	require.NoError(t, err)
	assert.Equal(t, []string{testAudience}, got.Audience)
}

func TestVerifier_Rejections(t *testing.T) {
	key, other := testKeys(t)

	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{"expired", func(t *testing.T) string {
			c := validClaims()
			c["exp"] = time.Now().Add(-time.Hour).Unix()
			return signRS256(t, key, "k1", c)
		}},
		{"missing exp", func(t *testing.T) string {
			c := validClaims()
			delete(c, "exp")
			return signRS256(t, key, "k1", c)
		}},
		{"wrong issuer", func(t *testing.T) string {
			c := validClaims()
			c["iss"] = "https://evil.example.com/"
			return signRS256(t, key, "k1", c)
		}},
		{"issuer without trailing slash", func(t *testing.T) string {
			c := validClaims()
			c["iss"] = "https://" + testDomain
			return signRS256(t, key, "k1", c)
		}},
		{"wrong audience", func(t *testing.T) string {
			c := validClaims()
			c["aud"] = "https://other-api.example.com"
			return signRS256(t, key, "k1", c)
		}},
		{"missing subject", func(t *testing.T) string {
			c := validClaims()
			delete(c, "sub")
			return signRS256(t, key, "k1", c)
		}},
		{"unrecognized key id", func(t *testing.T) string {
			return signRS256(t, key, "rotated-away", validClaims())
		}},
		{"missing key id", func(t *testing.T) string {
			return signRS256(t, key, "", validClaims())
		}},
		{"signed by another key under a known kid", func(t *testing.T) string {
			return signRS256(t, other, "k1", validClaims())
		}},
		{"symmetric HS256", func(t *testing.T) string {
			token := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims())
			token.Header["kid"] = "k1"
			signed, err := token.SignedString([]byte("shared-secret"))
			require.NoError(t, err)
			return signed
		}},
		{"alg none", func(t *testing.T) string {
			token := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims())
			token.Header["kid"] = "k1"
			signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
			require.NoError(t, err)
			return signed
		}},
		{"garbage", func(t *testing.T) string { return "not.a.jwt" }},
	}

	v := newTestVerifier(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tt.token(t))
			requireAuthError(t, err)
		})
	}
}

func TestVerifier_KeyFetchFailureLooksLikeBadToken(t *testing.T) {
	key, _ := testKeys(t)
	outage := errors.New("dial tcp: connection refused")
	v := NewVerifier(VerifierConfig{Issuer: testIssuer, Audience: testAudience}, failingKeySet{err: outage})

	_, err := v.Verify(context.Background(), signRS256(t, key, "k1", validClaims()))
	requireAuthError(t, err)
	assert.ErrorIs(t, err, outage)
}

func TestVerifier_WithRemoteKeySet(t *testing.T) {
	key, _ := testKeys(t)
	srv := httptest.NewServer(writeJWKS(jwksBody(t, rsaJWK(key, "k1"))))
	defer srv.Close()

	v := NewVerifier(VerifierConfig{Issuer: testIssuer, Audience: testAudience}, NewRemoteKeySet(srv.URL, RemoteKeySetOptions{}))
	got, err := v.Verify(context.Background(), signRS256(t, key, "k1", validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "auth0|abc123", got.Subject)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name        string
		header      string
		wantToken   string
		wantPresent bool
		wantErr     bool
	}{
		{"no header", "", "", false, false},
		{"bearer", "Bearer abc.def.ghi", "abc.def.ghi", true, false},
		{"basic", "Basic dXNlcjpwYXNz", "", true, true},
		{"bearer without token", "Bearer ", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			token, present, err := BearerToken(req)
			assert.Equal(t, tt.wantToken, token)
			assert.Equal(t, tt.wantPresent, present)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedAuthorization)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
