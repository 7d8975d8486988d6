package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/xenitab/go-oidc-middleware/oidctoken"
	"github.com/xenitab/go-oidc-middleware/options"

	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/apierr"
)

// InvalidTokenMessage is the only message callers see for a rejected token,
// whatever the cause. Key fetch outages are reported the same way.
const InvalidTokenMessage = "invalid or expired token"

// TokenVerifier validates a raw bearer token and returns its claims.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*Claims, error)
}

// VerifierConfig holds the expected token issuer and audience.
type VerifierConfig struct {
	Issuer   string
	Audience string
	Leeway   time.Duration
}

// Verifier checks RS256 tokens against a KeySet.
type Verifier struct {
	keys   KeySet
	parser *jwt.Parser
}

// NewVerifier creates a Verifier. Tokens must be RS256; any other alg header,
// including HS256 and none, is rejected before a key is looked up.
func NewVerifier(cfg VerifierConfig, keys KeySet) *Verifier {
	return &Verifier{
		keys: keys,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
			jwt.WithIssuer(cfg.Issuer),
			jwt.WithAudience(cfg.Audience),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
			jwt.WithLeeway(cfg.Leeway),
		),
	}
}

// Verify returns the token's claims or an authentication error.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (*Claims, error) {
	raw := jwt.MapClaims{}
	_, err := v.parser.ParseWithClaims(rawToken, raw, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token header has no kid")
		}
		return v.keys.Key(ctx, kid)
	})
	if err != nil {
		return nil, apierr.Authentication(InvalidTokenMessage, err)
	}

	claims, err := decodeClaims(raw)
	if err != nil {
		return nil, apierr.Authentication(InvalidTokenMessage, err)
	}
	return claims, nil
}

var bearerTokenStrings = [][]options.TokenStringOption{{}} // Authorization: Bearer <token>

// ErrMalformedAuthorization is returned for an Authorization header that is not a bearer token.
var ErrMalformedAuthorization = errors.New("authorization header is not a bearer token")

// BearerToken extracts the bearer token. present is false when the request has
// no Authorization header at all, which optional routes treat as anonymous.
func BearerToken(r *http.Request) (token string, present bool, err error) {
	if strings.TrimSpace(r.Header.Get("Authorization")) == "" {
		return "", false, nil
	}

	token, err = oidctoken.GetTokenString(r.Header.Get, bearerTokenStrings)
	if err != nil || strings.TrimSpace(token) == "" {
		return "", true, ErrMalformedAuthorization
	}
	return strings.TrimSpace(token), true, nil
}
