package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mitchellh/mapstructure"
)

// Claims are the verified token fields the API consumes. Optional profile
// claims are empty strings when absent.
type Claims struct {
	Subject    string   `mapstructure:"sub" json:"sub"`
	Email      string   `mapstructure:"email" json:"email,omitempty"`
	GivenName  string   `mapstructure:"given_name" json:"given_name,omitempty"`
	FamilyName string   `mapstructure:"family_name" json:"family_name,omitempty"`
	Name       string   `mapstructure:"name" json:"name,omitempty"`
	Picture    string   `mapstructure:"picture" json:"picture,omitempty"`
	Issuer     string   `mapstructure:"iss" json:"iss"`
	Audience   []string `mapstructure:"-" json:"aud"`
}

var errMissingSubject = errors.New("token has no sub claim")

// decodeClaims maps validated JWT claims onto Claims. Numbers and booleans in
// string fields are converted rather than rejected.
func decodeClaims(raw jwt.MapClaims) (*Claims, error) {
	claims := &Claims{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           claims,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("build claims decoder: %w", err)
	}
	if err := decoder.Decode(map[string]any(raw)); err != nil {
		return nil, fmt.Errorf("decode claims: %w", err)
	}

	aud, err := raw.GetAudience()
	if err != nil {
		return nil, fmt.Errorf("decode aud claim: %w", err)
	}
	claims.Audience = aud

	if claims.Subject == "" {
		return nil, errMissingSubject
	}
	return claims, nil
}
