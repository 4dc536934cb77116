package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims identifies the caller of the run API.
type JWTClaims struct {
	Scopes []string `json:"scopes,omitempty"`
	jwt.RegisteredClaims
}

// HasScope reports whether the claims grant scope.
func (c *JWTClaims) HasScope(scope string) bool {
	if c == nil {
		return false
	}
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}
