package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken marks download tokens that fail verification.
var ErrInvalidToken = errors.New("invalid download token")

// ArtifactClaims identifies one stored artifact of a generation run.
type ArtifactClaims struct {
	RunID string `json:"run"`
	Path  string `json:"path"`
	jwt.RegisteredClaims
}

// ArtifactSigner issues and verifies short-lived artifact download tokens.
type ArtifactSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewArtifactSigner constructs a signer with the provided secret and TTL.
func NewArtifactSigner(secret string, ttl time.Duration) *ArtifactSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ArtifactSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Generate returns a signed token referencing the run and the artifact path.
func (s *ArtifactSigner) Generate(runID, relPath string) (string, time.Time, error) {
	if runID == "" || relPath == "" {
		return "", time.Time{}, fmt.Errorf("runID and relPath required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.ttl)
	claims := ArtifactClaims{
		RunID: runID,
		Path:  relPath,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   runID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign download token: %w", err)
	}
	return token, expiresAt, nil
}

// Parse validates a token and returns its claims.
// When allowExpired is true the expiry check is skipped (used by cleanup routines).
func (s *ArtifactSigner) Parse(token string, allowExpired bool) (*ArtifactClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if allowExpired {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}
	claims := &ArtifactClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.RunID == "" || claims.Path == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
