package tokenizer

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/regrant/regrant-auth/core"
)

const AudienceAccess = "session:access"

// DefaultAccessTTL is the session lifetime used when Issue is given none
const DefaultAccessTTL = 7 * 24 * time.Hour

// JWTTokenizer issues and validates HS256 session tokens
type JWTTokenizer struct {
	secret []byte
	now    func() time.Time
}

// Option configures a JWTTokenizer
type Option func(*JWTTokenizer)

// WithClock replaces time.Now for issuing and validating
func WithClock(now func() time.Time) Option {
	return func(j *JWTTokenizer) {
		j.now = now
	}
}

// NewJWTTokenizer creates a new JWT tokenizer signing with secret
func NewJWTTokenizer(secret []byte, opts ...Option) *JWTTokenizer {
	j := &JWTTokenizer{
		secret: secret,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Issue signs a token for subject that expires after ttl
func (j *JWTTokenizer) Issue(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", core.ErrInvalidAddress
	}
	if ttl <= 0 {
		ttl = DefaultAccessTTL
	}

	now := j.now()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Audience:  jwt.ClaimStrings{AudienceAccess},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedToken, err := token.SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return signedToken, nil
}

// Validate checks signature, audience and expiry, returning the subject
func (j *JWTTokenizer) Validate(tokenStr string) (string, error) {
	claims := &AccessClaims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return j.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(AudienceAccess),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", core.ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", core.ErrInvalidToken, err)
	}

	if !token.Valid || claims.Subject == "" {
		return "", core.ErrInvalidToken
	}

	return claims.Subject, nil
}
