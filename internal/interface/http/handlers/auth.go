package handlers

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/polos-ead/academic-records/internal/domain/shared"
)

var (
	// ErrInvalidToken - the bearer token failed verification.
	ErrInvalidToken = errors.New("invalid token")

	// ErrUnknownRole - the token's role claim is not a known role.
	ErrUnknownRole = errors.New("unknown role")
)

// Claims is the JWT payload. Subject holds the actor id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenVerifier checks HS256 bearer tokens and turns them into actors.
type TokenVerifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewTokenVerifier creates a verifier. An empty issuer accepts any issuer.
func NewTokenVerifier(secret, issuer string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret), issuer: issuer, now: time.Now}
}

// Verify parses and validates a token. The returned actor has no IP; the
// middleware fills it from the request.
func (v *TokenVerifier) Verify(raw string) (shared.Actor, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return shared.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return shared.Actor{}, ErrInvalidToken
	}

	role := shared.Role(claims.Role)
	if !role.IsValid() {
		return shared.Actor{}, fmt.Errorf("%w: %q", ErrUnknownRole, claims.Role)
	}
	return shared.Actor{ID: claims.Subject, Role: role}, nil
}

// Issue signs a token for actor valid for ttl. Used by tooling and tests.
func (v *TokenVerifier) Issue(actor shared.Actor, ttl time.Duration) (string, error) {
	now := v.now()
	claims := Claims{
		Role: string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
