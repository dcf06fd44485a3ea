// Package auth turns bearer tokens into the explicit caller identity every
// scheduling operation receives.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hackgods/consultation-scheduling/internal/scheduling"
)

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Verifier validates HS256 tokens signed with a shared secret.
type Verifier struct {
	secret []byte
	issuer string
}

func NewVerifier(secret []byte, issuer string) *Verifier {
	return &Verifier{secret: secret, issuer: issuer}
}

// Verify parses tokenStr and returns the caller it identifies.
func (v *Verifier) Verify(tokenStr string) (scheduling.Caller, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return scheduling.Caller{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return scheduling.Caller{}, fmt.Errorf("%w: subject is not a UUID", ErrInvalidToken)
	}

	role := scheduling.Role(claims.Role)
	if role != scheduling.RolePatient && role != scheduling.RoleDoctor {
		return scheduling.Caller{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}

	return scheduling.Caller{ID: id, Role: role}, nil
}

// Issue signs a token for caller valid for ttl. Used by the seeder and the
// simulator; production tokens come from the identity provider.
func (v *Verifier) Issue(caller scheduling.Caller, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   caller.ID.String(),
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: string(caller.Role),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

type contextKey string

const callerKey contextKey = "caller"

func WithCaller(ctx context.Context, c scheduling.Caller) context.Context {
	return context.WithValue(ctx, callerKey, c)
}

// CallerFromContext returns the authenticated caller, if any.
func CallerFromContext(ctx context.Context) (scheduling.Caller, bool) {
	c, ok := ctx.Value(callerKey).(scheduling.Caller)
	return c, ok
}
