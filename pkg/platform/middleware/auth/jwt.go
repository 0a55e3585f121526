package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	id "proposals/pkg/domain"
)

// tokenClaims is the wire shape: sub carries the user ID, role the caller's
// role.
type tokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// HS256Validator validates HMAC-signed access tokens.
type HS256Validator struct {
	key    []byte
	issuer string
	leeway time.Duration
}

func NewHS256Validator(signingKey, issuer string) *HS256Validator {
	return &HS256Validator{
		key:    []byte(signingKey),
		issuer: issuer,
		leeway: 30 * time.Second,
	}
}

func (v *HS256Validator) ValidateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims tokenClaims
	if _, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	}, opts...); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	userID, err := id.ParseUserID(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("token subject: %w", err)
	}
	role, err := id.ParseRole(claims.Role)
	if err != nil {
		return nil, fmt.Errorf("token role: %w", err)
	}
	return &Claims{UserID: userID, Role: role}, nil
}

// Issue signs a token for caller. Used by the dev token command and tests.
func (v *HS256Validator) Issue(caller id.Caller, ttl time.Duration, now time.Time) (string, error) {
	if caller.ID.IsNil() {
		return "", errors.New("issue token: caller ID required")
	}
	claims := tokenClaims{
		Role: string(caller.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   caller.ID.String(),
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.key)
}
