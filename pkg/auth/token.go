package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/streamatlas/streamatlas-backend/pkg/config"
)

// Claims carries the identity baked into an admin token.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AdminRole is the role required to reach the admin surface.
const AdminRole = "admin"

// SignAdminToken mints an HMAC-signed admin token. Used by operator tooling
// and tests; the API only verifies.
func SignAdminToken(cfg config.JWTConfig, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: AdminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.Secret))
}

// ParseAdminToken verifies the signature, issuer and role of a bearer token.
func ParseAdminToken(cfg config.JWTConfig, raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(cfg.Secret), nil
	}, jwt.WithIssuer(cfg.Issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Role != AdminRole {
		return nil, fmt.Errorf("insufficient role")
	}
	return claims, nil
}
