package auth

import (
	"errors"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenLifetime is how long an issued session token stays valid. Sessions
// are re-established by logging in again; there is no refresh flow.
const tokenLifetime = 24 * time.Hour

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims is the token payload: enough to identify the user and authorize
// admin-only surfaces without a database round trip.
type Claims struct {
	UserID     uint   `json:"user_id"`
	Email      string `json:"email"`
	SystemRole string `json:"system_role"`
	jwt.RegisteredClaims
}

var (
	signingKey     []byte
	signingKeyOnce sync.Once
)

// jwtSecret reads BURROW_JWT_SECRET once. The fallback keeps local
// development working; production deployments must set the variable.
func jwtSecret() []byte {
	signingKeyOnce.Do(func() {
		secret := os.Getenv("BURROW_JWT_SECRET")
		if secret == "" {
			secret = "burrow-dev-secret-change-in-production"
		}
		signingKey = []byte(secret)
	})
	return signingKey
}

// GenerateToken issues a signed session token for a user.
func GenerateToken(userID uint, email string, systemRole string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:     userID,
		Email:      email,
		SystemRole: systemRole,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "burrow",
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(jwtSecret())
}

// ValidateToken parses and verifies a session token. Only HMAC-signed
// tokens are accepted.
func ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return jwtSecret(), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
