package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"nophish/internal/support"

	"github.com/golang-jwt/jwt/v5"
)

const (
	jwtSecretEnv    = "JWT_SECRET"
	DefaultTokenTTL = 24 * time.Hour
	issuer          = "nophish"
)

var (
	ErrMissingSecret = errors.New("jwt secret not set: " + jwtSecretEnv)
	ErrInvalidToken  = errors.New("invalid token")
)

// Identity is the guild-scoped invoker carried by an API token.
type Identity struct {
	GuildID   string `json:"guild_id"`
	GuildName string `json:"guild_name,omitempty"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
}

type Claims struct {
	Identity
	jwt.RegisteredClaims
}

func secret() ([]byte, error) {
	value := strings.TrimSpace(support.GetEnv(jwtSecretEnv, ""))
	if value == "" {
		return nil, ErrMissingSecret
	}
	return []byte(value), nil
}

// GenerateJWT signs a token for the identity that expires after ttl.
func GenerateJWT(identity Identity, ttl time.Duration) (string, error) {
	key, err := secret()
	if err != nil {
		return "", err
	}
	if identity.GuildID == "" || identity.UserID == "" {
		return "", fmt.Errorf("%w: guild and user are required", ErrInvalidToken)
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	now := time.Now()
	claims := Claims{
		Identity: identity,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}

func ValidateJWT(tokenString string) (*Claims, error) {
	key, err := secret()
	if err != nil {
		return nil, err
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.GuildID == "" || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
