package assets

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSigner issues and checks the short-lived tokens that tie a
// prepared upload to its completion callback.
type TokenSigner struct{ secret []byte }

func NewTokenSigner(secret string) *TokenSigner { return &TokenSigner{secret: []byte(secret)} }

// Sign creates a token for an asset key with the given TTL
func (t *TokenSigner) Sign(key string, ttl time.Duration) (string, error) {
	if key == "" {
		return "", errors.New("empty asset key")
	}
	claims := jwt.MapClaims{
		"sub": key,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(ttl).Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(t.secret)
}

// Verify checks a token and returns the asset key it carries
func (t *TokenSigner) Verify(tok string) (string, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tok, claims, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	})
	if err != nil {
		return "", err
	}
	key, _ := claims["sub"].(string)
	if key == "" {
		return "", errors.New("no sub")
	}
	return key, nil
}
