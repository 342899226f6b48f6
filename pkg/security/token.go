package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const trackingTokenBytes = 32

// ErrEmptyToken signals a blank tracking token.
var ErrEmptyToken = fmt.Errorf("tracking token is empty")

// NewTrackingToken returns an opaque URL-safe token and the hash that gets persisted.
func NewTrackingToken() (token string, hash string, err error) {
	raw := make([]byte, trackingTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("generate tracking token: %w", err)
	}
	token = base64.RawURLEncoding.EncodeToString(raw)
	hash, err = HashTrackingToken(token)
	if err != nil {
		return "", "", err
	}
	return token, hash, nil
}

// HashTrackingToken derives the lookup hash for a tracking token.
func HashTrackingToken(token string) (string, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return "", ErrEmptyToken
	}
	sum := blake2b.Sum256([]byte(trimmed))
	return hex.EncodeToString(sum[:]), nil
}

// VerifyTrackingToken compares a presented token against a stored hash in constant time.
func VerifyTrackingToken(token, storedHash string) bool {
	hash, err := HashTrackingToken(token)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(hash), []byte(storedHash)) == 1
}
