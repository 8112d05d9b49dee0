package applemusic

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const (
	tokenLifetime = time.Hour
	tokenRefresh  = 10 * time.Minute
)

var ErrMissingCredentials = errors.New("applemusic: key id, team id and private key are required")

// TokenSigner issues ES256 developer tokens and reuses each one until ten
// minutes before it expires.
type TokenSigner struct {
	keyID  string
	teamID string
	key    *ecdsa.PrivateKey
	now    func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewTokenSigner parses a PKCS#8 or SEC1 PEM private key.
func NewTokenSigner(keyID, teamID string, pemKey []byte) (*TokenSigner, error) {
	if keyID == "" || teamID == "" || len(pemKey) == 0 {
		return nil, ErrMissingCredentials
	}
	key, err := jwt.ParseECPrivateKeyFromPEM(pemKey)
	if err != nil {
		return nil, fmt.Errorf("applemusic: parse private key: %w", err)
	}
	return &TokenSigner{keyID: keyID, teamID: teamID, key: key, now: time.Now}, nil
}

// ReadPrivateKey accepts either inline PEM or a path to a .p8 file.
func ReadPrivateKey(value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, ErrMissingCredentials
	}
	if strings.Contains(value, "-----BEGIN") {
		return []byte(strings.ReplaceAll(value, `\n`, "\n")), nil
	}
	data, err := os.ReadFile(value)
	if err != nil {
		return nil, fmt.Errorf("applemusic: read private key: %w", err)
	}
	return data, nil
}

// Token returns a valid developer token, signing a new one when needed.
func (s *TokenSigner) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.token != "" && now.Before(s.expires.Add(-tokenRefresh)) {
		return s.token, nil
	}

	issued := now.Truncate(time.Second)
	expires := issued.Add(tokenLifetime)
	tok := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.RegisteredClaims{
		Issuer:    s.teamID,
		IssuedAt:  jwt.NewNumericDate(issued),
		ExpiresAt: jwt.NewNumericDate(expires),
	})
	tok.Header["kid"] = s.keyID

	signed, err := tok.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("applemusic: sign developer token: %w", err)
	}
	s.token, s.expires = signed, expires
	return signed, nil
}
