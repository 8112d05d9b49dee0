package applemusic

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) (*ecdsa.PrivateKey, []byte) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	return key, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}

func TestTokenSignerClaims(t *testing.T) {
	key, pemKey := generateKey(t)
	signer, err := NewTokenSigner("KEY123", "TEAM456", pemKey)
	require.NoError(t, err)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	signer.now = func() time.Time { return now }

	raw, err := signer.Token()
	require.NoError(t, err)

	claims := &jwt.RegisteredClaims{}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	tok, err := parser.ParseWithClaims(raw, claims, func(tok *jwt.Token) (any, error) {
		return &key.PublicKey, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ES256", tok.Method.Alg())
	assert.Equal(t, "KEY123", tok.Header["kid"])
	assert.Equal(t, "TEAM456", claims.Issuer)
	assert.Equal(t, now, claims.IssuedAt.Time.UTC())
	assert.Equal(t, now.Add(time.Hour), claims.ExpiresAt.Time.UTC())
}

func TestTokenSignerReusesUntilRefreshWindow(t *testing.T) {
	_, pemKey := generateKey(t)
	signer, err := NewTokenSigner("KEY123", "TEAM456", pemKey)
	require.NoError(t, err)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	signer.now = func() time.Time { return now }

	first, err := signer.Token()
	require.NoError(t, err)

	now = now.Add(49 * time.Minute)
	again, err := signer.Token()
	require.NoError(t, err)
	assert.Equal(t, first, again)

	now = now.Add(2 * time.Minute)
	fresh, err := signer.Token()
	require.NoError(t, err)
	assert.NotEqual(t, first, fresh)
}

func TestNewTokenSignerRejectsBadInput(t *testing.T) {
	_, err := NewTokenSigner("", "team", []byte("x"))
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = NewTokenSigner("kid", "team", []byte("not a pem"))
	assert.Error(t, err)
}

func TestReadPrivateKey(t *testing.T) {
	_, pemKey := generateKey(t)

	inline, err := ReadPrivateKey(string(pemKey))
	require.NoError(t, err)
	assert.Equal(t, pemKey, inline)

	path := filepath.Join(t.TempDir(), "AuthKey.p8")
	require.NoError(t, os.WriteFile(path, pemKey, 0o600))
	fromFile, err := ReadPrivateKey(path)
	require.NoError(t, err)
	assert.Equal(t, pemKey, fromFile)

	_, err = ReadPrivateKey("")
	assert.ErrorIs(t, err, ErrMissingCredentials)
}
