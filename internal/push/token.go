package push

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Apple rejects provider tokens older than one hour; reissue well before.
const tokenValidity = 50 * time.Minute

// TokenSource issues and caches JWT provider tokens for the APNs provider
// API. Safe for use by a single client; each client owns its own source.
type TokenSource struct {
	keyID  string
	teamID string
	key    *ecdsa.PrivateKey

	mu       sync.Mutex
	bearer   string
	issuedAt time.Time

	now func() time.Time
}

// NewTokenSource builds a TokenSource from a PEM-encoded PKCS#8 ECDSA
// private key (the .p8 file contents from the Apple developer portal).
func NewTokenSource(keyPEM []byte, keyID, teamID string) (*TokenSource, error) {
	if keyID == "" || teamID == "" {
		return nil, errors.New("push: key id and team id are required")
	}
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, errors.New("push: no PEM block in signing key")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("push: parse signing key: %w", err)
	}
	ecKey, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("push: signing key is %T, want ECDSA", parsed)
	}
	return &TokenSource{
		keyID:  keyID,
		teamID: teamID,
		key:    ecKey,
		now:    time.Now,
	}, nil
}

// LoadTokenSource reads the signing key from path.
func LoadTokenSource(path, keyID, teamID string) (*TokenSource, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("push: read signing key: %w", err)
	}
	return NewTokenSource(b, keyID, teamID)
}

// Bearer returns a provider token, reissuing it once the cached one nears
// the gateway's validity limit.
func (ts *TokenSource) Bearer() (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	now := ts.now()
	if ts.bearer != "" && now.Sub(ts.issuedAt) < tokenValidity {
		return ts.bearer, nil
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"iss": ts.teamID,
		"iat": now.Unix(),
	})
	tok.Header["kid"] = ts.keyID
	signed, err := tok.SignedString(ts.key)
	if err != nil {
		return "", fmt.Errorf("push: sign provider token: %w", err)
	}
	ts.bearer = signed
	ts.issuedAt = now
	return signed, nil
}
