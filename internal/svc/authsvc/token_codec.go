package authsvc

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mkrupp/pantry/internal/domain"
)

var (
	errNoSubject      = errors.New("no subject")
	errTokenExpired   = errors.New("expired")
	errTokenNotBefore = errors.New("issued in the future")
)

// SignToken encodes token as base64url(payload || signature), where payload is
// the JSON form of token and signature its RSA-PSS/SHA-256 signature.
func SignToken(token domain.AuthToken, key *rsa.PrivateKey) (string, error) {
	payload, err := json.Marshal(token)
	if err != nil {
		return "", fmt.Errorf("marshal token: %w", err)
	}

	hashed := sha256.Sum256(payload)

	signature, err := rsa.SignPSS(rand.Reader, key, crypto.SHA256, hashed[:], nil)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return base64.URLEncoding.EncodeToString(append(payload, signature...)), nil
}

// VerifyToken decodes a token produced by SignToken. Every failure is joined
// with domain.ErrInvalidAuthToken. The token must have been issued no later
// than now+skew and must not have expired before now-skew.
func VerifyToken(tokenString string, key *rsa.PublicKey, now time.Time, skew time.Duration) (domain.AuthToken, error) {
	invalid := func(err error) (domain.AuthToken, error) {
		return domain.AuthToken{}, errors.Join(domain.ErrInvalidAuthToken, err)
	}

	raw, err := base64.URLEncoding.DecodeString(tokenString)
	if err != nil {
		return invalid(fmt.Errorf("decode token: %w", err))
	}

	split := len(raw) - key.Size()
	if split <= 0 {
		return invalid(fmt.Errorf("token of %d bytes is too short", len(raw)))
	}

	payload, signature := raw[:split], raw[split:]

	hashed := sha256.Sum256(payload)
	if err := rsa.VerifyPSS(key, crypto.SHA256, hashed[:], signature, nil); err != nil {
		return invalid(fmt.Errorf("verify signature: %w", err))
	}

	var token domain.AuthToken
	if err := json.Unmarshal(payload, &token); err != nil {
		return invalid(fmt.Errorf("unmarshal token: %w", err))
	}

	switch {
	case token.Subject == "":
		return invalid(errNoSubject)
	case now.Add(-skew).Unix() > token.ExpiresAt:
		return invalid(errTokenExpired)
	case now.Add(skew).Unix() < token.IssuedAt:
		return invalid(errTokenNotBefore)
	}

	return token, nil
}
