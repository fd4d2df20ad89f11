package authsvc

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrInvalidSigningKey is returned when the key file does not hold a PEM RSA private key.
var ErrInvalidSigningKey = errors.New("invalid signing key")

const (
	// KeyType is the PEM block type for RSA private keys.
	KeyType = "RSA PRIVATE KEY"

	// DefaultKeySize is the size in bits of generated signing keys.
	DefaultKeySize = 2048
)

// DecodePrivateKey parses a PEM-encoded PKCS #1 RSA private key.
func DecodePrivateKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block", ErrInvalidSigningKey)
	} else if block.Type != KeyType {
		return nil, fmt.Errorf("%w: block type %q", ErrInvalidSigningKey, block.Type)
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, errors.Join(ErrInvalidSigningKey, err)
	}

	return key, nil
}

// EncodePrivateKey returns key as a PEM-encoded PKCS #1 block.
func EncodePrivateKey(key *rsa.PrivateKey) []byte {
	//nolint:exhaustruct
	return pem.EncodeToMemory(&pem.Block{
		Type:  KeyType,
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
}

// GeneratePrivateKey creates a new RSA private key with the specified bit size.
func GeneratePrivateKey(bits int) (*rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	return key, nil
}

// LoadOrCreateSigningKey reads the signing key at path. If the file does not
// exist, a new key is generated and written there, readable by the owner only.
func LoadOrCreateSigningKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return DecodePrivateKey(data)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read key file: %w", err)
	}

	key, err := GeneratePrivateKey(DefaultKeySize)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create key dir: %w", err)
	}

	keyFile, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if errors.Is(err, os.ErrExist) {
		return LoadOrCreateSigningKey(path)
	} else if err != nil {
		return nil, fmt.Errorf("create key file: %w", err)
	}
	defer keyFile.Close()

	if _, err := keyFile.Write(EncodePrivateKey(key)); err != nil {
		return nil, fmt.Errorf("write key file: %w", err)
	}

	return key, nil
}
