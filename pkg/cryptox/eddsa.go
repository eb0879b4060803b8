package cryptox

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// GenerateEd25519Key generates a new Ed25519 private key in PKCS8 PEM form.
func GenerateEd25519Key() ([]byte, error) {
	_, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to generate Ed25519 key: %w", err)
	}

	der, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to marshal PKCS8 key: %w", err)
	}

	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// LoadOrCreateEd25519Key reads a PEM signing key from path. When path is
// empty an in-memory key is generated; when the file is missing a new key
// is written there (encrypted under the keyring when one is given).
func LoadOrCreateEd25519Key(path string, kr *Keyring) ([]byte, error) {
	if path == "" {
		return GenerateEd25519Key()
	}
	path = filepath.Clean(path)

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if kr == nil {
			return data, nil
		}
		return kr.Open(data, []byte("signing-key"))
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}

	pemKey, err := GenerateEd25519Key()
	if err != nil {
		return nil, err
	}
	out := pemKey
	if kr != nil {
		if out, err = kr.Seal(pemKey, []byte("signing-key")); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := os.WriteFile(path, out, 0600); err != nil {
		return nil, fmt.Errorf("failed to write signing key: %w", err)
	}
	return pemKey, nil
}
