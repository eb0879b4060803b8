package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/hkdf"
)

// ErrDecrypt is returned when ciphertext is truncated, tampered with or was
// sealed under another key.
var ErrDecrypt = errors.New("cryptox: decryption failed")

// Keyring holds the service master key. It provides authenticated
// encryption for secrets that must be recovered later (TOTP seeds) and
// derives independent subkeys for keyed digests (one-time codes).
type Keyring struct {
	aead   cipher.AEAD
	master []byte
}

// NewKeyring derives a 32-byte AES-256 key from arbitrary key material.
func NewKeyring(material []byte) (*Keyring, error) {
	if len(material) == 0 {
		return nil, errors.New("cryptox: empty master key material")
	}
	sum := sha256.Sum256(material)

	block, err := aes.NewCipher(sum[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Keyring{aead: gcm, master: sum[:]}, nil
}

// LoadKeyring loads master key material from (in order) the file at path,
// the environment variable envVar, or generates an ephemeral key. The
// boolean result reports whether the key is ephemeral, in which case
// encrypted TOTP secrets will not survive a restart.
func LoadKeyring(path, envVar string) (*Keyring, bool, error) {
	var material []byte
	ephemeral := false

	switch {
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, false, fmt.Errorf("failed to read master key file: %w", err)
		}
		material = data
	case envVar != "" && os.Getenv(envVar) != "":
		material = []byte(os.Getenv(envVar))
	default:
		material = make([]byte, 32)
		if _, err := rand.Read(material); err != nil {
			return nil, false, fmt.Errorf("failed to generate ephemeral master key: %w", err)
		}
		ephemeral = true
	}

	kr, err := NewKeyring(material)
	if err != nil {
		return nil, false, err
	}
	return kr, ephemeral, nil
}

// Seal encrypts plaintext with AES-256-GCM. The output format is
// [12-byte nonce][ciphertext][16-byte tag]. The additional data binds the
// ciphertext to its owner so a value copied to another row fails to open.
func (k *Keyring) Seal(plaintext, additional []byte) ([]byte, error) {
	nonce := make([]byte, k.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return k.aead.Seal(nonce, nonce, plaintext, additional), nil
}

// Open decrypts data produced by Seal with the same additional data.
func (k *Keyring) Open(sealed, additional []byte) ([]byte, error) {
	n := k.aead.NonceSize()
	if len(sealed) < n+k.aead.Overhead() {
		return nil, ErrDecrypt
	}
	plaintext, err := k.aead.Open(nil, sealed[:n], sealed[n:], additional)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

// DeriveKey expands a 32-byte subkey for the given purpose using HKDF-SHA256.
func (k *Keyring) DeriveKey(info string) ([]byte, error) {
	out := make([]byte, 32)
	r := hkdf.New(sha256.New, k.master, nil, []byte(info))
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return out, nil
}

// MAC returns a base64url HMAC-SHA256 over the parts, each prefixed with its
// length so that ("ab","c") and ("a","bc") never collide.
func MAC(key []byte, parts ...string) string {
	m := hmac.New(sha256.New, key)
	for _, p := range parts {
		fmt.Fprintf(m, "%d:", len(p))
		io.WriteString(m, p)
	}
	return base64.RawURLEncoding.EncodeToString(m.Sum(nil))
}

// EqualMAC compares two encoded digests in constant time.
func EqualMAC(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}
