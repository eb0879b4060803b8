package cryptox

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateDigits returns n decimal digits drawn uniformly from crypto/rand.
// Leading zeros are kept, so "004213" is a valid six digit code.
func GenerateDigits(n int) (string, error) {
	return randomString("0123456789", n)
}

// GenerateAlphanumeric returns n characters from [a-zA-Z0-9].
func GenerateAlphanumeric(n int) (string, error) {
	return randomString(alphanumeric, n)
}

// GenerateRecoveryCode returns a code of the form XXXXXXXXXX-XXXXXXXXXX
// (two 10 character alphanumeric segments, roughly 119 bits).
func GenerateRecoveryCode() (string, error) {
	a, err := GenerateAlphanumeric(10)
	if err != nil {
		return "", err
	}
	b, err := GenerateAlphanumeric(10)
	if err != nil {
		return "", err
	}
	return a + "-" + b, nil
}

func randomString(charset string, n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("length must be positive, got %d", n)
	}
	out := make([]byte, n)
	max := big.NewInt(int64(len(charset)))
	for i := range out {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate random code: %w", err)
		}
		out[i] = charset[v.Int64()]
	}
	return string(out), nil
}
