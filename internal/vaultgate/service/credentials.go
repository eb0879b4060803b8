package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/domain"
	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/store"
	"github.com/aussiebroadwan/vaultgate/pkg/cryptox"
	"github.com/aussiebroadwan/vaultgate/pkg/slogx"
)

const (
	PasscodeLength    = 6
	MinPasswordLength = 8
)

// CredentialStore hashes, stores and verifies the account password and the
// withdrawal passcode. Plaintext never leaves a call.
type CredentialStore struct {
	Store  store.Store
	Hasher *cryptox.Hasher
	Clock  Clock

	dummyOnce sync.Once
	dummyHash string
}

// isDigits reports whether s is exactly n ASCII digits.
func isDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ValidatePasscode checks the withdrawal passcode format.
func ValidatePasscode(field, passcode string) error {
	if !isDigits(passcode, PasscodeLength) {
		return invalidField(field, "must be exactly 6 digits")
	}
	return nil
}

// ValidatePassword checks the account password policy.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return invalidField("password", fmt.Sprintf("must be at least %d characters", MinPasswordLength))
	}
	return nil
}

// HashPassword validates and hashes a new account password.
func (c *CredentialStore) HashPassword(plaintext string) (string, error) {
	if err := ValidatePassword(plaintext); err != nil {
		return "", err
	}
	hash, err := c.Hasher.Hash(plaintext)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return hash, nil
}

// SetPassword replaces the account password.
func (c *CredentialStore) SetPassword(ctx context.Context, userID, plaintext string) error {
	hash, err := c.HashPassword(plaintext)
	if err != nil {
		return err
	}
	if err := c.Store.Users().UpdatePasswordHash(ctx, userID, hash); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// VerifyPassword checks plaintext against the stored password hash. A
// legacy or outdated hash that verifies is upgraded in place; a failed
// upgrade does not fail the login.
func (c *CredentialStore) VerifyPassword(ctx context.Context, u domain.User, plaintext string) bool {
	l := slogx.FromContext(ctx)

	needsRehash, err := c.Hasher.Verify(plaintext, u.PasswordHash)
	if err != nil {
		if !errors.Is(err, cryptox.ErrMismatch) {
			l.Warn("stored password hash unusable", "user_id", u.ID, "err", err)
		}
		return false
	}

	if needsRehash {
		hash, err := c.Hasher.Hash(plaintext)
		if err == nil {
			err = c.Store.Users().UpdatePasswordHash(ctx, u.ID, hash)
		}
		if err != nil {
			l.Warn("failed to upgrade password hash", "user_id", u.ID, "err", err)
		} else {
			l.Info("password hash upgraded", "user_id", u.ID)
		}
	}
	return true
}

// VerifyDummy spends the same work as a real password check. Login calls
// it for unknown emails so response time does not reveal which accounts exist.
func (c *CredentialStore) VerifyDummy(plaintext string) {
	c.dummyOnce.Do(func() {
		c.dummyHash, _ = c.Hasher.Hash("vaultgate-dummy-password")
	})
	_, _ = c.Hasher.Verify(plaintext, c.dummyHash)
}

// SetWithdrawalPasscode stores a new passcode and resets the lockout state.
func (c *CredentialStore) SetWithdrawalPasscode(ctx context.Context, userID, plaintext string) error {
	if err := ValidatePasscode("passcode", plaintext); err != nil {
		return err
	}
	hash, err := c.Hasher.Hash(plaintext)
	if err != nil {
		return fmt.Errorf("failed to hash passcode: %w", err)
	}
	if err := c.Store.Users().SetWithdrawalPasscode(ctx, userID, hash, c.Clock.Now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to store passcode: %w", err)
	}
	return nil
}

// VerifyWithdrawalPasscode compares plaintext with the stored passcode. It
// never touches the failure counter; that is the lockout policy's job.
func (c *CredentialStore) VerifyWithdrawalPasscode(u domain.User, plaintext string) bool {
	if !u.HasWithdrawalPasscode() {
		return false
	}
	_, err := c.Hasher.Verify(plaintext, u.WithdrawalPasscodeHash)
	return err == nil
}

// RemoveWithdrawalPasscode clears the passcode and its set-at stamp.
func (c *CredentialStore) RemoveWithdrawalPasscode(ctx context.Context, userID string) error {
	if err := c.Store.Users().ClearWithdrawalPasscode(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to clear passcode: %w", err)
	}
	return nil
}

// getUser loads a user and maps store.ErrNotFound.
func getUser(ctx context.Context, s store.Store, userID string) (domain.User, error) {
	u, err := s.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}
