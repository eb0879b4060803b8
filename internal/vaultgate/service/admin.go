package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/domain"
	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/store"
	"github.com/aussiebroadwan/vaultgate/pkg/idx"
	"github.com/aussiebroadwan/vaultgate/pkg/slogx"
)

// NewUser is the input of AdminService.CreateUser.
type NewUser struct {
	Email                     string
	Name                      string
	Password                  string
	EmailVerified             bool
	RequireWithdrawalPasscode bool
}

// AdminService holds the operator actions on a user's credentials. Every
// action is logged with the target user.
type AdminService struct {
	Store       store.Store
	Credentials *CredentialStore
	TwoFactor   *TwoFactorEngine
	Lockout     *LockoutPolicy
	Notifier    Notifier
	Clock       Clock
}

// CreateUser provisions an account. Registration itself is out of scope;
// this exists for operators and tests.
func (s *AdminService) CreateUser(ctx context.Context, in NewUser) (domain.User, error) {
	email := NormalizeEmail(in.Email)
	if email == "" {
		return domain.User{}, invalidField("email", "is required")
	}
	hash, err := s.Credentials.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, err
	}

	now := s.Clock.Now()
	u := domain.User{
		ID:                        idx.NewAt(now).String(),
		Email:                     email,
		Name:                      in.Name,
		PasswordHash:              hash,
		RequireWithdrawalPasscode: in.RequireWithdrawalPasscode,
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}
	if in.EmailVerified {
		u.EmailVerifiedAt = &now
	}

	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, invalidField("email", "is already registered")
		}
		return domain.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	slogx.FromContext(ctx).Info("admin: user created", "user_id", u.ID)
	return u, nil
}

// GetUser returns a user for the admin views.
func (s *AdminService) GetUser(ctx context.Context, userID string) (domain.User, error) {
	return getUser(ctx, s.Store, userID)
}

// ResetPasscodeLockout clears the failure counter and lock.
func (s *AdminService) ResetPasscodeLockout(ctx context.Context, userID string) error {
	if _, err := getUser(ctx, s.Store, userID); err != nil {
		return err
	}
	return s.Lockout.Reset(ctx, userID)
}

// SetRequireWithdrawalPasscode toggles whether withdrawals need a factor.
func (s *AdminService) SetRequireWithdrawalPasscode(ctx context.Context, userID string, required bool) error {
	if err := s.Store.Users().SetRequireWithdrawalPasscode(ctx, userID, required); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to update passcode requirement: %w", err)
	}
	slogx.FromContext(ctx).Info("admin: withdrawal passcode requirement changed", "user_id", userID, "required", required)
	return nil
}

// ResetLoginOTP clears the outstanding login code and ends every session,
// so the user passes the login OTP gate again on the next login.
func (s *AdminService) ResetLoginOTP(ctx context.Context, userID string) error {
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().ClearOTP(ctx, userID, domain.OTPLogin); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("failed to clear login otp: %w", err)
		}
		if _, err := tx.Sessions().DeleteUserSessions(ctx, userID); err != nil {
			return fmt.Errorf("failed to end sessions: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	slogx.FromContext(ctx).Info("admin: login otp reset", "user_id", userID)
	return nil
}

// DisableTwoFactor turns two-factor off without a password re-proof.
func (s *AdminService) DisableTwoFactor(ctx context.Context, userID string) error {
	u, err := getUser(ctx, s.Store, userID)
	if err != nil {
		return err
	}
	if !u.TwoFactorEnabled {
		return precondition("Two-factor authentication is not enabled.")
	}
	if err := s.TwoFactor.reset(ctx, userID); err != nil {
		return err
	}
	slogx.FromContext(ctx).Info("admin: two-factor disabled", "user_id", userID)
	securityAlert(ctx, s.Notifier, u, "Two-factor authentication disabled",
		"Two-factor authentication was disabled on your account by an administrator.")
	return nil
}

// ChangePassword sets a new password and ends every session of the user.
func (s *AdminService) ChangePassword(ctx context.Context, userID, password, confirmation string, notifyUser bool) error {
	if password != confirmation {
		return invalidField("new_password_confirmation", "does not match")
	}
	u, err := getUser(ctx, s.Store, userID)
	if err != nil {
		return err
	}
	if err := s.Credentials.SetPassword(ctx, userID, password); err != nil {
		return err
	}
	if _, err := s.Store.Sessions().DeleteUserSessions(ctx, userID); err != nil {
		return fmt.Errorf("failed to end sessions: %w", err)
	}

	slogx.FromContext(ctx).Info("admin: password changed", "user_id", userID, "notified", notifyUser)
	if notifyUser {
		securityAlert(ctx, s.Notifier, u, "Password Changed",
			"Your password has been changed by an administrator. If you did not request this change, please contact support immediately.")
	}
	return nil
}

// SetEmailVerified marks the email verified (true) or unverified (false).
func (s *AdminService) SetEmailVerified(ctx context.Context, userID string, verified bool) error {
	var at *time.Time
	if verified {
		now := s.Clock.Now()
		at = &now
	}
	if err := s.Store.Users().SetEmailVerifiedAt(ctx, userID, at); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to update email verification: %w", err)
	}
	slogx.FromContext(ctx).Info("admin: email verification changed", "user_id", userID, "verified", verified)
	return nil
}

// MarkIdentityVerified records a passed external identity check.
func (s *AdminService) MarkIdentityVerified(ctx context.Context, userID string) error {
	now := s.Clock.Now()
	if err := s.Store.Users().SetIdentityVerifiedAt(ctx, userID, &now); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to mark identity verified: %w", err)
	}
	slogx.FromContext(ctx).Info("admin: identity verified", "user_id", userID)
	return nil
}
