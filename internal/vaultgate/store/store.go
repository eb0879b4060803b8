package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/domain"
	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers implement it
// and expose sub-repositories per table. Transactions are only started from
// the root store, which stops nested transactions at compile time.
type Store interface {
	Users() Users
	RecoveryCodes() RecoveryCodes
	Sessions() Sessions
	Notifications() Notifications
	Settings() Settings

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// LockoutUpdate is the passcode lockout state after ClaimPasscodeAttempt.
// Claimed is false when an active lock refused the attempt.
type LockoutUpdate struct {
	Attempts    int
	LockedUntil *time.Time
	Claimed     bool
}

type Users interface {
	// CreateUser inserts a new user (id is provided by the caller via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail looks a user up by (case-insensitive) email.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// UpdatePasswordHash sets the password hash and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID, hash string) error

	// SetEmailVerifiedAt sets or clears (nil) the email verification stamp.
	SetEmailVerifiedAt(ctx context.Context, userID string, at *time.Time) error

	// SetIdentityVerifiedAt sets or clears (nil) the identity verification stamp.
	SetIdentityVerifiedAt(ctx context.Context, userID string, at *time.Time) error

	// TouchLastLogin records a successful password authentication.
	TouchLastLogin(ctx context.Context, userID string, at time.Time) error

	// SetTwoFactorSecret stores the sealed TOTP secret without enabling 2FA.
	SetTwoFactorSecret(ctx context.Context, userID string, sealed []byte) error

	// EnableTwoFactor marks 2FA enabled and stamps confirmed_at. It fails
	// with ErrNotFound unless a secret is present and 2FA is still disabled.
	EnableTwoFactor(ctx context.Context, userID string, at time.Time) error

	// ResetTwoFactor clears the secret, enabled flag and confirmed_at together.
	ResetTwoFactor(ctx context.Context, userID string) error

	// SetOTP replaces the code digest and expiry of a purpose slot.
	SetOTP(ctx context.Context, userID string, purpose domain.OTPPurpose, hash string, expiresAt time.Time) error

	// ConsumeOTP clears the slot only if it still holds hash. It returns
	// false when another request consumed or replaced the code first.
	ConsumeOTP(ctx context.Context, userID string, purpose domain.OTPPurpose, hash string) (bool, error)

	// ClearOTP empties a purpose slot unconditionally.
	ClearOTP(ctx context.Context, userID string, purpose domain.OTPPurpose) error

	// ClearExpiredOTPs empties every slot whose expiry is at or before now.
	ClearExpiredOTPs(ctx context.Context, now time.Time) (int64, error)

	// SetWithdrawalPasscode stores the passcode hash, stamps set_at and
	// resets the failure counter and lock.
	SetWithdrawalPasscode(ctx context.Context, userID, hash string, at time.Time) error

	// ClearWithdrawalPasscode removes the passcode and its set_at stamp.
	ClearWithdrawalPasscode(ctx context.Context, userID string) error

	// SetRequireWithdrawalPasscode toggles whether withdrawals need a factor.
	SetRequireWithdrawalPasscode(ctx context.Context, userID string, required bool) error

	// ClaimPasscodeAttempt atomically counts one passcode attempt before it
	// is compared. It is refused (Claimed false, row unchanged) while a lock
	// is active or the counter is already at threshold. An expired lock
	// restarts counting at 1 and reaching threshold stamps lockUntil.
	ClaimPasscodeAttempt(ctx context.Context, userID string, now time.Time, threshold int, lockUntil time.Time) (LockoutUpdate, error)

	// ReleasePasscodeAttempts zeroes the counter and clears the lock unless a
	// lock other than held is active at now. It reports whether the row was
	// reset.
	ReleasePasscodeAttempts(ctx context.Context, userID string, now time.Time, held *time.Time) (bool, error)

	// ResetPasscodeFailures zeroes the counter and clears the lock.
	ResetPasscodeFailures(ctx context.Context, userID string) error
}

type RecoveryCodes interface {
	// ReplaceRecoveryCodes deletes every code of the user and inserts hashes.
	ReplaceRecoveryCodes(ctx context.Context, userID string, hashes []string, at time.Time) error

	// ConsumeRecoveryCode deletes the matching code, reporting whether one existed.
	ConsumeRecoveryCode(ctx context.Context, userID, hash string) (bool, error)

	// CountRecoveryCodes returns how many unused codes remain.
	CountRecoveryCodes(ctx context.Context, userID string) (int, error)

	// DeleteAllRecoveryCodes removes every code of the user.
	DeleteAllRecoveryCodes(ctx context.Context, userID string) error
}

type Sessions interface {
	// CreateSession inserts a new login session.
	CreateSession(ctx context.Context, s domain.LoginSession) error

	// GetSessionByID returns a session by id.
	GetSessionByID(ctx context.Context, id string) (domain.LoginSession, error)

	// GetSessionByTokenHash resolves a session from its token fingerprint.
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (domain.LoginSession, error)

	// MarkLoginOTPVerified sets the login OTP flag on the session.
	MarkLoginOTPVerified(ctx context.Context, id string) error

	// MarkTwoFactorVerified sets the 2FA flag on the session.
	MarkTwoFactorVerified(ctx context.Context, id string) error

	// ClearVerification resets both verification flags.
	ClearVerification(ctx context.Context, id string) error

	// DeleteSession removes one session.
	DeleteSession(ctx context.Context, id string) error

	// DeleteUserSessions removes every session of a user.
	DeleteUserSessions(ctx context.Context, userID string) (int64, error)

	// DeleteExpiredSessions removes sessions whose expiry is at or before now.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

type Notifications interface {
	// CreateNotification stores an inbox entry.
	CreateNotification(ctx context.Context, n domain.Notification) error

	// ListNotifications returns the newest entries of a user first.
	ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error)

	// MarkNotificationRead stamps read_at; ErrNotFound if the entry is not the user's.
	MarkNotificationRead(ctx context.Context, userID string, id uuid.UUID, at time.Time) error
}

type Settings interface {
	// GetSetting returns a setting by key or ErrNotFound.
	GetSetting(ctx context.Context, key string) (domain.Setting, error)

	// PutSetting inserts or replaces a setting.
	PutSetting(ctx context.Context, s domain.Setting) error

	// ListSettings returns every setting ordered by key.
	ListSettings(ctx context.Context) ([]domain.Setting, error)
}
