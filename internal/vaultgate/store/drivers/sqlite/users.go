package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/domain"
	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/store"
)

const userColumns = `
	id, email, name, password_hash,
	email_verified_at, idme_verified_at,
	two_factor_secret, two_factor_enabled, two_factor_confirmed_at,
	login_otp_hash, login_otp_expires_at,
	withdrawal_otp_hash, withdrawal_otp_expires_at,
	email_verification_otp_hash, email_verification_otp_expires_at,
	withdrawal_passcode_hash, withdrawal_passcode_set_at, require_withdrawal_passcode,
	passcode_failed_attempts, passcode_locked_until,
	last_login_at, created_at, updated_at`

type usersRepo struct {
	q querier
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var (
		u                                    domain.User
		emailVerified, idmeVerified          sql.NullInt64
		tfConfirmed, passcodeSet, lockedTill sql.NullInt64
		lastLogin                            sql.NullInt64
		loginHash, withdrawalHash, emailHash sql.NullString
		loginExp, withdrawalExp, emailExp    sql.NullInt64
		passcodeHash                         sql.NullString
		tfEnabled, requirePasscode           int
		createdAt, updatedAt                 int64
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.Name, &u.PasswordHash,
		&emailVerified, &idmeVerified,
		&u.TwoFactorSecret, &tfEnabled, &tfConfirmed,
		&loginHash, &loginExp,
		&withdrawalHash, &withdrawalExp,
		&emailHash, &emailExp,
		&passcodeHash, &passcodeSet, &requirePasscode,
		&u.PasscodeFailedAttempts, &lockedTill,
		&lastLogin, &createdAt, &updatedAt,
	)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}

	u.EmailVerifiedAt = mapNullTimePtr(emailVerified)
	u.IdentityVerifiedAt = mapNullTimePtr(idmeVerified)
	u.TwoFactorEnabled = tfEnabled != 0
	u.TwoFactorConfirmedAt = mapNullTimePtr(tfConfirmed)
	u.LoginOTP = domain.OTPSlot{Hash: mapNullString(loginHash), ExpiresAt: mapNullTimePtr(loginExp)}
	u.WithdrawalOTP = domain.OTPSlot{Hash: mapNullString(withdrawalHash), ExpiresAt: mapNullTimePtr(withdrawalExp)}
	u.EmailVerificationOTP = domain.OTPSlot{Hash: mapNullString(emailHash), ExpiresAt: mapNullTimePtr(emailExp)}
	u.WithdrawalPasscodeHash = mapNullString(passcodeHash)
	u.WithdrawalPasscodeSetAt = mapNullTimePtr(passcodeSet)
	u.RequireWithdrawalPasscode = requirePasscode != 0
	u.PasscodeLockedUntil = mapNullTimePtr(lockedTill)
	u.LastLoginAt = mapNullTimePtr(lastLogin)
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return u, nil
}

// otpColumns returns the hash and expiry column names of a purpose slot.
// Column names never come from user input.
func otpColumns(p domain.OTPPurpose) (hashCol, expCol string, err error) {
	switch p {
	case domain.OTPLogin:
		return "login_otp_hash", "login_otp_expires_at", nil
	case domain.OTPWithdrawal:
		return "withdrawal_otp_hash", "withdrawal_otp_expires_at", nil
	case domain.OTPEmailVerification:
		return "email_verification_otp_hash", "email_verification_otp_expires_at", nil
	}
	return "", "", fmt.Errorf("unknown otp purpose %q", p)
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO users (
			id, email, name, password_hash,
			email_verified_at, idme_verified_at,
			withdrawal_passcode_hash, withdrawal_passcode_set_at, require_withdrawal_passcode,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, u.PasswordHash,
		mapOptionalTime(u.EmailVerifiedAt), mapOptionalTime(u.IdentityVerifiedAt),
		mapStringNull(u.WithdrawalPasscodeHash), mapOptionalTime(u.WithdrawalPasscodeSetAt), boolInt(u.RequireWithdrawalPasscode),
		toMillis(u.CreatedAt), toMillis(u.UpdatedAt),
	)
	return mapConstraint(err)
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return scanUser(r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return scanUser(r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	return expectOne(r.q.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		hash, toMillis(time.Now()), userID))
}

func (r *usersRepo) SetEmailVerifiedAt(ctx context.Context, userID string, at *time.Time) error {
	return expectOne(r.q.ExecContext(ctx,
		`UPDATE users SET email_verified_at = ?, updated_at = ? WHERE id = ?`,
		mapOptionalTime(at), toMillis(time.Now()), userID))
}

func (r *usersRepo) SetIdentityVerifiedAt(ctx context.Context, userID string, at *time.Time) error {
	return expectOne(r.q.ExecContext(ctx,
		`UPDATE users SET idme_verified_at = ?, updated_at = ? WHERE id = ?`,
		mapOptionalTime(at), toMillis(time.Now()), userID))
}

func (r *usersRepo) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	return expectOne(r.q.ExecContext(ctx,
		`UPDATE users SET last_login_at = ? WHERE id = ?`, toMillis(at), userID))
}

func (r *usersRepo) SetTwoFactorSecret(ctx context.Context, userID string, sealed []byte) error {
	return expectOne(r.q.ExecContext(ctx,
		`UPDATE users SET two_factor_secret = ?, updated_at = ? WHERE id = ?`,
		sealed, toMillis(time.Now()), userID))
}

func (r *usersRepo) EnableTwoFactor(ctx context.Context, userID string, at time.Time) error {
	return expectOne(r.q.ExecContext(ctx, `
		UPDATE users
		SET two_factor_enabled = 1, two_factor_confirmed_at = ?, updated_at = ?
		WHERE id = ? AND two_factor_secret IS NOT NULL AND two_factor_enabled = 0`,
		toMillis(at), toMillis(at), userID))
}

func (r *usersRepo) ResetTwoFactor(ctx context.Context, userID string) error {
	return expectOne(r.q.ExecContext(ctx, `
		UPDATE users
		SET two_factor_secret = NULL, two_factor_enabled = 0, two_factor_confirmed_at = NULL, updated_at = ?
		WHERE id = ?`,
		toMillis(time.Now()), userID))
}

func (r *usersRepo) SetOTP(ctx context.Context, userID string, purpose domain.OTPPurpose, hash string, expiresAt time.Time) error {
	hashCol, expCol, err := otpColumns(purpose)
	if err != nil {
		return err
	}
	return expectOne(r.q.ExecContext(ctx,
		`UPDATE users SET `+hashCol+` = ?, `+expCol+` = ? WHERE id = ?`,
		hash, toMillis(expiresAt), userID))
}

func (r *usersRepo) ConsumeOTP(ctx context.Context, userID string, purpose domain.OTPPurpose, hash string) (bool, error) {
	hashCol, expCol, err := otpColumns(purpose)
	if err != nil {
		return false, err
	}
	res, err := r.q.ExecContext(ctx,
		`UPDATE users SET `+hashCol+` = NULL, `+expCol+` = NULL WHERE id = ? AND `+hashCol+` = ?`,
		userID, hash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *usersRepo) ClearOTP(ctx context.Context, userID string, purpose domain.OTPPurpose) error {
	hashCol, expCol, err := otpColumns(purpose)
	if err != nil {
		return err
	}
	return expectOne(r.q.ExecContext(ctx,
		`UPDATE users SET `+hashCol+` = NULL, `+expCol+` = NULL WHERE id = ?`, userID))
}

func (r *usersRepo) ClearExpiredOTPs(ctx context.Context, now time.Time) (int64, error) {
	var total int64
	for _, p := range []domain.OTPPurpose{domain.OTPLogin, domain.OTPWithdrawal, domain.OTPEmailVerification} {
		hashCol, expCol, _ := otpColumns(p)
		res, err := r.q.ExecContext(ctx,
			`UPDATE users SET `+hashCol+` = NULL, `+expCol+` = NULL WHERE `+expCol+` IS NOT NULL AND `+expCol+` <= ?`,
			toMillis(now))
		if err != nil {
			return total, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (r *usersRepo) SetWithdrawalPasscode(ctx context.Context, userID, hash string, at time.Time) error {
	return expectOne(r.q.ExecContext(ctx, `
		UPDATE users
		SET withdrawal_passcode_hash = ?, withdrawal_passcode_set_at = ?,
		    passcode_failed_attempts = 0, passcode_locked_until = NULL, updated_at = ?
		WHERE id = ?`,
		hash, toMillis(at), toMillis(at), userID))
}

func (r *usersRepo) ClearWithdrawalPasscode(ctx context.Context, userID string) error {
	return expectOne(r.q.ExecContext(ctx, `
		UPDATE users
		SET withdrawal_passcode_hash = NULL, withdrawal_passcode_set_at = NULL, updated_at = ?
		WHERE id = ?`,
		toMillis(time.Now()), userID))
}

func (r *usersRepo) SetRequireWithdrawalPasscode(ctx context.Context, userID string, required bool) error {
	return expectOne(r.q.ExecContext(ctx,
		`UPDATE users SET require_withdrawal_passcode = ?, updated_at = ? WHERE id = ?`,
		boolInt(required), toMillis(time.Now()), userID))
}

// ClaimPasscodeAttempt runs as one statement so concurrent attempts can
// never evaluate more guesses than threshold allows. SET expressions see the
// row as it was before the update.
func (r *usersRepo) ClaimPasscodeAttempt(ctx context.Context, userID string, now time.Time, threshold int, lockUntil time.Time) (store.LockoutUpdate, error) {
	var (
		attempts int
		locked   sql.NullInt64
	)
	err := r.q.QueryRowContext(ctx, `
		UPDATE users SET
			passcode_failed_attempts = CASE
				WHEN passcode_locked_until IS NOT NULL THEN 1
				ELSE passcode_failed_attempts + 1
			END,
			passcode_locked_until = CASE
				WHEN (CASE WHEN passcode_locked_until IS NOT NULL THEN 1 ELSE passcode_failed_attempts + 1 END) >= :threshold
					THEN :lock_until
				ELSE NULL
			END
		WHERE id = :id
		  AND (
			(passcode_locked_until IS NULL AND passcode_failed_attempts < :threshold)
			OR passcode_locked_until <= :now
		  )
		RETURNING passcode_failed_attempts, passcode_locked_until`,
		sql.Named("now", toMillis(now)),
		sql.Named("threshold", threshold),
		sql.Named("lock_until", toMillis(lockUntil)),
		sql.Named("id", userID),
	).Scan(&attempts, &locked)
	if err == nil {
		return store.LockoutUpdate{Attempts: attempts, LockedUntil: mapNullTimePtr(locked), Claimed: true}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return store.LockoutUpdate{}, err
	}

	// Refused: report the lock that is in the way, or ErrNotFound.
	err = r.q.QueryRowContext(ctx,
		`SELECT passcode_failed_attempts, passcode_locked_until FROM users WHERE id = ?`,
		userID).Scan(&attempts, &locked)
	if err != nil {
		return store.LockoutUpdate{}, mapNotFound(err)
	}
	return store.LockoutUpdate{Attempts: attempts, LockedUntil: mapNullTimePtr(locked)}, nil
}

func (r *usersRepo) ReleasePasscodeAttempts(ctx context.Context, userID string, now time.Time, held *time.Time) (bool, error) {
	res, err := r.q.ExecContext(ctx, `
		UPDATE users SET passcode_failed_attempts = 0, passcode_locked_until = NULL
		WHERE id = ?
		  AND (passcode_locked_until IS NULL OR passcode_locked_until <= ? OR passcode_locked_until = ?)`,
		userID, toMillis(now), mapOptionalTime(held))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *usersRepo) ResetPasscodeFailures(ctx context.Context, userID string) error {
	return expectOne(r.q.ExecContext(ctx,
		`UPDATE users SET passcode_failed_attempts = 0, passcode_locked_until = NULL WHERE id = ?`,
		userID))
}
