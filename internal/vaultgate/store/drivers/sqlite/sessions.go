package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/domain"
)

const sessionColumns = `id, user_id, token_hash, login_otp_verified, two_factor_verified, created_at, expires_at`

type sessionsRepo struct {
	q querier
}

func scanSession(row rowScanner) (domain.LoginSession, error) {
	var (
		s                    domain.LoginSession
		otpOK, tfOK          int
		createdAt, expiresAt int64
	)
	if err := row.Scan(&s.ID, &s.UserID, &s.TokenHash, &otpOK, &tfOK, &createdAt, &expiresAt); err != nil {
		return domain.LoginSession{}, mapNotFound(err)
	}
	s.LoginOTPVerified = otpOK != 0
	s.TwoFactorVerified = tfOK != 0
	s.CreatedAt = fromMillis(createdAt)
	s.ExpiresAt = fromMillis(expiresAt)
	return s, nil
}

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.LoginSession) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO login_sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.TokenHash,
		boolInt(s.LoginOTPVerified), boolInt(s.TwoFactorVerified),
		toMillis(s.CreatedAt), toMillis(s.ExpiresAt),
	)
	return mapConstraint(err)
}

func (r *sessionsRepo) GetSessionByID(ctx context.Context, id string) (domain.LoginSession, error) {
	return scanSession(r.q.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM login_sessions WHERE id = ?`, id))
}

func (r *sessionsRepo) GetSessionByTokenHash(ctx context.Context, tokenHash string) (domain.LoginSession, error) {
	return scanSession(r.q.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM login_sessions WHERE token_hash = ?`, tokenHash))
}

func (r *sessionsRepo) MarkLoginOTPVerified(ctx context.Context, id string) error {
	return expectOne(r.q.ExecContext(ctx,
		`UPDATE login_sessions SET login_otp_verified = 1 WHERE id = ?`, id))
}

func (r *sessionsRepo) MarkTwoFactorVerified(ctx context.Context, id string) error {
	return expectOne(r.q.ExecContext(ctx,
		`UPDATE login_sessions SET two_factor_verified = 1 WHERE id = ?`, id))
}

func (r *sessionsRepo) ClearVerification(ctx context.Context, id string) error {
	return expectOne(r.q.ExecContext(ctx,
		`UPDATE login_sessions SET login_otp_verified = 0, two_factor_verified = 0 WHERE id = ?`, id))
}

func (r *sessionsRepo) DeleteSession(ctx context.Context, id string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM login_sessions WHERE id = ?`, id)
	return err
}

func (r *sessionsRepo) DeleteUserSessions(ctx context.Context, userID string) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM login_sessions WHERE user_id = ?`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM login_sessions WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
