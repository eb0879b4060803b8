package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/domain"
	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/store"
	"github.com/aussiebroadwan/vaultgate/pkg/slogx"
)

const (
	DefaultLockoutThreshold = 5
	DefaultLockoutDuration  = 30 * time.Minute
)

// LockoutPolicy counts failed passcode attempts and locks the passcode
// once Threshold consecutive failures are reached.
type LockoutPolicy struct {
	Store     store.Store
	Threshold int
	Duration  time.Duration
	Clock     Clock
}

// LockoutState is the result of recording a failure. It is also the claim
// that RecordSuccess settles.
type LockoutState struct {
	Attempts          int
	AttemptsRemaining int
	Locked            bool
	Remaining         time.Duration

	lockedUntil *time.Time
}

func (p *LockoutPolicy) threshold() int {
	if p.Threshold <= 0 {
		return DefaultLockoutThreshold
	}
	return p.Threshold
}

func (p *LockoutPolicy) duration() time.Duration {
	if p.Duration <= 0 {
		return DefaultLockoutDuration
	}
	return p.Duration
}

// IsLocked reports whether the lock is active at now. A lock stamp in the
// past counts as unlocked.
func (p *LockoutPolicy) IsLocked(u domain.User, now time.Time) bool {
	return u.PasscodeLockedUntil != nil && now.Before(*u.PasscodeLockedUntil)
}

// LockoutRemaining is the time left on an active lock, or 0.
func (p *LockoutPolicy) LockoutRemaining(u domain.User, now time.Time) time.Duration {
	return lockRemaining(u.PasscodeLockedUntil, now)
}

// Check returns a *LockedError while the lock is active.
func (p *LockoutPolicy) Check(u domain.User, now time.Time) error {
	if p.IsLocked(u, now) {
		return &LockedError{Remaining: p.LockoutRemaining(u, now)}
	}
	return nil
}

// RecordFailure counts one attempt as failed before the passcode is
// compared, in a single atomic statement, so concurrent guesses can never
// get past Threshold. While a lock is active nothing is counted and a
// *LockedError is returned. A passcode that then matches is settled with
// RecordSuccess.
func (p *LockoutPolicy) RecordFailure(ctx context.Context, userID string) (LockoutState, error) {
	now := p.Clock.Now()
	threshold := p.threshold()

	upd, err := p.Store.Users().ClaimPasscodeAttempt(ctx, userID, now, threshold, now.Add(p.duration()))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return LockoutState{}, ErrUserNotFound
		}
		return LockoutState{}, fmt.Errorf("failed to record passcode failure: %w", err)
	}
	if !upd.Claimed {
		return LockoutState{}, &LockedError{Remaining: lockRemaining(upd.LockedUntil, now)}
	}

	state := LockoutState{
		Attempts:          upd.Attempts,
		AttemptsRemaining: max(0, threshold-upd.Attempts),
		lockedUntil:       upd.LockedUntil,
	}
	if upd.LockedUntil != nil && now.Before(*upd.LockedUntil) {
		state.Locked = true
		state.Remaining = upd.LockedUntil.Sub(now)
		slogx.FromContext(ctx).Warn("withdrawal passcode locked",
			"user_id", userID,
			"attempts", upd.Attempts,
			"locked_until", *upd.LockedUntil,
		)
	}
	return state, nil
}

// RecordSuccess settles a claim from RecordFailure whose passcode matched:
// the counter and the claim's own lock are cleared. A lock taken by another
// attempt in the meantime wins and a *LockedError is returned.
func (p *LockoutPolicy) RecordSuccess(ctx context.Context, userID string, claim LockoutState) error {
	now := p.Clock.Now()
	ok, err := p.Store.Users().ReleasePasscodeAttempts(ctx, userID, now, claim.lockedUntil)
	if err != nil {
		return fmt.Errorf("failed to reset passcode failures: %w", err)
	}
	if ok {
		return nil
	}

	u, err := getUser(ctx, p.Store, userID)
	if err != nil {
		return err
	}
	return &LockedError{Remaining: p.LockoutRemaining(u, now)}
}

func lockRemaining(until *time.Time, now time.Time) time.Duration {
	if until == nil || !now.Before(*until) {
		return 0
	}
	return until.Sub(now)
}

// Reset is the administrative unlock.
func (p *LockoutPolicy) Reset(ctx context.Context, userID string) error {
	if err := p.Store.Users().ResetPasscodeFailures(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to reset passcode failures: %w", err)
	}
	slogx.FromContext(ctx).Info("withdrawal passcode lockout reset", "user_id", userID)
	return nil
}

// LockoutMinutes rounds a remaining lockout up to whole minutes.
func LockoutMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Minute - 1) / time.Minute)
}
