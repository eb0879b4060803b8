package service

import (
	"context"
	"time"

	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/notify"
	"github.com/aussiebroadwan/vaultgate/pkg/jwtx"
)

// Clock returns the current time. A nil Clock is the wall clock.
type Clock func() time.Time

func (c Clock) Now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}

// Notifier delivers codes and security alerts. Delivery is best effort and
// never decides the outcome of a verification.
type Notifier interface {
	Send(ctx context.Context, msg notify.Message)
}

// Settings is a read-only lookup of runtime flags with defaults.
type Settings interface {
	Bool(ctx context.Context, key string, def bool) bool
	String(ctx context.Context, key, def string) string
}

// GrantSigner signs withdrawal grants.
type GrantSigner interface {
	Sign(claims jwtx.GrantClaims) (string, error)
}

type nopNotifier struct{}

func (nopNotifier) Send(context.Context, notify.Message) {}

type staticSettings struct{}

func (staticSettings) Bool(_ context.Context, _ string, def bool) bool       { return def }
func (staticSettings) String(_ context.Context, _ string, def string) string { return def }

func notifierOrNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}

func settingsOrDefaults(s Settings) Settings {
	if s == nil {
		return staticSettings{}
	}
	return s
}
