package service

import (
	"context"
	"regexp"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/domain"
	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/notify"
	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/store/drivers/sqlite"
	"github.com/aussiebroadwan/vaultgate/pkg/cryptox"
	"github.com/aussiebroadwan/vaultgate/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const (
	testPassword = "correct horse battery"
	testIssuer   = "vaultgate-test"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (f *fakeNotifier) Send(_ context.Context, msg notify.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
}

func (f *fakeNotifier) titles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.msgs))
	for _, m := range f.msgs {
		out = append(out, m.Title)
	}
	return out
}

var codePattern = regexp.MustCompile(`\b(\d{6})\b`)

// lastCode returns the code of the most recent mailed message.
func (f *fakeNotifier) lastCode(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.msgs) - 1; i >= 0; i-- {
		m := f.msgs[i]
		if len(m.Channels) == 1 && m.Channels[0] == domain.ChannelMail {
			if match := codePattern.FindStringSubmatch(m.Body); match != nil {
				return match[1]
			}
		}
	}
	t.Fatal("no code was mailed")
	return ""
}

type fakeSettings map[string]string

func (s fakeSettings) Bool(_ context.Context, key string, def bool) bool {
	v, ok := s[key]
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func (s fakeSettings) String(_ context.Context, key, def string) string {
	if v, ok := s[key]; ok {
		return v
	}
	return def
}

type testEnv struct {
	store    *sqlite.Store
	clock    *testClock
	notifier *fakeNotifier
	settings fakeSettings
	verifier *jwtx.Verifier

	creds   *CredentialStore
	otp     *OTPEngine
	tf      *TwoFactorEngine
	lockout *LockoutPolicy
	auth    *SessionAuthority
	gate    *WithdrawalGate
	admin   *AdminService
	inbox   *InboxService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())

	kr, err := cryptox.NewKeyring([]byte("test master key"))
	require.NoError(t, err)

	pem, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	signer, err := jwtx.NewSigner("test-key", pem)
	require.NoError(t, err)
	keys := jwtx.NewKeySet()
	require.NoError(t, keys.AddSigner(signer))

	env := &testEnv{
		store:    s,
		clock:    &testClock{now: time.Now().UTC().Truncate(time.Millisecond)},
		notifier: &fakeNotifier{},
		settings: fakeSettings{},
		verifier: jwtx.NewVerifier(keys, testIssuer),
	}
	clock := Clock(env.clock.Now)

	env.creds = &CredentialStore{Store: s, Hasher: cryptox.NewHasher("test-pepper"), Clock: clock}

	env.otp, err = NewOTPEngine(s, kr, clock)
	require.NoError(t, err)

	env.tf = &TwoFactorEngine{
		Store:       s,
		Keyring:     kr,
		Credentials: env.creds,
		Settings:    env.settings,
		Notifier:    env.notifier,
		Clock:       clock,
	}
	env.lockout = &LockoutPolicy{Store: s, Threshold: DefaultLockoutThreshold, Duration: 30 * time.Minute, Clock: clock}
	env.auth = &SessionAuthority{
		Store:       s,
		Credentials: env.creds,
		OTP:         env.otp,
		TwoFactor:   env.tf,
		Settings:    env.settings,
		Notifier:    env.notifier,
		Clock:       clock,
	}
	env.gate = &WithdrawalGate{
		Store:       s,
		Credentials: env.creds,
		OTP:         env.otp,
		Lockout:     env.lockout,
		Notifier:    env.notifier,
		Signer:      signer,
		Issuer:      testIssuer,
		Clock:       clock,
	}
	env.admin = &AdminService{
		Store:       s,
		Credentials: env.creds,
		TwoFactor:   env.tf,
		Lockout:     env.lockout,
		Notifier:    env.notifier,
		Clock:       clock,
	}
	env.inbox = &InboxService{Store: s, Clock: clock}
	return env
}

// newUser creates a user with a verified email and the passcode requirement on.
func (e *testEnv) newUser(t *testing.T, email string) domain.User {
	t.Helper()
	u, err := e.admin.CreateUser(context.Background(), NewUser{
		Email:                     email,
		Name:                      "Test User",
		Password:                  testPassword,
		EmailVerified:             true,
		RequireWithdrawalPasscode: true,
	})
	require.NoError(t, err)
	return u
}

func (e *testEnv) user(t *testing.T, id string) domain.User {
	t.Helper()
	u, err := e.store.Users().GetUserByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

// enableTwoFactor runs enable + confirm and returns the secret and codes.
func (e *testEnv) enableTwoFactor(t *testing.T, userID string) (string, []string) {
	t.Helper()
	ctx := context.Background()

	enr, err := e.tf.Enable(ctx, userID, testPassword)
	require.NoError(t, err)

	code, err := CurrentCode(enr.Secret, e.clock.Now())
	require.NoError(t, err)

	codes, err := e.tf.Confirm(ctx, userID, code)
	require.NoError(t, err)
	return enr.Secret, codes
}
