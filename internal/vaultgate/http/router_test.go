package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/domain"
	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/notify"
	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/service"
	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/settings"
	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/store/drivers/sqlite"
	"github.com/aussiebroadwan/vaultgate/pkg/cryptox"
	"github.com/aussiebroadwan/vaultgate/pkg/httpx"
	"github.com/aussiebroadwan/vaultgate/pkg/jwtx"
	"github.com/aussiebroadwan/vaultgate/pkg/slogx"
	"github.com/aussiebroadwan/vaultgate/pkg/vaultsdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAdminToken = "test-admin-token"
	testIssuer     = "vaultgate-test"
	testPassword   = "correct horse battery"
)

func TestMain(m *testing.M) {
	// The lockout tests need more than five submissions per window.
	httpx.StrictLimit = httpx.LenientLimit
	os.Exit(m.Run())
}

type mailbox struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (m *mailbox) Send(_ context.Context, msg notify.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msg)
}

var codePattern = regexp.MustCompile(`\b(\d{6})\b`)

func (m *mailbox) lastCode(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.msgs) - 1; i >= 0; i-- {
		if match := codePattern.FindStringSubmatch(m.msgs[i].Body); match != nil {
			return match[1]
		}
	}
	t.Fatal("no code was mailed")
	return ""
}

type testServer struct {
	srv    *httptest.Server
	client *vaultsdk.Client
	admin  *vaultsdk.AdminClient
	mail   *mailbox
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	kr, err := cryptox.NewKeyring([]byte("test master key"))
	require.NoError(t, err)
	pem, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	signer, err := jwtx.NewSigner("test-key", pem)
	require.NoError(t, err)
	keys := jwtx.NewKeySet()
	require.NoError(t, keys.AddSigner(signer))

	hashKey, blockKey := httpx.GenerateCookieKeys()
	cookie, err := httpx.NewSessionCookie(0, false, hashKey, blockKey)
	require.NoError(t, err)

	logger := slogx.NewWithWriter(io.Discard, slogx.Config{Service: "test"})
	mail := &mailbox{}
	prov := &settings.Provider{Store: st, Logger: logger}

	creds := &service.CredentialStore{Store: st, Hasher: cryptox.NewHasher("test-pepper")}
	otp, err := service.NewOTPEngine(st, kr, nil)
	require.NoError(t, err)
	tf := &service.TwoFactorEngine{Store: st, Keyring: kr, Credentials: creds, Settings: prov, Notifier: mail}
	lockout := &service.LockoutPolicy{Store: st, Threshold: service.DefaultLockoutThreshold, Duration: service.DefaultLockoutDuration}

	r := NewRouter(keys, "test", st, cookie, testAdminToken, logger)
	r.SessionAuthority = &service.SessionAuthority{
		Store: st, Credentials: creds, OTP: otp, TwoFactor: tf, Settings: prov, Notifier: mail,
	}
	r.TwoFactorEngine = tf
	r.WithdrawalGate = &service.WithdrawalGate{
		Store: st, Credentials: creds, OTP: otp, Lockout: lockout, Notifier: mail,
		Signer: signer, Issuer: testIssuer,
	}
	r.InboxService = &service.InboxService{Store: st}
	r.AdminService = &service.AdminService{
		Store: st, Credentials: creds, TwoFactor: tf, Lockout: lockout, Notifier: mail,
	}
	r.Settings = prov
	r.ApplyRoutes()

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	client := vaultsdk.NewClient(srv.URL)
	return &testServer{srv: srv, client: client, admin: client.Admin(testAdminToken), mail: mail}
}

func (ts *testServer) createUser(t *testing.T, email string) *vaultsdk.User {
	t.Helper()
	u, err := ts.admin.CreateUser(context.Background(), vaultsdk.CreateUserRequest{
		Email:         email,
		Name:          "Test User",
		Password:      testPassword,
		EmailVerified: true,
	})
	require.NoError(t, err)
	return u
}

// login runs the password and login OTP gates.
func (ts *testServer) login(t *testing.T, email string) *vaultsdk.Session {
	t.Helper()
	ctx := context.Background()

	sess, err := ts.client.Login(ctx, email, testPassword)
	require.NoError(t, err)
	require.Equal(t, string(domain.StageLoginOTP), sess.Stage())

	stage, err := sess.VerifyLoginOTP(ctx, ts.mail.lastCode(t))
	require.NoError(t, err)
	require.Equal(t, string(domain.StageAuthenticated), stage)
	return sess
}

func TestLoginAndWithdrawalGrant(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	u := ts.createUser(t, "alice@example.com")
	assert.True(t, u.RequiresPasscode, "passcode requirement defaults to on")

	sess := ts.login(t, "alice@example.com")

	status, err := sess.PasscodeStatus(ctx)
	require.NoError(t, err)
	assert.False(t, status.HasPasscode)
	assert.True(t, status.RequiresPasscode)

	require.NoError(t, sess.SetupPasscode(ctx, vaultsdk.PasscodeSetupRequest{
		Passcode: "482913", PasscodeConfirmation: "482913",
	}))

	grant, err := sess.VerifyPasscode(ctx, "482913")
	require.NoError(t, err)
	assert.Equal(t, "Passcode verified successfully.", grant.Message)
	assert.Equal(t, jwtx.AMRPasscode, grant.Method)

	// The grant verifies against the published key set.
	jwks, err := ts.client.GetJWKS(ctx)
	require.NoError(t, err)
	keys := jwtx.NewKeySet()
	require.NoError(t, keys.ResetFromJWKS(jwtx.JWKS(*jwks)))

	claims, err := jwtx.NewVerifier(keys, testIssuer).Verify(grant.Grant)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.Subject)
	assert.Equal(t, sess.ID(), claims.SID)
	assert.Equal(t, grant.GrantID, claims.ID)
}

func TestPasscodeLockoutOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	ts.createUser(t, "bob@example.com")
	sess := ts.login(t, "bob@example.com")

	require.NoError(t, sess.SetupPasscode(ctx, vaultsdk.PasscodeSetupRequest{
		Passcode: "482913", PasscodeConfirmation: "482913",
	}))

	for i := 1; i <= 5; i++ {
		_, err := sess.VerifyPasscode(ctx, "000000")
		apiErr, ok := vaultsdk.AsAPIError(err)
		require.True(t, ok, "attempt %d", i)
		assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		assert.Equal(t, "Incorrect passcode.", apiErr.Message)
		assert.Equal(t, 5-i, apiErr.RemainingAttempts())
		assert.Equal(t, i == 5, apiErr.IsLocked())
	}

	// Locked: the correct passcode is refused too.
	_, err := sess.VerifyPasscode(ctx, "482913")
	apiErr, ok := vaultsdk.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusLocked, apiErr.StatusCode)
	assert.True(t, apiErr.IsLocked())
	require.NotNil(t, apiErr.LockoutRemaining)
	assert.Equal(t, 30, *apiErr.LockoutRemaining)

	// Emailed codes are refused while locked.
	_, err = sess.SendWithdrawalOTP(ctx)
	assert.True(t, vaultsdk.HasStatus(err, http.StatusLocked))

	status, err := sess.PasscodeStatus(ctx)
	require.NoError(t, err)
	assert.True(t, status.IsLocked)
	assert.Equal(t, 30, status.LockoutRemaining)

	// An operator reset lifts the lock.
	u, err := ts.admin.GetUser(ctx, claimsUserID(t, sess))
	require.NoError(t, err)
	assert.Equal(t, 5, u.PasscodeFailedAttempts)
	require.NoError(t, ts.admin.ResetPasscodeLockout(ctx, u.ID))

	_, err = sess.VerifyPasscode(ctx, "482913")
	require.NoError(t, err)
}

func claimsUserID(t *testing.T, sess *vaultsdk.Session) string {
	t.Helper()
	info, err := sess.Refresh(context.Background())
	require.NoError(t, err)
	return info.UserID
}

func TestSetupWithWrongCurrentPasscode(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	ts.createUser(t, "carol@example.com")
	sess := ts.login(t, "carol@example.com")

	require.NoError(t, sess.SetupPasscode(ctx, vaultsdk.PasscodeSetupRequest{
		Passcode: "482913", PasscodeConfirmation: "482913",
	}))

	err := sess.SetupPasscode(ctx, vaultsdk.PasscodeSetupRequest{
		Passcode: "135790", PasscodeConfirmation: "135790",
	})
	apiErr, ok := vaultsdk.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "The current passcode is required to change your passcode.", apiErr.Message)

	err = sess.SetupPasscode(ctx, vaultsdk.PasscodeSetupRequest{
		Passcode: "135790", PasscodeConfirmation: "135790", CurrentPasscode: "111111",
	})
	apiErr, ok = vaultsdk.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "Current passcode is incorrect.", apiErr.Message)
	assert.Equal(t, 4, apiErr.RemainingAttempts())
}

func TestWithdrawalOTPOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	ts.createUser(t, "dave@example.com")
	sess := ts.login(t, "dave@example.com")

	sent, err := sess.SendWithdrawalOTP(ctx)
	require.NoError(t, err)
	assert.Equal(t, "OTP has been sent to your email address.", sent.Message)
	assert.Equal(t, 10, sent.ExpiresIn)
	assert.Equal(t, "d**e@example.com", sent.MaskedEmail)

	code := ts.mail.lastCode(t)

	_, err = sess.VerifyWithdrawalOTP(ctx, "abc")
	assert.True(t, vaultsdk.HasStatus(err, http.StatusUnprocessableEntity))

	grant, err := sess.VerifyWithdrawalOTP(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, jwtx.AMROTP, grant.Method)

	// Single use.
	_, err = sess.VerifyWithdrawalOTP(ctx, code)
	apiErr, ok := vaultsdk.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "Invalid or expired OTP.", apiErr.Message)
}

func TestGateRequiresEveryLoginStage(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	ts.createUser(t, "erin@example.com")

	sess, err := ts.client.Login(ctx, "erin@example.com", testPassword)
	require.NoError(t, err)

	_, err = sess.PasscodeStatus(ctx)
	apiErr, ok := vaultsdk.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, string(domain.StageLoginOTP), apiErr.NextStage)

	// Unknown tokens are rejected outright.
	_, err = ts.client.ResumeSession("not-a-session").PasscodeStatus(ctx)
	assert.True(t, vaultsdk.HasStatus(err, http.StatusUnauthorized))
}

func TestLoginRejectsBadPassword(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "frank@example.com")

	_, err := ts.client.Login(context.Background(), "frank@example.com", "wrong password")
	apiErr, ok := vaultsdk.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "These credentials do not match our records.", apiErr.Message)
}

func TestLogoutEndsSession(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	ts.createUser(t, "gina@example.com")
	sess := ts.login(t, "gina@example.com")

	require.NoError(t, sess.Logout(ctx))
	_, err := sess.Refresh(ctx)
	assert.True(t, vaultsdk.HasStatus(err, http.StatusUnauthorized))
}

func TestSessionCookie(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "hank@example.com")

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	hc := &http.Client{Jar: jar}

	body, _ := json.Marshal(vaultsdk.LoginRequest{Email: "hank@example.com", Password: testPassword})
	resp, err := hc.Post(ts.srv.URL+"/v1/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// No bearer header: the cookie alone carries the session.
	resp, err = hc.Get(ts.srv.URL + "/v1/session")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var info vaultsdk.SessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	assert.Equal(t, "hank@example.com", info.Email)
	assert.Equal(t, string(domain.StageLoginOTP), info.Stage)
}

func TestTwoFactorOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	ts.createUser(t, "iris@example.com")
	sess := ts.login(t, "iris@example.com")

	_, err := sess.EnableTwoFactor(ctx, "wrong password")
	assert.True(t, vaultsdk.HasStatus(err, http.StatusUnauthorized))

	enr, err := sess.EnableTwoFactor(ctx, testPassword)
	require.NoError(t, err)
	assert.Contains(t, enr.OTPAuthURL, "otpauth://totp/")

	code, err := service.CurrentCode(enr.Secret, time.Now())
	require.NoError(t, err)
	codes, err := sess.ConfirmTwoFactor(ctx, code)
	require.NoError(t, err)
	assert.Len(t, codes, service.RecoveryCodeCount)

	// The next login now passes through the two-factor gate.
	next, err := ts.client.Login(ctx, "iris@example.com", testPassword)
	require.NoError(t, err)
	stage, err := next.VerifyLoginOTP(ctx, ts.mail.lastCode(t))
	require.NoError(t, err)
	assert.Equal(t, string(domain.StageTwoFactor), stage)

	stage, err = next.TwoFactorChallenge(ctx, "", codes[0])
	require.NoError(t, err)
	assert.Equal(t, string(domain.StageAuthenticated), stage)
}

func TestNotificationsOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	ts.createUser(t, "jack@example.com")
	sess := ts.login(t, "jack@example.com")

	// Mail-only codes never reach the inbox; the fake mailbox stands in for
	// every channel here, so the inbox starts empty.
	list, err := sess.Notifications(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	err = sess.MarkNotificationRead(ctx, "not-a-uuid")
	assert.True(t, vaultsdk.HasStatus(err, http.StatusUnprocessableEntity))
}

func TestAdminRoutes(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	_, err := ts.client.Admin("wrong").ListSettings(ctx)
	assert.True(t, vaultsdk.HasStatus(err, http.StatusUnauthorized))

	_, err = ts.admin.GetUser(ctx, "missing")
	assert.True(t, vaultsdk.HasStatus(err, http.StatusNotFound))

	require.NoError(t, ts.admin.PutSetting(ctx, domain.SettingLoginOTPEnabled, "false"))
	err = ts.admin.PutSetting(ctx, domain.SettingIdentityRequired, "sometimes")
	assert.True(t, vaultsdk.HasStatus(err, http.StatusUnprocessableEntity))

	list, err := ts.admin.ListSettings(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.SettingLoginOTPEnabled, list[0].Key)
	assert.Equal(t, "false", list[0].Value)

	// With the login OTP off, a verified user is authenticated straight away.
	u := ts.createUser(t, "kate@example.com")
	sess, err := ts.client.Login(ctx, "kate@example.com", testPassword)
	require.NoError(t, err)
	assert.Equal(t, string(domain.StageAuthenticated), sess.Stage())

	require.NoError(t, ts.admin.SetRequirePasscode(ctx, u.ID, false))
	grant, err := sess.AuthorizeWithdrawal(ctx)
	require.NoError(t, err)
	assert.Equal(t, jwtx.AMRNone, grant.Method)

	require.NoError(t, ts.admin.ChangePassword(ctx, u.ID, vaultsdk.ChangePasswordRequest{
		NewPassword: "another long password", NewPasswordConfirmation: "another long password",
	}))
	_, err = sess.Refresh(ctx)
	assert.True(t, vaultsdk.HasStatus(err, http.StatusUnauthorized), "password change ends sessions")
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	live, err := ts.client.GetLiveness(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", live.Status)
	assert.Equal(t, "test", live.Version)

	ready, err := ts.client.GetReadiness(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", ready.Status)
	require.NotNil(t, ready.Checks)
	assert.Equal(t, "ok", ready.Checks.Database)
	assert.Equal(t, "ok", ready.Checks.Signer)

	jwks, err := ts.client.GetJWKS(ctx)
	require.NoError(t, err)
	require.Len(t, jwks.Keys, 1)
	assert.Equal(t, "test-key", jwks.Keys[0].Kid)
}
