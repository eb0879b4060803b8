package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/service"
	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/store"
	"github.com/aussiebroadwan/vaultgate/pkg/httpx"
	"github.com/aussiebroadwan/vaultgate/pkg/jwtx"
	"github.com/aussiebroadwan/vaultgate/pkg/slogx"

	_ "github.com/aussiebroadwan/vaultgate/api/vaultgate" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store
	cookie       *httpx.SessionCookie
	adminToken   string

	SessionAuthority *service.SessionAuthority
	TwoFactorEngine  *service.TwoFactorEngine
	WithdrawalGate   *service.WithdrawalGate
	InboxService     *service.InboxService
	AdminService     *service.AdminService
	Settings         SettingsStore
}

func NewRouter(
	keys *jwtx.KeySet,
	buildVersion string,
	st store.Store,
	cookie *httpx.SessionCookie,
	adminToken string,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		cookie:       cookie,
		adminToken:   adminToken,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerLogin()
	r.registerTwoFactor()
	r.registerWithdrawal()
	r.registerNotifications()
	r.registerAdmin()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			VaultGate Withdrawal Authorization API
//	@version		0.1.0
//	@description	Login verification gates and the withdrawal passcode gate for the member portal.
//	@description
//	@description				Withdrawal grants are EdDSA signed JWTs and can be verified using the JWKS endpoint.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/vaultgate
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	SessionAuth
//	@in							header
//	@name						Authorization
//	@description				Opaque session token from /v1/login. Format: "Bearer {token}". The session cookie is accepted too.
//
//	@securityDefinitions.apikey	AdminAuth
//	@in							header
//	@name						Authorization
//	@description				Static operator token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// session accepts any live login session, including one part-way through
// the login gates.
func (r *Router) session(h http.HandlerFunc, limit httpx.RateLimitConfig) http.Handler {
	return httpx.Chain(h,
		httpx.SessionMiddleware(r.SessionAuthority, r.cookie),
		httpx.RateLimitByUser(limit),
	)
}

// authenticated additionally requires every login gate to be passed.
func (r *Router) authenticated(h http.HandlerFunc, limit httpx.RateLimitConfig) http.Handler {
	return httpx.Chain(h,
		httpx.SessionMiddleware(r.SessionAuthority, r.cookie),
		httpx.RequireAuthenticated(),
		httpx.RateLimitByUser(limit),
	)
}

func (r *Router) admin(h http.HandlerFunc) http.Handler {
	return httpx.Chain(h,
		httpx.RequireAdminToken(r.adminToken),
		httpx.RateLimitByIP(httpx.ModerateLimit),
	)
}

func (r *Router) registerLogin() {
	h := &LoginHandler{Auth: r.SessionAuthority, Cookie: r.cookie}

	// POST /login - strict rate limit by IP + email to slow password guessing
	r.Mux.Handle("POST /v1/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIPAndJSONField(httpx.StrictLimit, "email"),
		),
	)

	r.Mux.Handle("POST /v1/logout", r.session(h.HandleLogout, httpx.ModerateLimit))
	r.Mux.Handle("GET /v1/session", r.session(h.HandleSession, httpx.LenientLimit))

	// Code submissions and sends are strict: six digits is a small space
	r.Mux.Handle("POST /v1/login/otp/resend", r.session(h.HandleResendLoginOTP, httpx.StrictLimit))
	r.Mux.Handle("POST /v1/login/otp/verify", r.session(h.HandleVerifyLoginOTP, httpx.StrictLimit))
	r.Mux.Handle("POST /v1/email/verification/send", r.session(h.HandleSendEmailVerification, httpx.StrictLimit))
	r.Mux.Handle("POST /v1/email/verification/verify", r.session(h.HandleVerifyEmail, httpx.StrictLimit))
	r.Mux.Handle("POST /v1/two-factor/challenge", r.session(h.HandleTwoFactorChallenge, httpx.StrictLimit))
}

func (r *Router) registerTwoFactor() {
	h := &TwoFactorHandler{TwoFactor: r.TwoFactorEngine}

	r.Mux.Handle("POST /v1/two-factor/enable", r.authenticated(h.HandleEnable, httpx.ModerateLimit))
	r.Mux.Handle("POST /v1/two-factor/confirm", r.authenticated(h.HandleConfirm, httpx.StrictLimit))
	r.Mux.Handle("POST /v1/two-factor/disable", r.authenticated(h.HandleDisable, httpx.ModerateLimit))
	r.Mux.Handle("POST /v1/two-factor/recovery-codes", r.authenticated(h.HandleRegenerateRecoveryCodes, httpx.ModerateLimit))
}

func (r *Router) registerWithdrawal() {
	h := &WithdrawalHandler{Gate: r.WithdrawalGate}

	r.Mux.Handle("GET /v1/withdrawal/passcode/status", r.authenticated(h.HandleStatus, httpx.LenientLimit))
	r.Mux.Handle("POST /v1/withdrawal/passcode/setup", r.authenticated(h.HandleSetup, httpx.ModerateLimit))
	r.Mux.Handle("POST /v1/withdrawal/passcode/verify", r.authenticated(h.HandleVerify, httpx.StrictLimit))
	r.Mux.Handle("POST /v1/withdrawal/passcode/remove", r.authenticated(h.HandleRemove, httpx.StrictLimit))
	r.Mux.Handle("POST /v1/withdrawal/otp/send", r.authenticated(h.HandleSendOTP, httpx.StrictLimit))
	r.Mux.Handle("POST /v1/withdrawal/otp/verify", r.authenticated(h.HandleVerifyOTP, httpx.StrictLimit))
	r.Mux.Handle("POST /v1/withdrawal/authorize", r.authenticated(h.HandleAuthorize, httpx.ModerateLimit))
}

func (r *Router) registerNotifications() {
	h := &NotificationsHandler{Inbox: r.InboxService}

	r.Mux.Handle("GET /v1/notifications", r.authenticated(h.HandleList, httpx.LenientLimit))
	r.Mux.Handle("POST /v1/notifications/{id}/read", r.authenticated(h.HandleMarkRead, httpx.LenientLimit))
}

func (r *Router) registerAdmin() {
	h := &AdminHandler{Admin: r.AdminService, Settings: r.Settings}

	r.Mux.Handle("POST /v1/admin/users", r.admin(h.HandleCreateUser))
	r.Mux.Handle("GET /v1/admin/users/{id}", r.admin(h.HandleGetUser))
	r.Mux.Handle("POST /v1/admin/users/{id}/passcode/reset-lockout", r.admin(h.HandleResetPasscodeLockout))
	r.Mux.Handle("POST /v1/admin/users/{id}/passcode/requirement", r.admin(h.HandleSetRequirePasscode))
	r.Mux.Handle("POST /v1/admin/users/{id}/login-otp/reset", r.admin(h.HandleResetLoginOTP))
	r.Mux.Handle("POST /v1/admin/users/{id}/two-factor/disable", r.admin(h.HandleDisableTwoFactor))
	r.Mux.Handle("POST /v1/admin/users/{id}/password", r.admin(h.HandleChangePassword))
	r.Mux.Handle("POST /v1/admin/users/{id}/email-verification", r.admin(h.HandleSetEmailVerified))
	r.Mux.Handle("POST /v1/admin/users/{id}/identity-verification", r.admin(h.HandleMarkIdentityVerified))
	r.Mux.Handle("GET /v1/admin/settings", r.admin(h.HandleListSettings))
	r.Mux.Handle("PUT /v1/admin/settings/{key}", r.admin(h.HandlePutSetting))
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
