package httpx

import "context"

type ctxKey string

const (
	CtxKeyUserID    ctxKey = "user_id"
	CtxKeySessionID ctxKey = "session_id"
	CtxKeyAuth      ctxKey = "auth"
)

// AuthInfo describes the caller resolved from a session token.
type AuthInfo struct {
	UserID    string
	SessionID string
	// Stage is the next login gate the session still has to pass, or
	// "authenticated" once every gate is satisfied.
	Stage string
}

// Authenticated reports whether every login gate has been passed.
func (a AuthInfo) Authenticated() bool { return a.Stage == StageAuthenticated }

// StageAuthenticated is the terminal login stage.
const StageAuthenticated = "authenticated"

// ContextWithAuth stores a as the authenticated caller of ctx.
func ContextWithAuth(ctx context.Context, a AuthInfo) context.Context {
	ctx = context.WithValue(ctx, CtxKeyUserID, a.UserID)
	ctx = context.WithValue(ctx, CtxKeySessionID, a.SessionID)
	ctx = context.WithValue(ctx, CtxKeyAuth, a)
	return ctx
}

// AuthFromContext returns the AuthInfo stored by SessionMiddleware.
func AuthFromContext(ctx context.Context) (AuthInfo, bool) {
	a, ok := ctx.Value(CtxKeyAuth).(AuthInfo)
	return a, ok
}

// UserIDFromContext returns the authenticated user ID, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(CtxKeyUserID).(string)
	return id, ok && id != ""
}
