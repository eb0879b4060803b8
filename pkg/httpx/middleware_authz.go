package httpx

import (
	"crypto/subtle"
	"net/http"
)

// RequireAuthenticated rejects sessions that have not passed every login
// gate. It must run after SessionMiddleware.
func RequireAuthenticated() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info, ok := AuthFromContext(r.Context())
			if !ok || !info.Authenticated() {
				WriteJSON(w, http.StatusForbidden, map[string]any{
					"success":    false,
					"message":    "Additional verification is required.",
					"next_stage": info.Stage,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdminToken guards operator routes with a static bearer token. An
// empty token disables the routes entirely.
func RequireAdminToken(token string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := bearerToken(r)
			if token == "" || got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeBearerError(w, "admin token required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
