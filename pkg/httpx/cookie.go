package httpx

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
)

// SessionCookieName is the cookie carrying the opaque login session token.
const SessionCookieName = "vaultgate_session"

// SessionCookie signs and encrypts the session token into a cookie. Key
// pairs allow rotation: the first pair encodes, every pair may decode.
type SessionCookie struct {
	codecs []securecookie.Codec
	maxAge time.Duration
	secure bool
}

// NewSessionCookie builds a cookie codec. hashKey should be 32 or 64 bytes
// and blockKey 16, 24 or 32 bytes (AES-128/192/256).
func NewSessionCookie(maxAge time.Duration, secure bool, keyPairs ...[]byte) (*SessionCookie, error) {
	if len(keyPairs) == 0 || len(keyPairs[0]) == 0 {
		return nil, errors.New("httpx: session cookie requires a hash key")
	}
	codecs := securecookie.CodecsFromPairs(keyPairs...)
	for _, c := range codecs {
		if sc, ok := c.(*securecookie.SecureCookie); ok {
			sc.MaxAge(int(maxAge.Seconds()))
		}
	}
	return &SessionCookie{codecs: codecs, maxAge: maxAge, secure: secure}, nil
}

// GenerateCookieKeys returns a fresh random hash and block key, used when
// no keys are configured (sessions then do not survive a restart).
func GenerateCookieKeys() (hashKey, blockKey []byte) {
	return securecookie.GenerateRandomKey(64), securecookie.GenerateRandomKey(32)
}

// Write sets the session cookie.
func (c *SessionCookie) Write(w http.ResponseWriter, token string) error {
	encoded, err := securecookie.EncodeMulti(SessionCookieName, token, c.codecs...)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    encoded,
		Path:     "/",
		MaxAge:   int(c.maxAge.Seconds()),
		Secure:   c.secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	return nil
}

// Read returns the session token from the request cookie.
func (c *SessionCookie) Read(r *http.Request) (string, error) {
	ck, err := r.Cookie(SessionCookieName)
	if err != nil {
		return "", err
	}
	var token string
	if err := securecookie.DecodeMulti(SessionCookieName, ck.Value, &token, c.codecs...); err != nil {
		return "", err
	}
	return token, nil
}

// Clear expires the session cookie.
func (c *SessionCookie) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   c.secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}
