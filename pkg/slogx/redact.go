package slogx

import (
	"log/slog"
	"strings"
)

const redacted = "[REDACTED]"

// Redact is a slog ReplaceAttr hook that blanks values of sensitive keys,
// including keys nested inside groups.
func Redact(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		return a
	}
	if IsSensitive(a.Key) {
		return slog.String(a.Key, redacted)
	}
	return a
}

// IsSensitive reports whether an attribute key names a secret whose value
// must never reach a log sink.
func IsSensitive(key string) bool {
	switch strings.ToLower(key) {
	case "password", "current_password", "new_password",
		"passcode", "current_passcode", "passcode_confirmation",
		"code", "otp", "recovery_code", "secret",
		"token", "session_token", "authorization", "cookie":
		return true
	}
	return false
}
