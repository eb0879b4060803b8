package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"VAULTGATE_ISSUER", "PASSCODE_LOCKOUT_DURATION", "SESSION_LIFETIME", "GRANT_TTL", "PORT", "TRUST_PROXY_HEADERS"} {
		t.Setenv(k, "")
	}

	cfg := LoadConfig()
	assert.Equal(t, "vaultgate", cfg.Issuer)
	assert.Equal(t, 30*time.Minute, cfg.LockoutDuration)
	assert.Equal(t, 12*time.Hour, cfg.SessionLifetime)
	assert.Equal(t, 5*time.Minute, cfg.GrantTTL)
	assert.Equal(t, 8080, cfg.Port)
	assert.False(t, cfg.TrustProxyHeaders)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("PASSCODE_LOCKOUT_DURATION", "45")
	t.Setenv("GRANT_TTL", "90s")
	t.Setenv("PORT", "not-a-number")
	t.Setenv("SMTP_SKIP_VERIFY", "true")
	t.Setenv("TRUST_PROXY_HEADERS", "1")

	cfg := LoadConfig()
	assert.Equal(t, 45*time.Minute, cfg.LockoutDuration, "plain integers are minutes")
	assert.Equal(t, 90*time.Second, cfg.GrantTTL)
	assert.Equal(t, 8080, cfg.Port, "unparsable values fall back to the default")
	assert.True(t, cfg.SMTPSkipVerify)
	assert.True(t, cfg.TrustProxyHeaders)
}
