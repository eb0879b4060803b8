package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Issuer     string // Optional: issuer claim for withdrawal grants (default: vaultgate)
	AdminToken string // Optional: bearer token for /v1/admin routes; empty disables them

	DatabaseFile   string // Optional: path to SQLite database file (default: ./vaultgate.db)
	PepperFile     string // Optional: path to the password/passcode pepper (default: ./pepper)
	MasterKeyPath  string // Optional: master key file; falls back to VAULTGATE_MASTER_KEY, then an ephemeral key
	SigningKeyFile string // Optional: grant signing key, sealed under the master key (default: ./signing.key)
	SigningKeyID   string // Optional: kid published in the JWKS (default: vaultgate-1)
	SettingsFile   string // Optional: TOML settings seed, reloaded on change

	CookieHashKey  string // Optional: base64 session cookie HMAC key; random when unset
	CookieBlockKey string // Optional: base64 session cookie AES key; random when unset

	LockoutDuration time.Duration // Passcode lockout length (default: 30m)
	SessionLifetime time.Duration // Login session lifetime (default: 12h)
	GrantTTL        time.Duration // Withdrawal grant lifetime (default: 5m)

	SMTPHost       string // Optional: SMTPS relay host:port; mail is disabled without it
	SMTPUser       string
	SMTPPassword   string
	SMTPFrom       string
	SMTPCert       string // Optional: extra CA certificate for the relay
	SMTPSkipVerify bool

	TrustProxyHeaders bool // Key rate limits on X-Forwarded-For/X-Real-IP (default: false)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	LogFile              string        // Optional: also write logs to this rotated file
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	return Config{
		Issuer:     getEnvOrDefault("VAULTGATE_ISSUER", "vaultgate"),
		AdminToken: os.Getenv("VAULTGATE_ADMIN_TOKEN"),

		DatabaseFile:   getEnvOrDefault("VAULTGATE_DATABASE_FILE", "vaultgate.db"),
		PepperFile:     getEnvOrDefault("VAULTGATE_PEPPER_FILE", "pepper"),
		MasterKeyPath:  os.Getenv("VAULTGATE_MASTER_KEY_PATH"),
		SigningKeyFile: getEnvOrDefault("VAULTGATE_SIGNING_KEY_FILE", "signing.key"),
		SigningKeyID:   getEnvOrDefault("VAULTGATE_SIGNING_KEY_ID", "vaultgate-1"),
		SettingsFile:   os.Getenv("VAULTGATE_SETTINGS_FILE"),

		CookieHashKey:  os.Getenv("VAULTGATE_COOKIE_HASH_KEY"),
		CookieBlockKey: os.Getenv("VAULTGATE_COOKIE_BLOCK_KEY"),

		LockoutDuration: getEnvDurationOrDefault("PASSCODE_LOCKOUT_DURATION", 30*time.Minute),
		SessionLifetime: getEnvDurationOrDefault("SESSION_LIFETIME", 12*time.Hour),
		GrantTTL:        getEnvDurationOrDefault("GRANT_TTL", 5*time.Minute),

		SMTPHost:       os.Getenv("SMTP_HOST"),
		SMTPUser:       os.Getenv("SMTP_USER"),
		SMTPPassword:   os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:       getEnvOrDefault("SMTP_FROM", "VaultGate <noreply@example.com>"),
		SMTPCert:       os.Getenv("SMTP_CERT_FILE"),
		SMTPSkipVerify: getEnvBoolOrDefault("SMTP_SKIP_VERIFY", false),

		TrustProxyHeaders: getEnvBoolOrDefault("TRUST_PROXY_HEADERS", false),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		LogFile:              os.Getenv("LOG_FILE"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Plain integers are minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
