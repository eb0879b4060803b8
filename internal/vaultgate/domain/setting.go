package domain

import "time"

// Setting is a runtime feature flag or site value, looked up by key.
type Setting struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

// Known setting keys.
const (
	SettingLoginOTPEnabled  = "login_otp_enabled"
	SettingIdentityRequired = "idme_required"
	SettingSiteName         = "site_name"
)
