package models

import (
	"time"

	"github.com/google/uuid"
)

// Value types for security config entries
const (
	ConfigTypeString  = "string"
	ConfigTypeNumber  = "number"
	ConfigTypeBoolean = "boolean"
	ConfigTypeJSON    = "json"
)

// Config categories
const (
	ConfigCategoryRateLimit = "rate_limit"
	ConfigCategoryBlocking  = "blocking"
	ConfigCategorySession   = "session"
	ConfigCategoryAlerting  = "alerting"
	ConfigCategoryAuth      = "auth"
)

// Well-known config keys seeded at startup
const (
	ConfigKeyMaxAttemptsPerMinute     = "login_max_attempts_per_minute"
	ConfigKeyFailureWindowMinutes     = "login_failure_window_minutes"
	ConfigKeyAutoBlockThreshold       = "auto_block_threshold"
	ConfigKeyAutoBlockDurationMinutes = "auto_block_duration_minutes"
	ConfigKeyMaxActiveSessions        = "max_active_sessions"
	ConfigKeySessionLifetimeHours     = "session_lifetime_hours"
	ConfigKeyBlocklistCacheTTLSeconds = "blocklist_cache_ttl_seconds"
	ConfigKeyRequireVerifiedEmail     = "require_verified_email"
	ConfigKeyAlertFailedLoginMedium   = "alert_failed_login_medium_threshold"
	ConfigKeyAlertFailedLoginHigh     = "alert_failed_login_high_threshold"
	ConfigKeyAlertRateLimitAbuse      = "alert_rate_limit_abuse_threshold"
)

// SecurityConfig is a runtime-tunable policy value stored as a typed
// key/value pair. Values are stored as text and coerced on read.
type SecurityConfig struct {
	ID             uuid.UUID  `db:"id"`
	Key            string     `db:"key"`
	Value          string     `db:"value"`
	ValueType      string     `db:"value_type"`
	Category       string     `db:"category"`
	Description    *string    `db:"description"`
	LastModifiedBy *uuid.UUID `db:"last_modified_by"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

// ConfigDefault describes a config key seeded on first boot if missing.
type ConfigDefault struct {
	Key         string
	Value       string
	ValueType   string
	Category    string
	Description string
}

// ConfigDefaults is the fixed seed list. Seeding is idempotent: existing
// keys are never overwritten.
var ConfigDefaults = []ConfigDefault{
	{ConfigKeyMaxAttemptsPerMinute, "5", ConfigTypeNumber, ConfigCategoryRateLimit, "Maximum login attempts per IP per minute"},
	{ConfigKeyFailureWindowMinutes, "15", ConfigTypeNumber, ConfigCategoryRateLimit, "Trailing window for failed login counting"},
	{ConfigKeyAutoBlockThreshold, "10", ConfigTypeNumber, ConfigCategoryBlocking, "Failed logins in window before an IP is auto-blocked"},
	{ConfigKeyAutoBlockDurationMinutes, "30", ConfigTypeNumber, ConfigCategoryBlocking, "Duration of an automatic IP block"},
	{ConfigKeyMaxActiveSessions, "5", ConfigTypeNumber, ConfigCategorySession, "Maximum concurrent active sessions per actor"},
	{ConfigKeySessionLifetimeHours, "168", ConfigTypeNumber, ConfigCategorySession, "Absolute session lifetime in hours"},
	{ConfigKeyBlocklistCacheTTLSeconds, "60", ConfigTypeNumber, ConfigCategoryBlocking, "Refresh TTL for the in-process blocklist cache"},
	{ConfigKeyRequireVerifiedEmail, "true", ConfigTypeBoolean, ConfigCategoryAuth, "Require a verified email address at login"},
	{ConfigKeyAlertFailedLoginMedium, "5", ConfigTypeNumber, ConfigCategoryAlerting, "Failed logins raising a medium severity alert"},
	{ConfigKeyAlertFailedLoginHigh, "10", ConfigTypeNumber, ConfigCategoryAlerting, "Failed logins raising a high severity brute force alert"},
	{ConfigKeyAlertRateLimitAbuse, "10", ConfigTypeNumber, ConfigCategoryAlerting, "Rate limit violations raising an API abuse alert"},
}
