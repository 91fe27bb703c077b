// Package config defines service configuration and its loading.
package config

import (
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`
	// CookieSecure marks the session cookie Secure; enable behind TLS.
	CookieSecure bool `koanf:"cookie_secure"`
	// SessionTTL expires idle browser sessions.
	SessionTTL time.Duration `koanf:"session_ttl"`

	// Connected app settings.
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	RedirectURI  string `koanf:"redirect_uri"`
	Sandbox      bool   `koanf:"sandbox"`
	// LoginURL overrides the production and sandbox login hosts.
	LoginURL string `koanf:"login_url"`
	// OAuthScopes is a space separated scope list.
	OAuthScopes string `koanf:"oauth_scopes"`
	APIVersion  string `koanf:"api_version"`

	// Integration user for the username-password flow, tried when no token
	// file exists. SecurityToken is appended to Password.
	Username      string `koanf:"username"`
	Password      string `koanf:"password"`
	SecurityToken string `koanf:"security_token"`
	// RestoreSavedTokens signs every new browser session in with the token
	// file or the integration user. Leave off unless the server is private.
	RestoreSavedTokens bool `koanf:"restore_saved_tokens"`

	// TokenFile stores tokens between runs; empty means ~/.salesforce_tokens/ae_dashboard.json.
	TokenFile string `koanf:"token_file"`
	// DatabaseURL enables snapshot history when set.
	DatabaseURL   string `koanf:"database_url"`
	SnapshotLimit int    `koanf:"snapshot_limit"`

	// Dashboard assumptions.
	AvgDealSize           float64 `koanf:"avg_deal_size"`
	WinRate               float64 `koanf:"win_rate"`
	FallbackCoverageRatio float64 `koanf:"fallback_coverage_ratio"`
	HistoryMonths         int     `koanf:"history_months"`

	// Query settings.
	WonStage string `koanf:"won_stage"`
	// MeetingKeywords is a comma separated list matched against Event subjects.
	MeetingKeywords  string `koanf:"meeting_keywords"`
	QueryConcurrency int    `koanf:"query_concurrency"`
	// AllowPartial serves dashboards when optional sources fail.
	AllowPartial bool `koanf:"allow_partial"`
}

// New returns a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "text",
		Addr:                  ":8080",
		SessionTTL:            12 * time.Hour,
		RedirectURI:           "http://localhost:8080/auth/callback",
		OAuthScopes:           "api refresh_token offline_access",
		APIVersion:            "v59.0",
		SnapshotLimit:         20,
		AvgDealSize:           5000,
		WinRate:               0.20,
		FallbackCoverageRatio: 5.0,
		HistoryMonths:         6,
		WonStage:              "Closed/Won",
		MeetingKeywords:       "meeting,call,demo",
		QueryConcurrency:      4,
		AllowPartial:          true,
	}
}

// Scopes splits OAuthScopes.
func (c *Config) Scopes() []string {
	return strings.Fields(c.OAuthScopes)
}

// Keywords splits MeetingKeywords, dropping blanks.
func (c *Config) Keywords() []string {
	var out []string
	for _, kw := range strings.Split(c.MeetingKeywords, ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

// PasswordLoginConfigured reports whether the integration user is set.
func (c *Config) PasswordLoginConfigured() bool {
	return c.Username != "" && c.Password != ""
}

// OAuthConfigured reports whether login can be offered.
func (c *Config) OAuthConfigured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}
