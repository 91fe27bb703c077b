package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variables read by Load.
const (
	EnvPrefix     = "QUOTABOARD_"
	EnvConfigFile = "QUOTABOARD_CONFIG"
	// Connected app variables shared with other Salesforce tooling.
	salesforcePrefix = "SALESFORCE_"
)

var salesforceKeys = map[string]string{
	"salesforce_client_id":       "client_id",
	"salesforce_consumer_key":    "client_id",
	"salesforce_client_secret":   "client_secret",
	"salesforce_consumer_secret": "client_secret",
	"salesforce_redirect_uri":    "redirect_uri",
	"salesforce_sandbox":         "sandbox",
	"salesforce_login_url":       "login_url",
	"salesforce_domain":          "login_url",
	"salesforce_oauth_scopes":    "oauth_scopes",
	"salesforce_username":        "username",
	"salesforce_password":        "password",
	"salesforce_security_token":  "security_token",
}

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if QUOTABOARD_CONFIG is set
//  3. SALESFORCE_* connected app variables
//  4. env (prefix QUOTABOARD_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
		}
	}

	sfProvider := env.Provider(salesforcePrefix, ".", func(s string) string {
		return salesforceKeys[strings.ToLower(s)]
	})
	if err := k.Load(sfProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	// QUOTABOARD_WIN_RATE -> win_rate (flat keys matching the koanf tags).
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, strings.ToLower(EnvPrefix))
		if s == "config" {
			return ""
		}
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.AvgDealSize <= 0:
		return fmt.Errorf("%w: avg_deal_size must be positive", ErrInvalidConfig)
	case c.WinRate <= 0 || c.WinRate > 1:
		return fmt.Errorf("%w: win_rate must be in (0, 1]", ErrInvalidConfig)
	case c.FallbackCoverageRatio <= 0:
		return fmt.Errorf("%w: fallback_coverage_ratio must be positive", ErrInvalidConfig)
	case c.HistoryMonths < 1:
		return fmt.Errorf("%w: history_months must be at least 1", ErrInvalidConfig)
	case c.QueryConcurrency < 1:
		return fmt.Errorf("%w: query_concurrency must be at least 1", ErrInvalidConfig)
	case c.SnapshotLimit < 1:
		return fmt.Errorf("%w: snapshot_limit must be at least 1", ErrInvalidConfig)
	case len(c.Keywords()) == 0:
		return fmt.Errorf("%w: meeting_keywords must not be empty", ErrInvalidConfig)
	case (c.Username == "") != (c.Password == ""):
		return fmt.Errorf("%w: username and password must be set together", ErrInvalidConfig)
	case c.PasswordLoginConfigured() && !c.OAuthConfigured():
		return fmt.Errorf("%w: password login needs client_id and client_secret", ErrInvalidConfig)
	}
	return nil
}
