package oauth

import "errors"

// Sentinel errors for the OAuth flow.
var (
	ErrNotConfigured      = errors.New("oauth: client id and secret are required")
	ErrExchange           = errors.New("oauth: code exchange failed")
	ErrRefresh            = errors.New("oauth: token refresh failed")
	ErrPasswordLogin      = errors.New("oauth: password login failed")
	ErrNoCredentials      = errors.New("oauth: username and password are required")
	ErrMissingInstanceURL = errors.New("oauth: token response has no instance_url")
	ErrSessionNotFound    = errors.New("oauth: session not found")
)
