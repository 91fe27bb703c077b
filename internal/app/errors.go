package service

import "errors"

var (
	// ErrNotConfigured is returned when no OAuth provider is set.
	ErrNotConfigured = errors.New("oauth is not configured")
	// ErrNotAuthenticated is returned when the session holds no tokens.
	ErrNotAuthenticated = errors.New("session is not authenticated")
	// ErrReauthenticate means the stored tokens were rejected and cleared.
	ErrReauthenticate = errors.New("salesforce session expired, sign in again")
	// ErrInvalidState is returned when the callback state does not match the session.
	ErrInvalidState = errors.New("oauth state mismatch")
	// ErrCodeReplayed is returned when an authorization code is seen twice.
	ErrCodeReplayed = errors.New("authorization code already used")
	// ErrPartialData is returned when optional sources failed and partial
	// dashboards are disabled.
	ErrPartialData = errors.New("dashboard data incomplete")
	// ErrSnapshotsDisabled is returned when no snapshot store is configured.
	ErrSnapshotsDisabled = errors.New("snapshot history is disabled")
)
