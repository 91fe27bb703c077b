package repository

import "errors"

// Sentinel errors for persistence.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidLimit = errors.New("invalid snapshot limit")
	ErrInvalidToken = errors.New("token is missing required fields")
)
