package salesforce

import (
	"errors"
	"fmt"
)

// Sentinel errors for the query layer.
var (
	ErrUnauthorized  = errors.New("salesforce: unauthorized")
	ErrQuery         = errors.New("salesforce: query failed")
	ErrInvalidConfig = errors.New("salesforce: invalid client configuration")
)

// APIError carries the status and first error entry of a failed REST call.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("salesforce: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("salesforce: status %d: %s: %s", e.Status, e.Code, e.Message)
}

// Unwrap maps 401 to ErrUnauthorized and everything else to ErrQuery.
func (e *APIError) Unwrap() error {
	if e.Status == 401 {
		return ErrUnauthorized
	}
	return ErrQuery
}

// SourceError records an optional source that could not be loaded.
type SourceError struct {
	Source string `json:"source"`
	Err    error  `json:"-"`
}

func (e SourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e SourceError) Unwrap() error { return e.Err }
