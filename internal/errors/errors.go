package errors

import "errors"

// Common error types for the roster service
var (
	// Auth errors
	ErrNotAuthorized = errors.New("not authorized")
	ErrRefreshLapsed = errors.New("token refresh lapsed")

	// Remote API errors
	ErrUnexpectedStatus = errors.New("unexpected status")
	ErrEmptyResponse    = errors.New("empty response")

	// Configuration errors
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrInvalidTransform = errors.New("invalid display name transform")
)
