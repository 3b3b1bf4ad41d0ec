package errors

import (
	"errors"
	"fmt"
)

// Common error types for the dashboard client
var (
	// Session errors
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrSessionExpired   = errors.New("session expired")
	ErrSessionEnded     = errors.New("session ended while the token was being refreshed")

	// Renewal errors
	ErrNoRefreshToken   = errors.New("no refresh token available")
	ErrRefreshRejected  = errors.New("refresh token rejected")
	ErrRefreshMalformed = errors.New("no access token returned from refresh")

	// Request errors
	ErrInvalidBody = errors.New("invalid request body")
	ErrNotFound    = errors.New("not found")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
