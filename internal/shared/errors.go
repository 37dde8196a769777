package shared

import "fmt"

var (
	// Configuration errors
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Authentication errors
	ErrAuthFailed    = fmt.Errorf("authentication failed")
	ErrTokenExpired  = fmt.Errorf("access token expired")
	ErrRefreshFailed = fmt.Errorf("token refresh failed")
	ErrTimeout       = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrNotFound           = fmt.Errorf("not found")
	ErrTrackNotFound      = fmt.Errorf("track not found: %w", ErrNotFound)
	ErrReleasesNotFound   = fmt.Errorf("no new releases found: %w", ErrNotFound)
	ErrParseResponse      = fmt.Errorf("could not parse response")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument: %w", ErrInvalidInput)
	ErrInvalidArgument = fmt.Errorf("invalid argument: %w", ErrInvalidInput)
)
