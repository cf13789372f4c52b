package shared

import "fmt"

var (
	// Configuration errors
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Credential lifecycle errors
	ErrAuthorization    = fmt.Errorf("authorization failed")
	ErrReauthRequired   = fmt.Errorf("reauthentication required")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// Source and aggregation errors
	ErrSourceUnavailable = fmt.Errorf("source unavailable")
	ErrPrimarySource     = fmt.Errorf("primary source failed")
	ErrArtistNotFound    = fmt.Errorf("artist not found")
	ErrPagination        = fmt.Errorf("pagination failed")
	ErrNotFound          = fmt.Errorf("not found")
	ErrAPIRequest        = fmt.Errorf("API request failed")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
