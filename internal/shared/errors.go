package shared

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors
	ErrInvalidConfig = fmt.Errorf("invalid configuration")
	ErrNotConfigured = fmt.Errorf("integration not configured")

	// Authentication errors
	ErrAuthFailed     = fmt.Errorf("authentication failed")
	ErrNotLinked      = fmt.Errorf("account not linked")
	ErrRefreshFailed  = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken = fmt.Errorf("no refresh token available")
	ErrUnauthorized   = fmt.Errorf("provider rejected access token")

	// API and service errors
	ErrAPIRequest       = fmt.Errorf("API request failed")
	ErrNoActiveDevice   = fmt.Errorf("no active device")
	ErrNoResults        = fmt.Errorf("no results")
	ErrPlaylistNotFound = fmt.Errorf("playlist not found")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
)

// NotLinkedError reports that no credential exists for a user.
type NotLinkedError struct {
	UserID string
}

func (e *NotLinkedError) Error() string {
	return fmt.Sprintf("%v: user %s", ErrNotLinked, e.UserID)
}

func (e *NotLinkedError) Unwrap() error { return ErrNotLinked }

// AuthExchangeError reports a failed authorization code exchange.
type AuthExchangeError struct {
	Err error
}

func (e *AuthExchangeError) Error() string {
	return fmt.Sprintf("%v: code exchange: %v", ErrAuthFailed, e.Err)
}

func (e *AuthExchangeError) Unwrap() []error { return []error{ErrAuthFailed, e.Err} }

// AuthRefreshError reports a failed refresh grant.
type AuthRefreshError struct {
	UserID string
	Err    error
}

func (e *AuthRefreshError) Error() string {
	return fmt.Sprintf("%v: user %s: %v", ErrRefreshFailed, e.UserID, e.Err)
}

func (e *AuthRefreshError) Unwrap() []error { return []error{ErrRefreshFailed, e.Err} }

// NoActiveDeviceError reports that the user has no device open.
type NoActiveDeviceError struct {
	Message string
}

func (e *NoActiveDeviceError) Error() string {
	if e.Message == "" {
		return ErrNoActiveDevice.Error()
	}
	return fmt.Sprintf("%v: %s", ErrNoActiveDevice, e.Message)
}

func (e *NoActiveDeviceError) Unwrap() error { return ErrNoActiveDevice }

// NoResultsError reports an empty search.
type NoResultsError struct {
	Query string
}

func (e *NoResultsError) Error() string {
	return fmt.Sprintf("%v for %q", ErrNoResults, e.Query)
}

func (e *NoResultsError) Unwrap() error { return ErrNoResults }

// PlaylistNotFoundError reports that no playlist matched a name.
type PlaylistNotFoundError struct {
	Name string
}

func (e *PlaylistNotFoundError) Error() string {
	return fmt.Sprintf("%v: %q", ErrPlaylistNotFound, e.Name)
}

func (e *PlaylistNotFoundError) Unwrap() error { return ErrPlaylistNotFound }

// ProviderError carries a non-success response from the catalog provider.
type ProviderError struct {
	Status  int
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%v: status %d: %s", ErrAPIRequest, e.Status, e.Message)
}

// Unwrap exposes [ErrUnauthorized] for 401 responses so callers can retry after a refresh.
func (e *ProviderError) Unwrap() []error {
	if e.Status == 401 {
		return []error{ErrAPIRequest, ErrUnauthorized}
	}
	return []error{ErrAPIRequest}
}

// IsCredentialError reports whether err means the user must relink.
//
// A refresh failure alone does not qualify; the credential stays stored until the refresh budget runs out,
// at which point the caller sees a [NotLinkedError].
func IsCredentialError(err error) bool {
	return errors.Is(err, ErrNotLinked) || errors.Is(err, ErrAuthFailed)
}
