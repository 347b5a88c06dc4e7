package omada

import "errors"

// Domain errors for the Omada bridge package.
var (
	// ErrTransport is returned when a controller call fails at the
	// connection level (refused, reset, timed out) or with an
	// unexpected HTTP status other than 401.
	ErrTransport = errors.New("omada: transport failure")

	// ErrAuth is returned when the controller rejects the session
	// (HTTP 401) or a login exchange does not yield a token.
	ErrAuth = errors.New("omada: authentication failed")

	// ErrApplication is returned when a 200 response carries a non-zero
	// errorCode in the body envelope.
	ErrApplication = errors.New("omada: controller reported an error")

	// ErrRecordNotFound is returned when a write-back target record is
	// absent from the resource cache.
	ErrRecordNotFound = errors.New("omada: record not found in cache")

	// ErrInvalidWritePath is returned when a write intent path does not
	// decompose into a known writable resource position.
	ErrInvalidWritePath = errors.New("omada: write path not recognized")

	// ErrNotAuthenticated is returned when a call requires a session
	// token but no login has succeeded yet.
	ErrNotAuthenticated = errors.New("omada: no active session")
)
