package errors

import "errors"

// This package defines a centralized set of sentinel errors for the application.
// Services return these wrapped with context; the API layer maps them to HTTP
// responses with `errors.Is()`.

var (
	// ErrNotFound signifies that a requested resource could not be located.
	// Mapped to 404 Not Found.
	ErrNotFound = errors.New("resource not found")

	// ErrValidation signifies that input data provided by a client failed
	// business rule validation.
	// Mapped to 400 Bad Request.
	ErrValidation = errors.New("validation failed")

	// ErrConflict signifies that an operation conflicts with the current state
	// of a resource.
	// Mapped to 409 Conflict.
	ErrConflict = errors.New("resource conflict")

	// ErrPermission signifies that the caller is not authorized to perform
	// the requested action.
	// Mapped to 403 Forbidden.
	ErrPermission = errors.New("permission denied")

	// ErrInternal signifies an unexpected error on the server.
	// Mapped to 500 Internal Server Error.
	ErrInternal = errors.New("internal server error")

	// ErrTransport signifies that the upstream stream could not be opened or
	// broke while it was being read.
	// Mapped to 502 Bad Gateway.
	ErrTransport = errors.New("upstream transport failure")

	// ErrUpstream signifies that the upstream reported an error for the
	// whole turn through its own event stream.
	// Mapped to 502 Bad Gateway.
	ErrUpstream = errors.New("upstream reported an error")

	// ErrTurnInProgress signifies that a group-chat turn was requested while
	// the previous one has not been released yet.
	// Mapped to 409 Conflict.
	ErrTurnInProgress = errors.New("a group chat turn is already in progress")
)
