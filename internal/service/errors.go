package service

import "errors"

// Common service errors
var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidCredentials is returned when username or password is wrong
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrUsernameTaken is returned when registering a username that already exists
	ErrUsernameTaken = errors.New("username already taken")

	// ErrUnsupportedFileType is returned when an uploaded image has a disallowed extension
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrAuthState is returned when a federated login callback cannot be honored
	ErrAuthState = errors.New("authentication failed")
)
