package service

import "errors"

var (
	// ErrNoProviders is returned when no generation provider is configured.
	ErrNoProviders = errors.New("no LLM providers configured")

	// ErrProviderUnavailable is wrapped as "provider <name> not available" when the
	// requested provider is unknown or has no credentials.
	ErrProviderUnavailable = errors.New("not available")

	// ErrFileNotFound is returned when a referenced upload does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrInvalidFile wraps every upload validation failure.
	ErrInvalidFile = errors.New("invalid file")

	// ErrServiceClosed is returned by Submit after Shutdown.
	ErrServiceClosed = errors.New("job service is shut down")
)
