package interfaces

import "errors"

var (
	// ErrKeyNotFound is returned when a key does not exist in the credential store
	ErrKeyNotFound = errors.New("key not found")

	// ErrUnauthorized is returned when the target site rejects the session cookies
	ErrUnauthorized = errors.New("unauthorized")

	// ErrElementNotFound is returned when every locator strategy for a page element has been exhausted
	ErrElementNotFound = errors.New("element not found")

	// ErrNoMessage is returned when the queue has no visible messages
	ErrNoMessage = errors.New("no messages in queue")

	// ErrNotConfigured is returned when required credentials or tokens are
	// missing from configuration. Never retried.
	ErrNotConfigured = errors.New("not configured")
)
