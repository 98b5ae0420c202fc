package pihole

import (
	"errors"
	"fmt"
)

// Common errors for Pi-hole API operations.
var (
	// ErrUnauthorized indicates authentication failed or the session was rejected.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates the entity already exists.
	ErrConflict = errors.New("already exists")

	// ErrUnavailable indicates the Pi-hole instance is unreachable.
	ErrUnavailable = errors.New("pi-hole unavailable")
)

// APIError is returned when the API responds with a non-2xx status.
// The response body is kept verbatim for diagnosis.
type APIError struct {
	Status int
	Body   string
	Err    error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.Status, e.Body)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true if the error indicates the entity already exists.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsUnauthorized returns true if the error indicates authentication failure.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsUnavailable returns true if the error indicates the instance is unreachable.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
