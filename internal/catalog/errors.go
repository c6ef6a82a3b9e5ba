package catalog

import (
	"errors"
	"fmt"
)

// ErrUserNotFound is returned when BGG does not know the requested username.
var ErrUserNotFound = errors.New("bgg user not found")

// ServiceError reports that BGG could not be reached or answered with
// something we cannot use. The caller may retry later.
type ServiceError struct {
	Op     string // collection, expansions, thing, search
	Status int    // HTTP status, 0 if no response was received
	Err    error
}

func (e *ServiceError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("bgg %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("bgg %s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// IsServiceError reports whether err is (or wraps) a *ServiceError.
func IsServiceError(err error) bool {
	var se *ServiceError
	return errors.As(err, &se)
}
