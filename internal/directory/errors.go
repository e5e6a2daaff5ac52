package directory

import (
	"errors"
	"fmt"
)

// ErrStationNotFound indicates the requested id does not resolve to a usable
// station record upstream. Terminal for that id; retrying will not help.
var ErrStationNotFound = errors.New("station not found")

// UnavailableError indicates the directory service could not be reached or
// returned an unusable response. Recoverable; the caller may retry.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("directory unavailable (%s): %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// IsUnavailable reports whether err is a directory availability failure.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}

func unavailable(op string, err error) error {
	return &UnavailableError{Op: op, Err: err}
}
