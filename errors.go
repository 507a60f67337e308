package sigmatch

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyPattern is returned when a signature has no byte tokens.
	ErrEmptyPattern = errors.New("empty pattern")
	// ErrInvalidPattern is returned for tokens that are neither a hex byte
	// nor a wildcard.
	ErrInvalidPattern = errors.New("invalid pattern")
	// ErrRenameRejected is returned by a Database that refuses a name.
	ErrRenameRejected = errors.New("rename rejected")
)

// InputError reports a signature source that could not be read or decoded.
// It is the only error that aborts a scan, and it does so before any scan
// state exists.
type InputError struct {
	Path string
	Err  error
}

func (e *InputError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid signature input: %v", e.Err)
	}
	return fmt.Sprintf("invalid signature input %s: %v", e.Path, e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}
