package bot

import "errors"

// fatalError wraps a condition the loop cannot recover from: bad or revoked
// credentials, or a store that can no longer be trusted. The loop driver
// returns it to main, which owns the actual process exit.
type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

// fatal classifies err as unrecoverable.
func fatal(err error) error {
	return &fatalError{err: err}
}

// IsFatal reports whether err carries a fatal classification.
func IsFatal(err error) bool {
	var fe *fatalError
	return errors.As(err, &fe)
}
