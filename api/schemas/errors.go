// File: api/schemas/errors.go
package schemas

import "errors"

// RetryableError marks a provider failure as transient. The engine re-attempts
// playbook updates whose provider call failed with a retryable error; all other
// provider errors are treated as permanent and abort the run.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return e.Err.Error() }

func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable wraps err so that IsRetryable reports true for it. A nil err
// returns nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable reports whether any error in err's chain is a RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}
