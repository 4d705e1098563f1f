package llm

import "errors"

var (
	// ErrNoContent is returned when a completion carries no choices.
	ErrNoContent = errors.New("llm: empty completion")
	// ErrNoJSON is returned when a completion contains no JSON object.
	ErrNoJSON = errors.New("llm: no JSON object in completion")
)

// TransientError is a temporary failure (network, 5xx, 429) that counts
// against the circuit breaker.
type TransientError struct{ err error }

func (e *TransientError) Error() string { return e.err.Error() }
func (e *TransientError) Unwrap() error { return e.err }

// FatalError is a request the endpoint rejected; retrying cannot help and
// the breaker ignores it.
type FatalError struct{ err error }

func (e *FatalError) Error() string { return e.err.Error() }
func (e *FatalError) Unwrap() error { return e.err }

// IsTransient reports whether err is a TransientError.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// IsFatal reports whether err is a FatalError.
func IsFatal(err error) bool {
	var f *FatalError
	return errors.As(err, &f)
}
