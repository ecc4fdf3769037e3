package llm

import "errors"

// Call failures fall into two classes. Transient ones (rate limits, 5xx,
// network faults) are worth retrying against the same endpoint: an audit run
// is a long batch job and a stalled evaluation costs less than a lost one.
// Fatal ones (bad credentials, malformed requests, unknown providers) fail
// the endpoint immediately so the client can fall through to the next entry
// in the chain. The gateway classifies its remote tool calls with the same
// taxonomy so run-level handling stays uniform.

// classifiedError carries the retry class alongside the underlying error.
type classifiedError struct {
	err       error
	transient bool
}

func (e *classifiedError) Error() string { return e.err.Error() }
func (e *classifiedError) Unwrap() error { return e.err }

// NewTransientError marks err as retryable.
func NewTransientError(err error) error {
	return &classifiedError{err: err, transient: true}
}

// NewFatalError marks err as permanent.
func NewFatalError(err error) error {
	return &classifiedError{err: err}
}

// IsTransient reports whether err is marked retryable.
func IsTransient(err error) bool {
	var c *classifiedError
	return errors.As(err, &c) && c.transient
}

// IsFatal reports whether err is marked permanent.
func IsFatal(err error) bool {
	var c *classifiedError
	return errors.As(err, &c) && !c.transient
}
