package storage

import "errors"

// Storage errors common to all backends.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to insert a record
	// whose key already exists.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)

// Kind classifies a StoreError for the caller's retry policy.
type Kind int

const (
	// Transient errors (connection dropped, serialization failure) are
	// safe to retry with backoff.
	Transient Kind = iota
	// Permanent errors (constraint violation, malformed input) will
	// never succeed on retry.
	Permanent
)

func (k Kind) String() string {
	if k == Transient {
		return "transient"
	}
	return "permanent"
}

// StoreError wraps an underlying storage failure with a retry
// classification, per the error taxonomy every Store operation commits to.
type StoreError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *StoreError) Error() string {
	return "storage: " + e.Op + ": " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewTransient wraps err as a transient StoreError for operation op.
func NewTransient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Kind: Transient, Op: op, Err: err}
}

// NewPermanent wraps err as a permanent StoreError for operation op.
func NewPermanent(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Kind: Permanent, Op: op, Err: err}
}

// IsTransient reports whether err is a StoreError classified Transient.
func IsTransient(err error) bool {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Kind == Transient
	}
	return false
}
