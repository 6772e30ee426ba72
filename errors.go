package fileset

import (
	"errors"
	"fmt"
)

// Sentinel errors. Typed errors below unwrap to these so callers can use
// errors.Is without losing the structured detail.
var (
	// ErrNotWritable is returned when a write or delete is attempted on a
	// source constructed without the writable flag.
	ErrNotWritable = errors.New("source is not writable")

	// ErrSingletonExpected is returned by frontends when a single-record
	// view selects zero or more than one record.
	ErrSingletonExpected = errors.New("singleton expected")

	// ErrConversion covers backend decode/encode and frontend shape
	// failures. Never silently coerced.
	ErrConversion = errors.New("conversion failed")

	// ErrJoinConflict is returned when two composite children report
	// differing concrete values for the same join key.
	ErrJoinConflict = errors.New("join key conflict")

	// ErrLockTimeout is returned after the advisory lock's attempt budget
	// is exhausted.
	ErrLockTimeout = errors.New("failed to acquire file lock")

	// ErrConfig covers invalid option combinations at construction time.
	ErrConfig = errors.New("invalid source configuration")
)

// DecodeError reports a backend failure for one file, naming the path.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrConversion }

func decodeErr(path string, err error) error {
	return &DecodeError{Path: path, Err: err}
}

func decodeErrf(path, format string, args ...any) error {
	return &DecodeError{Path: path, Err: fmt.Errorf(format, args...)}
}

// JoinConflictError reports two children disagreeing on a concrete value
// for the same key during a composite merge.
type JoinConflictError struct {
	Key  string
	A, B any
}

func (e *JoinConflictError) Error() string {
	return fmt.Sprintf("join key conflict on %q: %v != %v", e.Key, e.A, e.B)
}

func (e *JoinConflictError) Unwrap() error { return ErrJoinConflict }

func conversionErrf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrConversion)...)
}
