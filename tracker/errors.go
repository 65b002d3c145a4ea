package tracker

import "errors"

var (
	// ErrFetch wraps portal failures. A cycle fails with it when no course
	// could be fetched.
	ErrFetch = errors.New("tracker: fetch failed")

	// ErrPersistence wraps state store I/O failures.
	ErrPersistence = errors.New("tracker: persistence failed")

	// ErrCorruptState is returned when a stored blob cannot be decoded. It
	// also matches ErrPersistence. A missing blob is a cold start, not an
	// error.
	ErrCorruptState error = &childError{msg: "tracker: corrupt state", parent: ErrPersistence}

	// ErrTooManyFailures is returned by Run after max_consecutive_failures
	// failed cycles in a row.
	ErrTooManyFailures = errors.New("tracker: too many consecutive failures")

	// ErrBusy is returned by CheckNow while another cycle is running.
	ErrBusy = errors.New("tracker: a cycle is already running")
)

type childError struct {
	msg    string
	parent error
}

func (e *childError) Error() string { return e.msg }
func (e *childError) Unwrap() error { return e.parent }
