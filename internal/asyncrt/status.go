package asyncrt

import "errors"

// Status is the small result enumeration shared by the mailbox and stream
// operations. It implements error so callers may use either explicit status
// comparison or ordinary error handling.
type Status uint8

const (
	// StatusSuccess indicates the operation completed normally.
	StatusSuccess Status = iota
	// StatusNoVacancy indicates a bounded queue is full.
	StatusNoVacancy
	// StatusNoMoreData indicates a queue or stream is empty right now.
	StatusNoMoreData
	// StatusClosed indicates the target has been closed.
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusNoVacancy:
		return "no_vacancy"
	case StatusNoMoreData:
		return "no_more_data"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Error implements the error interface for non-success statuses so callers
// may write `if err := push(...); err != nil`.
func (s Status) Error() string {
	return s.String()
}

// Sentinel errors for the application-level error taxonomy row. They wrap
// to the corresponding Status so errors.Is(err, asyncrt.ErrNoVacancy) works
// against a Status value returned as an error.
var (
	ErrNoVacancy  error = StatusNoVacancy
	ErrNoMoreData error = StatusNoMoreData
	ErrClosed     error = StatusClosed
)

// AsStatus reports whether err is (or wraps) a Status and returns it.
func AsStatus(err error) (Status, bool) {
	var st Status
	if errors.As(err, &st) {
		return st, true
	}
	return 0, false
}
