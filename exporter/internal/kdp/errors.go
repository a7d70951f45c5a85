package kdp

import (
	"context"
	"errors"
	"fmt"

	"github.com/obsidianstack/kdp-exporter/exporter/internal/soap"
)

// Error kinds reported by Kind. They double as the outcome label of the
// exporter's RPC self metrics.
const (
	KindOK        = "ok"
	KindTransport = "transport"
	KindFault     = "fault"
	KindEmpty     = "empty"
	KindShape     = "shape"
	KindTimeout   = "timeout"
	KindSkipped   = "skipped"
)

var (
	// ErrUnavailable is returned by Ping when the service answers with
	// anything other than 1.
	ErrUnavailable = errors.New("kdp: api reported unavailable")

	// ErrUnresolved marks a resource-scoped step that was not attempted
	// because the resource id is unknown.
	ErrUnresolved = errors.New("kdp: resource id unresolved")
)

// ShapeError reports a response record that lacks a required field or
// carries a value that cannot be parsed.
type ShapeError struct {
	Field string
	Err   error
}

func (e *ShapeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("kdp: field %q missing", e.Field)
	}
	return fmt.Sprintf("kdp: field %q: %v", e.Field, e.Err)
}

func (e *ShapeError) Unwrap() error { return e.Err }

// Kind classifies err into one of the Kind* constants.
func Kind(err error) string {
	var (
		fault *soap.Fault
		shape *ShapeError
	)
	switch {
	case err == nil:
		return KindOK
	case errors.Is(err, ErrUnresolved):
		return KindSkipped
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.As(err, &fault), errors.Is(err, ErrUnavailable):
		return KindFault
	case errors.Is(err, soap.ErrEmptyResult):
		return KindEmpty
	case errors.As(err, &shape):
		return KindShape
	default:
		return KindTransport
	}
}
