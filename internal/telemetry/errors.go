package telemetry

import "errors"

var (
	// ErrWriterClosed is returned by Enqueue after Close.
	ErrWriterClosed = errors.New("telemetry: writer closed")

	// ErrInvalidQuery is returned for a query without a session id or with From after To.
	ErrInvalidQuery = errors.New("telemetry: invalid query")

	// ErrInvalidEvent is returned for an event missing its routing ids or entity id.
	ErrInvalidEvent = errors.New("telemetry: invalid event")

	// ErrNonNumericValue is returned by mirrors that need a float value.
	ErrNonNumericValue = errors.New("telemetry: value is not numeric")
)
