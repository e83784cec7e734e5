package ingest

import "errors"

// IngestErrorKind classifies ingestion errors.
type IngestErrorKind int

const (
	// IngestErrorStream indicates the source failed (fatal framing, I/O).
	IngestErrorStream IngestErrorKind = iota
	// IngestErrorHandler indicates a handler rejected a transfer.
	IngestErrorHandler
	// IngestErrorCanceled indicates context cancellation.
	IngestErrorCanceled
)

// String returns the kind name.
func (k IngestErrorKind) String() string {
	switch k {
	case IngestErrorStream:
		return "stream"
	case IngestErrorHandler:
		return "handler"
	case IngestErrorCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// IngestError is returned by Engine.Run for anything other than a clean EOF.
type IngestError struct {
	Kind IngestErrorKind
	Err  error
}

func (e *IngestError) Error() string {
	return e.Err.Error()
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

func isKind(err error, kind IngestErrorKind) bool {
	var ingErr *IngestError
	if errors.As(err, &ingErr) {
		return ingErr.Kind == kind
	}
	return false
}

// IsStreamError returns true if the error is a source failure.
func IsStreamError(err error) bool {
	return isKind(err, IngestErrorStream)
}

// IsHandlerError returns true if a handler rejected a transfer.
func IsHandlerError(err error) bool {
	return isKind(err, IngestErrorHandler)
}

// IsCanceledError returns true if the error is due to context cancellation.
func IsCanceledError(err error) bool {
	return isKind(err, IngestErrorCanceled)
}
