package solarapi

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Error classes. Match them with errors.Is; the typed errors below carry
// the diagnostic context.
var (
	ErrTransport             = errors.New("transport failure")
	ErrMalformedEnvelope     = errors.New("malformed envelope")
	ErrAPIStatus             = errors.New("device reported an error status")
	ErrUnsupportedAPIVersion = errors.New("unsupported Solar API version")
	ErrUnsupportedOperation  = errors.New("operation not supported by this Solar API version")
	ErrInvalidRequest        = errors.New("invalid request")

	errEmptyDocument = errors.New("no JSON document")
)

// TransportError reports that no JSON document could be obtained.
type TransportError struct {
	Endpoint string
	Body     []byte
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrTransport, e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

// EnvelopeError reports a document lacking the Head/Status/Body structure.
type EnvelopeError struct {
	Endpoint string
	Reason   string
	Raw      json.RawMessage
}

func (e *EnvelopeError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrMalformedEnvelope, e.Endpoint, e.Reason)
}

func (e *EnvelopeError) Unwrap() error {
	return ErrMalformedEnvelope
}

// StatusError is a well-formed response whose status code is not a
// success. It is a soft failure: operations return it alongside the
// response so callers can decide whether to skip, log or abort.
type StatusError struct {
	Endpoint string
	Status   Status
	Body     json.RawMessage
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s: %s: code %d (%s)", ErrAPIStatus, e.Endpoint, e.Status.Code, e.Status.Text)
	if e.Status.Reason != "" {
		msg += ": " + e.Status.Reason
	}
	return msg
}

func (e *StatusError) Unwrap() error {
	return ErrAPIStatus
}

// VersionError reports a version string no dialect understands.
type VersionError struct {
	Version string
	Raw     json.RawMessage
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnsupportedAPIVersion, e.Version)
}

func (e *VersionError) Unwrap() error {
	return ErrUnsupportedAPIVersion
}

// IsSoft reports whether err is a device-side status failure that leaves
// the connection usable.
func IsSoft(err error) bool {
	return errors.Is(err, ErrAPIStatus) || errors.Is(err, ErrUnsupportedOperation)
}

func unsupported(op string, v APIVersion) error {
	return fmt.Errorf("%s on V%s: %w", op, v, ErrUnsupportedOperation)
}

func invalid(op, reason string) error {
	return fmt.Errorf("%s: %s: %w", op, reason, ErrInvalidRequest)
}
