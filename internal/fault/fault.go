// Package fault defines the error taxonomy shared by every pipeline stage.
//
// Stages wrap their failures around one of the sentinel errors below so the
// HTTP layer can map them to transport status codes and the orchestrator can
// decide whether a failure degrades the session or only a single cycle.
package fault

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks a caller mistake (missing transcript, empty audio
	// payload). Never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfiguration marks a missing or unusable credential/setting. Fatal
	// for the request — no fallback exists without configuration.
	ErrConfiguration = errors.New("configuration error")

	// ErrUpstream marks a dependent service failure. Use [Upstream] to attach
	// the dependency's status and body text.
	ErrUpstream = errors.New("upstream error")

	// ErrPersistence marks a storage write failure.
	ErrPersistence = errors.New("persistence error")

	// ErrTimeout marks a bounded wait that expired.
	ErrTimeout = errors.New("timeout")
)

// UpstreamError carries the dependency's HTTP status and response body so the
// caller can surface them. It matches [ErrUpstream] via errors.Is.
type UpstreamError struct {
	Service string
	Status  int
	Body    string
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s returned HTTP %d: %s", e.Service, e.Status, e.Body)
	}
	return fmt.Sprintf("%s returned HTTP %d", e.Service, e.Status)
}

// Is reports taxonomy membership for errors.Is.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

// Upstream constructs an [UpstreamError] for a failed dependency call.
func Upstream(service string, status int, body string) *UpstreamError {
	return &UpstreamError{Service: service, Status: status, Body: body}
}

// Invalid wraps a caller-mistake description around [ErrInvalidInput].
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
