package aiclient

import "fmt"

// ValidationError reports bad or missing input. It is raised before any
// external call is made and never consumes entitlement.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// TransportError wraps a network, authentication or rate-limit failure from
// the analysis provider. Transport failures are plausibly transient and may be
// retried with backoff.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %s failed (status %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError reports that the provider replied but the reply could not be
// decoded into the structured result. Parse failures are terminal, not
// transient: the same input would fail again.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse provider reply: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("parse provider reply: %s", e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }
