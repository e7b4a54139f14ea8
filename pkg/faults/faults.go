// Package faults defines the error taxonomy shared across the Gavel
// service. Every fault carries a Kind that drives propagation policy:
// some kinds abort startup, some degrade the service, and some are
// swallowed into fixed user-facing fallbacks.
package faults

import (
	"errors"
	"fmt"
)

// Kind classifies a fault for propagation policy decisions.
type Kind string

const (
	// ConfigMissing is raised at startup when a required setting, such
	// as the API key for the selected LLM provider, is absent. It is
	// the only kind that fails startup.
	ConfigMissing Kind = "ConfigMissing"

	// ModelUnavailable means a local model handle (embedder or
	// translator) could not be loaded. The service starts degraded.
	ModelUnavailable Kind = "ModelUnavailable"

	// IndexLoadError marks a per-file failure while scanning the data
	// volume. The file is skipped; startup proceeds.
	IndexLoadError Kind = "IndexLoadError"

	// RetrievalEmpty means a query yielded nothing. Not treated as an
	// error; downstream stages receive empty context.
	RetrievalEmpty Kind = "RetrievalEmpty"

	// ProviderTransient covers network or provider failures from the
	// LLM or translator backends.
	ProviderTransient Kind = "ProviderTransient"

	// ProviderInvalidOutput covers empty or malformed provider
	// responses.
	ProviderInvalidOutput Kind = "ProviderInvalidOutput"

	// SessionNotFound marks an unknown session id. Stores create the
	// session implicitly; the kind is never surfaced to callers.
	SessionNotFound Kind = "SessionNotFound"

	// Cancelled marks caller disconnect. The pipeline aborts without
	// mutating session state.
	Cancelled Kind = "Cancelled"
)

// Fault is the typed error used across Gavel components.
type Fault struct {
	Kind      Kind   // Classification for propagation policy
	Component string // Component that failed (e.g., "indexstore", "llm")
	Op        string // Operation that failed
	Message   string // Human-readable detail
	Err       error  // Underlying error
}

// Error implements the error interface.
func (e *Fault) Error() string {
	msg := string(e.Kind)
	if e.Component != "" || e.Op != "" {
		msg = fmt.Sprintf("[%s] %s", e.Component, e.Op)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Fault) Unwrap() error {
	return e.Err
}

// New creates a Fault.
func New(kind Kind, component, op, message string, err error) *Fault {
	return &Fault{
		Kind:      kind,
		Component: component,
		Op:        op,
		Message:   message,
		Err:       err,
	}
}

// Newf creates a Fault with a formatted message.
func Newf(kind Kind, component, op string, format string, args ...any) *Fault {
	return &Fault{
		Kind:      kind,
		Component: component,
		Op:        op,
		Message:   fmt.Sprintf(format, args...),
	}
}

// KindOf walks the wrap chain and returns the Kind of the outermost
// Fault, or the empty string when the chain carries none.
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

// IsKind reports whether the wrap chain carries a Fault of the given
// kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
