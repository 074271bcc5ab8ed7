package core

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors for handling decisions.
type ErrorCategory string

const (
	ErrCatValidation ErrorCategory = "validation" // Invalid input or graph
	ErrCatExecution  ErrorCategory = "execution"  // Runtime failure
	ErrCatTimeout    ErrorCategory = "timeout"    // Operation timed out
	ErrCatRateLimit  ErrorCategory = "rate_limit" // Provider rate limited
	ErrCatNetwork    ErrorCategory = "network"    // Provider/network unavailable
	ErrCatState      ErrorCategory = "state"      // State corruption/conflict
	ErrCatNotFound   ErrorCategory = "not_found"  // Resource not found
	ErrCatInternal   ErrorCategory = "internal"   // Unexpected internal error
)

// DomainError represents a structured error from the domain layer.
type DomainError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Retryable bool
	Cause     error
	Details   map[string]interface{}
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches a target.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}

// WithCause wraps an underlying error.
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// WithDetail adds contextual information.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Graph validation error codes.
const (
	CodeDanglingEdge     = "DANGLING_EDGE"
	CodeMultipleTriggers = "MULTIPLE_TRIGGERS"
	CodeCycleDetected    = "CYCLE_DETECTED"
	CodeNoTrigger        = "NO_TRIGGER"
	CodeUnknownNodeKind  = "UNKNOWN_NODE_KIND"
	CodeInvalidNodeData  = "INVALID_NODE_DATA"
)

// Provider error codes.
const (
	CodeProviderUnavailable = "PROVIDER_UNAVAILABLE"
	CodeRateLimited         = "RATE_LIMITED"
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeUnknownProvider     = "UNKNOWN_PROVIDER"
)

// Engine error codes.
const (
	CodeStepExhausted    = "STEP_EXHAUSTED"
	CodeRunNotFound      = "RUN_NOT_FOUND"
	CodeWorkflowNotFound = "WORKFLOW_NOT_FOUND"
	CodeInvalidState     = "INVALID_STATE"
	CodeStateCorrupted   = "STATE_CORRUPTED"
)

// ErrGraph creates a graph validation error. Graph errors fail workflow
// save or run creation synchronously and are never partially applied.
func ErrGraph(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatValidation,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrMultipleTriggers creates the rejection surfaced to an editing client
// that tries to insert a second trigger node.
func ErrMultipleTriggers() *DomainError {
	return ErrGraph(CodeMultipleTriggers, "workflow already contains a trigger node")
}

// ErrNoTrigger creates the error for a run attempted on a trigger-less graph.
func ErrNoTrigger() *DomainError {
	return ErrGraph(CodeNoTrigger, "workflow has no trigger node")
}

// ErrProviderUnavailable creates a retryable provider connectivity error.
func ErrProviderUnavailable(provider string, cause error) *DomainError {
	return &DomainError{
		Category:  ErrCatNetwork,
		Code:      CodeProviderUnavailable,
		Message:   fmt.Sprintf("provider %s unavailable", provider),
		Retryable: true,
		Cause:     cause,
	}
}

// ErrRateLimited creates a retryable rate limit error. The backoff hint,
// when known, is recorded in Details under "retry_after_seconds".
func ErrRateLimited(provider string) *DomainError {
	return &DomainError{
		Category:  ErrCatRateLimit,
		Code:      CodeRateLimited,
		Message:   fmt.Sprintf("provider %s rate limited", provider),
		Retryable: true,
	}
}

// ErrInvalidRequest creates a non-retryable provider rejection. It surfaces
// to the run as a permanent step failure.
func ErrInvalidRequest(provider, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatValidation,
		Code:      CodeInvalidRequest,
		Message:   fmt.Sprintf("provider %s rejected request: %s", provider, message),
		Retryable: false,
	}
}

// ErrExecution creates a retryable runtime error.
func ErrExecution(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatExecution,
		Code:      code,
		Message:   message,
		Retryable: true,
	}
}

// ErrTimeout creates a timeout error. Per-attempt timeouts on model
// invocations are treated identically to provider unavailability.
func ErrTimeout(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatTimeout,
		Code:      "TIMEOUT",
		Message:   message,
		Retryable: true,
	}
}

// ErrState creates a state error.
func ErrState(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatState,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrNotFound creates a not found error.
func ErrNotFound(resource, id string) *DomainError {
	code := "NOT_FOUND"
	switch resource {
	case "workflow":
		code = CodeWorkflowNotFound
	case "run":
		code = CodeRunNotFound
	}
	return &DomainError{
		Category:  ErrCatNotFound,
		Code:      code,
		Message:   fmt.Sprintf("%s not found: %s", resource, id),
		Retryable: false,
	}
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Retryable
	}
	return false
}

// GetCategory extracts the error category.
func GetCategory(err error) ErrorCategory {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Category
	}
	return ErrCatInternal
}

// IsCode checks whether an error carries the given domain code.
func IsCode(err error, code string) bool {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Code == code
	}
	return false
}
