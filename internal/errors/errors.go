// Package errors provides the error vocabulary shared by pawsync's packages:
// sentinel errors, typed errors carrying cycle and fetch context, and
// classification helpers used by the retry executor and the coordinator.
//
// # Error Types
//
// Domain errors:
//   - CycleError: a polling cycle could not produce a snapshot
//   - FetchError: one module fetch for one dog failed
//   - RegistryError: the dog registry could not be loaded or queried
//
// Semantic errors:
//   - NotFoundError: a dog or module is unknown
//   - ValidationError: invalid input or configuration
//
// # Usage
//
//	err := errors.NewFetchError("unexpected status", nil).
//		WithDog("rex").WithModule("gps").WithStatus(503)
//
//	if errors.IsRetryable(err) { ... }
//	if errors.Is(err, errors.ErrAllDogsFailed) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-exported so callers only need this package for error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents how loudly an error should be reported.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
	SeverityCritical
)

// String returns the lower-case name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Cycle sentinels.
var (
	// ErrNoDogs is returned when a cycle is started with no dog ids.
	ErrNoDogs = New("no dogs to poll")
	// ErrAllDogsFailed is returned when every dog in a cycle failed.
	ErrAllDogsFailed = New("all dogs failed")
)

// Registry and fetch sentinels.
var (
	// ErrDogNotFound indicates the registry has no entry for a dog id.
	ErrDogNotFound = New("dog not found")
	// ErrCircuitOpen indicates the circuit breaker rejected a call.
	ErrCircuitOpen = New("circuit breaker open")
	// ErrUnexpectedStatus indicates an upstream HTTP status outside 2xx.
	ErrUnexpectedStatus = New("unexpected status")
)

// General sentinels.
var (
	ErrTimeout      = New("operation timed out")
	ErrCanceled     = New("operation canceled")
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error
// -----------------------------------------------------------------------------

// PawsyncError is implemented by every typed error in this package.
type PawsyncError interface {
	error
	Unwrap() error
	Severity() Severity
	IsRetryable() bool
}

type baseError struct {
	message   string
	cause     error
	severity  Severity
	retryable bool
}

func (e *baseError) Unwrap() error      { return e.cause }
func (e *baseError) Severity() Severity { return e.severity }
func (e *baseError) IsRetryable() bool  { return e.retryable }

func (e *baseError) format(prefix string, parts []string) string {
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", prefix, strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// -----------------------------------------------------------------------------
// Domain Errors
// -----------------------------------------------------------------------------

// CycleError reports a polling cycle that produced no usable snapshot.
//
//	err := errors.NewCycleError("cycle aborted", errors.ErrAllDogsFailed).
//		WithCycleID(id).WithCounts(3, 3)
type CycleError struct {
	baseError
	CycleID string
	Failed  int
	Total   int
}

// NewCycleError creates a CycleError.
func NewCycleError(message string, cause error) *CycleError {
	return &CycleError{baseError: baseError{message: message, cause: cause, severity: SeverityError}}
}

// WithCycleID records the cycle id.
func (e *CycleError) WithCycleID(id string) *CycleError {
	e.CycleID = id
	return e
}

// WithCounts records how many dogs failed out of how many were polled.
func (e *CycleError) WithCounts(failed, total int) *CycleError {
	e.Failed = failed
	e.Total = total
	return e
}

// WithSeverity overrides the severity.
func (e *CycleError) WithSeverity(s Severity) *CycleError {
	e.severity = s
	return e
}

// Error returns the formatted message.
func (e *CycleError) Error() string {
	var parts []string
	if e.CycleID != "" {
		parts = append(parts, "cycle="+e.CycleID)
	}
	if e.Total > 0 {
		parts = append(parts, fmt.Sprintf("failed=%d/%d", e.Failed, e.Total))
	}
	return e.format("cycle error", parts)
}

// FetchError reports one failed module fetch.
type FetchError struct {
	baseError
	DogID   string
	Module  string
	Attempt int
	Status  int
}

// NewFetchError creates a FetchError. It is not retryable until WithStatus
// or WithRetryable says otherwise.
func NewFetchError(message string, cause error) *FetchError {
	return &FetchError{baseError: baseError{message: message, cause: cause, severity: SeverityWarning}}
}

// WithDog records the dog id.
func (e *FetchError) WithDog(id string) *FetchError {
	e.DogID = id
	return e
}

// WithModule records the module name.
func (e *FetchError) WithModule(module string) *FetchError {
	e.Module = module
	return e
}

// WithAttempt records the attempt number (1-based).
func (e *FetchError) WithAttempt(n int) *FetchError {
	e.Attempt = n
	return e
}

// WithStatus records the upstream HTTP status and marks 429 and 5xx as
// retryable.
func (e *FetchError) WithStatus(code int) *FetchError {
	e.Status = code
	e.retryable = code == 429 || code >= 500
	return e
}

// WithRetryable overrides retryability.
func (e *FetchError) WithRetryable(r bool) *FetchError {
	e.retryable = r
	return e
}

// Error returns the formatted message.
func (e *FetchError) Error() string {
	var parts []string
	if e.DogID != "" {
		parts = append(parts, "dog="+e.DogID)
	}
	if e.Module != "" {
		parts = append(parts, "module="+e.Module)
	}
	if e.Status != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.Status))
	}
	if e.Attempt > 0 {
		parts = append(parts, fmt.Sprintf("attempt=%d", e.Attempt))
	}
	return e.format("fetch error", parts)
}

// RegistryError reports a failure to load or parse the dog registry.
type RegistryError struct {
	baseError
	Path string
}

// NewRegistryError creates a RegistryError.
func NewRegistryError(message string, cause error) *RegistryError {
	return &RegistryError{baseError: baseError{message: message, cause: cause, severity: SeverityError}}
}

// WithPath records the registry file path.
func (e *RegistryError) WithPath(path string) *RegistryError {
	e.Path = path
	return e
}

// Error returns the formatted message.
func (e *RegistryError) Error() string {
	var parts []string
	if e.Path != "" {
		parts = append(parts, "path="+e.Path)
	}
	return e.format("registry error", parts)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents an unknown resource.
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a NotFoundError. When resourceType is "dog" the
// error also matches ErrDogNotFound.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	e := &NotFoundError{
		baseError:    baseError{severity: SeverityWarning},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
	if resourceType == "dog" {
		e.cause = ErrDogNotFound
	}
	return e
}

// Error returns the formatted message.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// ValidationError represents invalid input.
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a ValidationError wrapping ErrInvalidInput.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{baseError: baseError{message: message, cause: ErrInvalidInput, severity: SeverityWarning}}
}

// WithField records the offending field.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue records the offending value.
func (e *ValidationError) WithValue(v any) *ValidationError {
	e.Value = v
	return e
}

// Error returns the formatted message.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.message
	}
	if e.Value != nil {
		return fmt.Sprintf("validation error [%s=%v]: %s", e.Field, e.Value, e.message)
	}
	return fmt.Sprintf("validation error [%s]: %s", e.Field, e.message)
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable reports whether err is transient. Typed errors decide for
// themselves; ErrTimeout is retryable; cancellation never is.
func IsRetryable(err error) bool {
	if err == nil || Is(err, ErrCanceled) {
		return false
	}
	var pe PawsyncError
	if As(err, &pe) {
		return pe.IsRetryable()
	}
	return Is(err, ErrTimeout)
}

// GetSeverity returns the severity of err, SeverityError for foreign errors.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}
	var pe PawsyncError
	if As(err, &pe) {
		return pe.Severity()
	}
	return SeverityError
}

// Wrap annotates err with message, preserving it for Is and As.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf is Wrap with a format string.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
