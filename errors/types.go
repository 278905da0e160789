// Package errors defines the error taxonomy for the shared cache layer.
//
// Errors are grouped by how the cache reacts to them: unavailability of the
// remote tier is degraded around and never surfaced to callers of well-formed
// operations, serialization failures are always surfaced, and validation
// failures are rejected synchronously.
package errors

import (
	"fmt"
	"strings"
)

// ErrorType represents the category of a cache error
type ErrorType string

const (
	// ErrTypeUnavailable indicates the remote tier cannot be reached
	ErrTypeUnavailable ErrorType = "unavailable"
	// ErrTypeSerialization indicates a value could not be encoded or decoded
	ErrTypeSerialization ErrorType = "serialization"
	// ErrTypeValidation indicates a malformed key or value was rejected
	ErrTypeValidation ErrorType = "validation"
	// ErrTypeTimeout indicates a remote operation exceeded its deadline
	ErrTypeTimeout ErrorType = "timeout"
	// ErrTypeNotFound indicates a requested key does not exist
	ErrTypeNotFound ErrorType = "not_found"
	// ErrTypeInternal indicates an unexpected internal failure
	ErrTypeInternal ErrorType = "internal"
)

// CacheError is a structured error carrying its taxonomy category, an
// optional underlying cause and free-form context for logging.
type CacheError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *CacheError) Error() string {
	parts := []string{string(e.Type), e.Message}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}

	if len(e.Context) > 0 {
		contextParts := make([]string, 0, len(e.Context))
		for k, v := range e.Context {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context={%s}", strings.Join(contextParts, ", ")))
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause
func (e *CacheError) Unwrap() error {
	return e.Cause
}

// WithContext adds a key-value pair to the error context
func (e *CacheError) WithContext(key string, value interface{}) *CacheError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// UnavailableError creates an error indicating the remote tier is unreachable
func UnavailableError(msg string, cause error) *CacheError {
	return &CacheError{
		Type:    ErrTypeUnavailable,
		Message: msg,
		Cause:   cause,
	}
}

// SerializationError creates an error for a value that cannot be encoded or decoded
func SerializationError(msg string, cause error) *CacheError {
	return &CacheError{
		Type:    ErrTypeSerialization,
		Message: msg,
		Cause:   cause,
	}
}

// ValidationError creates an error for a malformed key or value
func ValidationError(msg string) *CacheError {
	return &CacheError{
		Type:    ErrTypeValidation,
		Message: msg,
	}
}

// TimeoutError creates an error for a remote operation that exceeded its deadline
func TimeoutError(operation string) *CacheError {
	return &CacheError{
		Type:    ErrTypeTimeout,
		Message: fmt.Sprintf("timeout during %s", operation),
	}
}

// NotFoundError creates an error for a missing key
func NotFoundError(key string) *CacheError {
	return &CacheError{
		Type:    ErrTypeNotFound,
		Message: fmt.Sprintf("key %q not found", key),
	}
}

// InternalError creates an error for an unexpected internal failure
func InternalError(msg string, cause error) *CacheError {
	return &CacheError{
		Type:    ErrTypeInternal,
		Message: msg,
		Cause:   cause,
	}
}

// IsType checks whether err is a CacheError of the given type
func IsType(err error, errType ErrorType) bool {
	if err == nil {
		return false
	}

	cacheErr, ok := err.(*CacheError)
	if !ok {
		return false
	}

	return cacheErr.Type == errType
}

// IsUnavailable reports whether err represents remote-tier unavailability
func IsUnavailable(err error) bool {
	return IsType(err, ErrTypeUnavailable)
}

// GetType returns the error category, defaulting to internal for foreign errors
func GetType(err error) ErrorType {
	if err == nil {
		return ""
	}

	cacheErr, ok := err.(*CacheError)
	if !ok {
		return ErrTypeInternal
	}

	return cacheErr.Type
}
