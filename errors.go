package autoimply

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorCategory represents the category of an error for handling decisions.
type ErrorCategory string

const (
	ErrorCategoryNetwork    ErrorCategory = "network"
	ErrorCategoryRateLimit  ErrorCategory = "rate_limit"
	ErrorCategoryTimeout    ErrorCategory = "timeout"
	ErrorCategoryAuth       ErrorCategory = "auth"
	ErrorCategoryValidation ErrorCategory = "validation"
	ErrorCategorySource     ErrorCategory = "source"
	ErrorCategoryInternal   ErrorCategory = "internal"
)

// Common errors
var (
	ErrNoSeries            = errors.New("autoimply: no series configured")
	ErrSeriesNotFound      = errors.New("autoimply: series not found in config")
	ErrSourceNotConfigured = errors.New("autoimply: tag source not configured")
	ErrSubmitterMissing    = errors.New("autoimply: submitter not configured")
	ErrStoreNotConfigured  = errors.New("autoimply: store not configured")
	ErrTooManyBURs         = errors.New("autoimply: too many pending BURs in topic")
	ErrCycleDetected       = errors.New("autoimply: implication cycle detected")
	ErrRateLimited         = errors.New("autoimply: rate limited by source")
	ErrTimeout             = errors.New("autoimply: operation timeout")
	ErrAuthFailed          = errors.New("autoimply: authentication failed")
)

// SourceError represents an error from an external tag source or submitter.
type SourceError struct {
	Source     string        // source name (danbooru, bigquery, static)
	Op         string        // operation that failed (fetch_tags, submit, ...)
	StatusCode int           // HTTP status code if applicable
	Message    string        // error message
	Category   ErrorCategory // error category for handling
	Retryable  bool          // whether this error is retryable
	Err        error         // underlying error
}

func (e *SourceError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("autoimply: source %s %s [%d]: %s", e.Source, e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("autoimply: source %s %s: %s", e.Source, e.Op, e.Message)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// NewSourceError creates a new source error.
func NewSourceError(source, op, message string) *SourceError {
	se := &SourceError{
		Source:   source,
		Op:       op,
		Message:  message,
		Category: ErrorCategorySource,
	}
	se.Retryable = se.isRetryable()
	return se
}

// WithStatusCode sets the HTTP status code and recategorizes.
func (e *SourceError) WithStatusCode(code int) *SourceError {
	e.StatusCode = code
	e.Category = categorizeByStatusCode(code)
	e.Retryable = e.isRetryable()
	return e
}

// WithCategory sets the error category.
func (e *SourceError) WithCategory(cat ErrorCategory) *SourceError {
	e.Category = cat
	e.Retryable = e.isRetryable()
	return e
}

// WithCause sets the underlying error.
func (e *SourceError) WithCause(err error) *SourceError {
	e.Err = err
	return e
}

func (e *SourceError) isRetryable() bool {
	switch e.Category {
	case ErrorCategoryNetwork, ErrorCategoryRateLimit, ErrorCategoryTimeout:
		return true
	}
	switch e.StatusCode {
	case 429, 500, 502, 503, 504:
		return true
	}
	return false
}

func categorizeByStatusCode(code int) ErrorCategory {
	switch {
	case code == 401 || code == 403:
		return ErrorCategoryAuth
	case code == 429:
		return ErrorCategoryRateLimit
	case code == 408 || code == 504:
		return ErrorCategoryTimeout
	case code >= 500:
		return ErrorCategoryInternal
	default:
		return ErrorCategorySource
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Series  string // series name, empty for top-level config errors
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Series != "" {
		return fmt.Sprintf("autoimply: series %q: invalid %s: %s", e.Series, e.Field, e.Message)
	}
	return fmt.Sprintf("autoimply: invalid %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error.
func NewValidationError(series, field, message string) *ValidationError {
	return &ValidationError{Series: series, Field: field, Message: message}
}

// StoreError represents a database/store error.
type StoreError struct {
	Operation string
	Table     string
	Err       error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("autoimply: store error during %s on %s: %v", e.Operation, e.Table, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new store error.
func NewStoreError(operation, table string, err error) *StoreError {
	return &StoreError{Operation: operation, Table: table, Err: err}
}

// IsSourceError checks if an error is a source error.
func IsSourceError(err error) bool {
	var se *SourceError
	return errors.As(err, &se)
}

// IsValidationError checks if an error is a validation error.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsStoreError checks if an error is a store error.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrRateLimited) {
		return true
	}

	var se *SourceError
	if errors.As(err, &se) {
		return se.Retryable
	}

	return IsNetworkError(err)
}

// IsNetworkError checks if an error is a network-related error.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	patterns := []string{
		"connection refused",
		"connection reset",
		"no such host",
		"network is unreachable",
		"i/o timeout",
		"connection timed out",
		"dial tcp",
	}
	for _, pattern := range patterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// GetErrorCategory returns the category of an error.
func GetErrorCategory(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	var se *SourceError
	if errors.As(err, &se) {
		return se.Category
	}
	if IsNetworkError(err) {
		return ErrorCategoryNetwork
	}
	if errors.Is(err, ErrTimeout) {
		return ErrorCategoryTimeout
	}
	if errors.Is(err, ErrRateLimited) {
		return ErrorCategoryRateLimit
	}
	if errors.Is(err, ErrAuthFailed) {
		return ErrorCategoryAuth
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return ErrorCategoryValidation
	}

	return ErrorCategoryInternal
}
