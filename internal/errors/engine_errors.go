package errors

import (
	stderrors "errors"
	"fmt"
	"sync"
)

// ErrorCategory represents different types of errors that can occur
type ErrorCategory string

const (
	// Errors that should stop the engine from starting
	ErrorCategoryFatal         ErrorCategory = "FATAL"
	ErrorCategoryConfiguration ErrorCategory = "CONFIG"

	// Errors reported back to the caller for a single operation
	ErrorCategoryValidation ErrorCategory = "VALIDATION"
	ErrorCategoryState      ErrorCategory = "STATE"
	ErrorCategoryPosition   ErrorCategory = "POSITION"
)

// Sentinel errors. Use errors.Is against these.
var (
	ErrInvalidSample = stderrors.New("invalid sample")
	ErrInvalidPrice  = stderrors.New("invalid price")
	ErrUnknownSymbol = stderrors.New("unknown symbol")
	ErrInvalidConfig = stderrors.New("invalid configuration")
)

// EngineError represents a categorized error with context
type EngineError struct {
	Category   ErrorCategory
	Component  string
	Operation  string
	Message    string
	Underlying error
	Context    map[string]interface{}
	Retryable  bool
}

// Error implements the error interface
func (e *EngineError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Category, e.Component, e.Operation, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Category, e.Component, e.Operation, e.Message)
}

// Unwrap returns the underlying error for error unwrapping
func (e *EngineError) Unwrap() error {
	return e.Underlying
}

// IsRetryable returns whether this error can be retried.
// Nothing the engine emits is retried internally; callers own retry policy.
func (e *EngineError) IsRetryable() bool {
	return e.Retryable
}

// IsFatal returns whether this error should stop the engine
func (e *EngineError) IsFatal() bool {
	return e.Category == ErrorCategoryFatal || e.Category == ErrorCategoryConfiguration
}

// NewEngineError creates a new categorized engine error
func NewEngineError(category ErrorCategory, component, operation, message string) *EngineError {
	return &EngineError{
		Category:  category,
		Component: component,
		Operation: operation,
		Message:   message,
		Context:   make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with engine error context
func WrapError(err error, category ErrorCategory, component, operation, message string) *EngineError {
	if err == nil {
		return nil
	}

	return &EngineError{
		Category:   category,
		Component:  component,
		Operation:  operation,
		Message:    message,
		Underlying: err,
		Context:    make(map[string]interface{}),
	}
}

// WithContext adds context information to the error
func (e *EngineError) WithContext(key string, value interface{}) *EngineError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewInvalidSampleError reports a rejected volatility, cost or outcome sample.
func NewInvalidSampleError(component, operation, message string) *EngineError {
	return WrapError(ErrInvalidSample, ErrorCategoryValidation, component, operation, message)
}

// NewInvalidPriceError reports a non-positive or non-finite price.
func NewInvalidPriceError(component, operation, message string) *EngineError {
	return WrapError(ErrInvalidPrice, ErrorCategoryValidation, component, operation, message)
}

func NewUnknownSymbolError(component, operation, symbol string) *EngineError {
	return WrapError(ErrUnknownSymbol, ErrorCategoryState, component, operation, symbol).
		WithContext("symbol", symbol)
}

func NewValidationError(component, operation, message string) *EngineError {
	return NewEngineError(ErrorCategoryValidation, component, operation, message)
}

func NewConfigurationError(component, operation, message string) *EngineError {
	return WrapError(ErrInvalidConfig, ErrorCategoryConfiguration, component, operation, message)
}

func NewPositionError(component, operation string, err error) *EngineError {
	return WrapError(err, ErrorCategoryPosition, component, operation, "position update failed")
}

// IsInvalidSample reports whether err was caused by a rejected sample.
func IsInvalidSample(err error) bool {
	return stderrors.Is(err, ErrInvalidSample)
}

// ErrorStats tracks error statistics
type ErrorStats struct {
	mu               sync.Mutex
	TotalErrors      int
	ErrorsByCategory map[ErrorCategory]int
	RecentErrors     []*EngineError
	MaxRecentErrors  int
}

// NewErrorStats creates a new error statistics tracker
func NewErrorStats(maxRecentErrors int) *ErrorStats {
	if maxRecentErrors <= 0 {
		maxRecentErrors = 20
	}
	return &ErrorStats{
		ErrorsByCategory: make(map[ErrorCategory]int),
		RecentErrors:     make([]*EngineError, 0, maxRecentErrors),
		MaxRecentErrors:  maxRecentErrors,
	}
}

// RecordError records an error in the statistics. Errors that are not
// EngineErrors are recorded under the STATE category.
func (es *ErrorStats) RecordError(err error) {
	if err == nil {
		return
	}
	var engErr *EngineError
	if !stderrors.As(err, &engErr) {
		engErr = WrapError(err, ErrorCategoryState, "engine", "unknown", "unclassified error")
	}

	es.mu.Lock()
	defer es.mu.Unlock()

	es.TotalErrors++
	es.ErrorsByCategory[engErr.Category]++
	es.RecentErrors = append(es.RecentErrors, engErr)

	// Keep only the most recent errors
	if len(es.RecentErrors) > es.MaxRecentErrors {
		es.RecentErrors = es.RecentErrors[1:]
	}
}

// GetErrorRate returns the share of recorded errors in a category
func (es *ErrorStats) GetErrorRate(category ErrorCategory) float64 {
	es.mu.Lock()
	defer es.mu.Unlock()

	if es.TotalErrors == 0 {
		return 0.0
	}
	return float64(es.ErrorsByCategory[category]) / float64(es.TotalErrors)
}

// Recent returns the recent error messages, oldest first.
func (es *ErrorStats) Recent() []string {
	es.mu.Lock()
	defer es.mu.Unlock()

	out := make([]string, 0, len(es.RecentErrors))
	for _, err := range es.RecentErrors {
		out = append(out, err.Error())
	}
	return out
}

// HasRecentErrors checks if there have been at least count errors of a category
func (es *ErrorStats) HasRecentErrors(category ErrorCategory, count int) bool {
	es.mu.Lock()
	defer es.mu.Unlock()

	recentCount := 0
	for _, err := range es.RecentErrors {
		if err.Category == category {
			recentCount++
		}
	}
	return recentCount >= count
}
