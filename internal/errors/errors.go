// Package errors provides centralized error handling with component and
// category metadata for structured logging and metrics.
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"time"
)

// ErrorCategory represents the type of error for better categorization
type ErrorCategory string

const (
	CategoryModelInit         ErrorCategory = "model-initialization"
	CategoryModelInference    ErrorCategory = "model-inference"
	CategoryFeatureExtraction ErrorCategory = "feature-extraction"
	CategoryAudioDecode       ErrorCategory = "audio-decode"
	CategoryAudioCapture      ErrorCategory = "audio-capture"
	CategoryLocalization      ErrorCategory = "localization"
	CategoryValidation        ErrorCategory = "validation"
	CategoryConfiguration     ErrorCategory = "configuration"
	CategoryMQTTConnection    ErrorCategory = "mqtt-connection"
	CategoryMQTTPublish       ErrorCategory = "mqtt-publish"
	CategoryHTTP              ErrorCategory = "http-request"
	CategoryGeneric           ErrorCategory = "generic"
)

// Sentinel errors for conditions callers branch on. They are wrapped by
// EnhancedError so stderrors.Is works through the builder.
var (
	// ErrInsufficientChannels indicates fewer than the minimum microphone
	// channels required for real localization. Not fatal to a detection,
	// it triggers the simulated localization fallback.
	ErrInsufficientChannels = stderrors.New("insufficient channels for localization")

	// ErrAudioTooShort indicates a waveform with too few samples for
	// cross-correlation.
	ErrAudioTooShort = stderrors.New("waveform too short for delay estimation")

	// ErrNonFiniteFeatures indicates the DSP pipeline produced NaN or Inf
	// values. Fatal to the detection call.
	ErrNonFiniteFeatures = stderrors.New("feature tensor contains non-finite values")

	// ErrSingularGeometry indicates the multilateration system could not be
	// solved for the configured microphone geometry.
	ErrSingularGeometry = stderrors.New("singular microphone geometry")
)

// EnhancedError wraps an error with component, category and context metadata.
type EnhancedError struct {
	Err       error
	Component string
	Category  ErrorCategory
	Context   map[string]any
	Timestamp time.Time
}

// Error implements the error interface
func (ee *EnhancedError) Error() string {
	return ee.Err.Error()
}

// Unwrap implements the error unwrapping interface
func (ee *EnhancedError) Unwrap() error {
	return ee.Err
}

// Is matches either the wrapped error chain or another EnhancedError of the
// same category.
func (ee *EnhancedError) Is(target error) bool {
	if other, ok := target.(*EnhancedError); ok {
		return ee.Category == other.Category
	}
	return stderrors.Is(ee.Err, target)
}

// GetCategory returns the error category as a string.
func (ee *EnhancedError) GetCategory() string {
	return string(ee.Category)
}

// GetContext returns a copy of the context data to prevent external mutation.
func (ee *EnhancedError) GetContext() map[string]any {
	if ee.Context == nil {
		return nil
	}
	cp := make(map[string]any, len(ee.Context))
	maps.Copy(cp, ee.Context)
	return cp
}

// ErrorBuilder provides a fluent interface for creating enhanced errors
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	context   map[string]any
}

// New creates a new error builder wrapping err.
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf creates a new builder around a formatted error.
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

// Component sets the component name.
func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

// Category sets the error category for better grouping.
func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

// Context adds context data to the error.
func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any)
	}
	eb.context[key] = value
	return eb
}

// Build finalizes the enhanced error.
func (eb *ErrorBuilder) Build() *EnhancedError {
	if eb.category == "" {
		eb.category = CategoryGeneric
	}
	return &EnhancedError{
		Err:       eb.err,
		Component: eb.component,
		Category:  eb.category,
		Context:   eb.context,
		Timestamp: time.Now(),
	}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// HasCategory reports whether err carries the given category anywhere in its
// chain.
func HasCategory(err error, category ErrorCategory) bool {
	var ee *EnhancedError
	if stderrors.As(err, &ee) {
		return ee.Category == category
	}
	return false
}
