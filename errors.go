package rediswork

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions
var (
	// Configuration errors are fatal and never retried
	ErrConfiguration = errors.New("invalid configuration")
	ErrNotRegistered = fmt.Errorf("%w: type is not registered", ErrConfiguration)

	// Compilation errors are raised per predicate or sort expression
	ErrCompilation           = errors.New("query compilation failed")
	ErrUnsupportedExpression = fmt.Errorf("%w: unsupported expression", ErrCompilation)

	// Mapping errors are raised per document
	ErrMapping = errors.New("document mapping failed")

	// Connection errors are raised when the bootstrap retry budget is exhausted
	ErrConnection = errors.New("search engine unreachable")

	// Data errors
	ErrNotFound = errors.New("document not found")

	// Transaction errors
	ErrTransactionActive = errors.New("reads are not available inside a transaction bracket")
)

// ErrorWithContext adds additional context to errors for better debugging and logging
type ErrorWithContext struct {
	Err     error
	Context map[string]interface{}
}

func (e *ErrorWithContext) Error() string {
	if len(e.Context) == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v (context: %+v)", e.Err, e.Context)
}

func (e *ErrorWithContext) Unwrap() error {
	return e.Err
}

// WithContext adds context to an error
func WithContext(err error, context map[string]interface{}) error {
	if err == nil {
		return nil
	}
	return &ErrorWithContext{
		Err:     err,
		Context: context,
	}
}

// IsNotFound checks if an error is a "not found" error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConfiguration checks if an error comes from a schema or registration problem
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsCompilation checks if an error comes from the predicate compiler
func IsCompilation(err error) bool {
	return errors.Is(err, ErrCompilation)
}

// IsMapping checks if an error comes from the document mapper
func IsMapping(err error) bool {
	return errors.Is(err, ErrMapping)
}

// IsConnection checks if an error means the engine could not be reached at bootstrap
func IsConnection(err error) bool {
	return errors.Is(err, ErrConnection)
}

// IsPermanent checks if an error is permanent (retrying the same call cannot succeed)
func IsPermanent(err error) bool {
	return IsConfiguration(err) ||
		IsCompilation(err) ||
		IsMapping(err) ||
		IsNotFound(err)
}

// unsupported builds a compilation error carrying the offending shape.
func unsupported(reason string, context map[string]interface{}) error {
	if context == nil {
		context = map[string]interface{}{}
	}
	context["reason"] = reason
	return WithContext(ErrUnsupportedExpression, context)
}

// mappingError builds a mapping error for one field.
func mappingError(field string, reason string, cause error) error {
	ctx := map[string]interface{}{
		"field":  field,
		"reason": reason,
	}
	if cause != nil {
		ctx["error"] = cause.Error()
	}
	return WithContext(ErrMapping, ctx)
}
