// Package errors provides standardized error types and helpers for the lexweb codebase.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("not found")
	// ErrConfig indicates a required resource is missing or unusable
	ErrConfig = errors.New("configuration error")
	// ErrBadQuery indicates a syntactically invalid path or query expression
	ErrBadQuery = errors.New("bad query")
	// ErrParse indicates malformed input that failed to parse
	ErrParse = errors.New("parse error")
	// ErrTransform indicates a stylesheet failed during application
	ErrTransform = errors.New("transform error")
)

// ConfigError represents a missing or uncompilable resource with context
type ConfigError struct {
	Resource string // Name of the resource (e.g., "FormOnly")
	Path     string // File path, if applicable
	Err      error  // Underlying error, if any
}

func (e *ConfigError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("resource %s unusable at %s: %v", e.Resource, e.Path, e.Err)
	}
	return fmt.Sprintf("resource %s unusable: %v", e.Resource, e.Err)
}

func (e *ConfigError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrConfig
}

// Is reports ErrConfig membership regardless of the wrapped cause.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

// QueryError represents a syntactically invalid query expression
type QueryError struct {
	Expr string // The offending expression
	Err  error  // Underlying error, if any
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("invalid query %q: %v", e.Expr, e.Err)
}

func (e *QueryError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrBadQuery
}

// Is reports ErrBadQuery membership regardless of the wrapped cause.
func (e *QueryError) Is(target error) bool {
	return target == ErrBadQuery
}

// ParseError represents a parsing or deserialization error
type ParseError struct {
	Format  string // Format being parsed (e.g., "JSON", "XML")
	Section string // Logical section, if applicable (e.g., "definition", "note")
	Err     error  // Underlying error, if any
}

func (e *ParseError) Error() string {
	if e.Section != "" {
		return fmt.Sprintf("failed to parse %s in %s: %v", e.Format, e.Section, e.Err)
	}
	return fmt.Sprintf("failed to parse %s: %v", e.Format, e.Err)
}

func (e *ParseError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrParse
}

// Is reports ErrParse membership regardless of the wrapped cause.
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// TransformError represents a stylesheet failure during application
type TransformError struct {
	Stylesheet string // Stylesheet name (e.g., "CitOnly")
	Err        error  // Underlying error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("stylesheet %s failed: %v", e.Stylesheet, e.Err)
}

func (e *TransformError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrTransform
}

// Is reports ErrTransform membership regardless of the wrapped cause.
func (e *TransformError) Is(target error) bool {
	return target == ErrTransform
}

// Helper functions for creating common errors

// NewConfig creates a ConfigError
func NewConfig(resource, path string, err error) *ConfigError {
	return &ConfigError{
		Resource: resource,
		Path:     path,
		Err:      err,
	}
}

// NewQuery creates a QueryError
func NewQuery(expr string, err error) *QueryError {
	return &QueryError{
		Expr: expr,
		Err:  err,
	}
}

// NewParse creates a ParseError
func NewParse(format, section string, err error) *ParseError {
	return &ParseError{
		Format:  format,
		Section: section,
		Err:     err,
	}
}

// NewTransform creates a TransformError
func NewTransform(stylesheet string, err error) *TransformError {
	return &TransformError{
		Stylesheet: stylesheet,
		Err:        err,
	}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
