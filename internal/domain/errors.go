// Package domain defines core types, interfaces, and errors for the typology engine.
package domain

import "fmt"

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// DataLookupError indicates a scheme code or combination is absent from a
// table the engine requires. It aborts the municipality being processed.
type DataLookupError struct {
	Message string
}

func (e *DataLookupError) Error() string { return e.Message }

// DataIntegrityError indicates values that cannot be processed: negative or
// non-finite counts reaching the rounder, or malformed percentage strings.
type DataIntegrityError struct {
	Message string
}

func (e *DataIntegrityError) Error() string { return e.Message }

// ConfigurationError indicates a missing or unusable input table, sheet or
// setting. It is surfaced before any municipality is processed.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string { return e.Message }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrDataLookup creates a DataLookupError with a formatted message.
func ErrDataLookup(format string, args ...interface{}) *DataLookupError {
	return &DataLookupError{Message: fmt.Sprintf(format, args...)}
}

// ErrDataIntegrity creates a DataIntegrityError with a formatted message.
func ErrDataIntegrity(format string, args ...interface{}) *DataIntegrityError {
	return &DataIntegrityError{Message: fmt.Sprintf(format, args...)}
}

// ErrConfiguration creates a ConfigurationError with a formatted message.
func ErrConfiguration(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}
