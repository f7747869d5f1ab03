package errors

import (
	"errors"
	"fmt"
)

// Domain error types for business logic

var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists indicates a resource already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput indicates invalid input parameters
	ErrInvalidInput = errors.New("invalid input")

	// ErrInternal indicates an internal error
	ErrInternal = errors.New("internal error")

	// ErrTimeout indicates an operation timeout
	ErrTimeout = errors.New("operation timeout")

	// ErrUnavailable indicates a service is unavailable
	ErrUnavailable = errors.New("service unavailable")
)

// Pipeline-specific errors

var (
	// ErrInsufficientData indicates a prediction could not be produced
	// because neither price nor sentiment inputs were obtainable
	ErrInsufficientData = errors.New("insufficient data")

	// ErrUpstreamUnavailable indicates an external data provider is down
	ErrUpstreamUnavailable = errors.New("upstream provider unavailable")

	// ErrEmptyText indicates scoring was attempted on empty text
	ErrEmptyText = errors.New("empty text")

	// ErrRateLimitExceeded indicates a provider rate limit was exceeded
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// Dispatch-specific errors

var (
	// ErrDispatchFailed indicates an alert could not be delivered
	ErrDispatchFailed = errors.New("alert dispatch failed")

	// ErrNoRecipient indicates an email alert had no resolvable recipient
	ErrNoRecipient = errors.New("no recipient for email")

	// ErrUnknownChannel indicates an alert rule references an unknown channel type
	ErrUnknownChannel = errors.New("unknown alert channel")
)

// DomainError wraps an error with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Helper functions

// Is checks if err is or wraps target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func New(message string) error {
	return errors.New(message)
}

func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
