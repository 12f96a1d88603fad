package domain

import (
	"errors"
	"fmt"
)

// Error types for domain-specific errors
type ErrorType string

const (
	ErrorTypeUnsupportedFormat ErrorType = "unsupported_format"
	ErrorTypeDecode            ErrorType = "decode"
	ErrorTypeRender            ErrorType = "render"
	ErrorTypeRemoteUnavailable ErrorType = "remote_unavailable"
	ErrorTypeEncode            ErrorType = "encode"
	ErrorTypeValidation        ErrorType = "validation"
	ErrorTypeConfig            ErrorType = "config"
	ErrorTypeIO                ErrorType = "io"
)

// UnsupportedFormatMessage is shown when the dispatcher rejects an artifact.
const UnsupportedFormatMessage = "Only PNG, JPEG, JPG, PDF, SVG, FIG files are supported."

// RemoteUnavailableMessage is shown for every remote export failure.
const RemoteUnavailableMessage = "remote export unavailable"

// DomainError represents a domain-specific error with context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// UserMessage returns the plain-language message without the wrapped cause.
func (e *DomainError) UserMessage() string {
	return e.Message
}

// NewError creates a new domain error
func NewError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// Common error constructors
func UnsupportedFormatError(kind string) *DomainError {
	return NewError(ErrorTypeUnsupportedFormat, UnsupportedFormatMessage, fmt.Errorf("unrecognized kind %q", kind))
}

func DecodeError(message string, err error) *DomainError {
	return NewError(ErrorTypeDecode, message, err)
}

func RenderError(message string, err error) *DomainError {
	return NewError(ErrorTypeRender, message, err)
}

func RemoteUnavailableError(err error) *DomainError {
	return NewError(ErrorTypeRemoteUnavailable, RemoteUnavailableMessage, err)
}

func EncodeError(message string, err error) *DomainError {
	return NewError(ErrorTypeEncode, message, err)
}

func ValidationError(message string, err error) *DomainError {
	return NewError(ErrorTypeValidation, message, err)
}

func ConfigError(message string, err error) *DomainError {
	return NewError(ErrorTypeConfig, message, err)
}

func IOError(message string, err error) *DomainError {
	return NewError(ErrorTypeIO, message, err)
}

// IsType reports whether err carries a DomainError of the given type.
func IsType(err error, errType ErrorType) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Type == errType
	}
	return false
}

// UserMessage extracts a message suitable for end users from any error.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var de *DomainError
	if errors.As(err, &de) {
		return de.UserMessage()
	}
	return err.Error()
}
