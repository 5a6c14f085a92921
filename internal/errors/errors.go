package errors

import (
	"errors"
	"fmt"
)

// VaultError is the structured error type for AgentVault.
// It carries a stable code for classification and the underlying cause
// for error chain support.
type VaultError struct {
	// Code is the unique error code (e.g., "ERR_202_STORE_IO").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Store, Producer, Query, Internal).
	Category Category

	// Cause is the underlying error that caused this error.
	Cause error
}

// Error implements the error interface.
func (e *VaultError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *VaultError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with VaultError.
func (e *VaultError) Is(target error) bool {
	if t, ok := target.(*VaultError); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a new VaultError with the given code and message.
// The category is derived from the code.
func New(code string, message string, cause error) *VaultError {
	return &VaultError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Cause:    cause,
	}
}

// StoreError creates a store-related error.
func StoreError(message string, cause error) *VaultError {
	return New(ErrCodeStoreIO, message, cause)
}

// ProducerError creates a producer-related error.
func ProducerError(message string, cause error) *VaultError {
	return New(ErrCodeExportMalformed, message, cause)
}

// QueryError creates a query-related error.
func QueryError(message string, cause error) *VaultError {
	return New(ErrCodeQueryFailed, message, cause)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *VaultError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// GetCode extracts the error code from an error chain.
// Returns empty string if no VaultError is found.
func GetCode(err error) string {
	var ve *VaultError
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ""
}

// GetCategory extracts the error category from an error chain.
// Returns CategoryInternal if no VaultError is found.
func GetCategory(err error) Category {
	var ve *VaultError
	if errors.As(err, &ve) {
		return ve.Category
	}
	return CategoryInternal
}
