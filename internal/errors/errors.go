// Package errors provides structured error types for fgdb2gpkg.
// All errors include a category, code, message, and fatal flag so callers can
// branch on the kind of failure instead of parsing messages.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by the part of the migration that failed.
type ErrorCategory string

const (
	ErrCategoryValidation  ErrorCategory = "VALIDATION"
	ErrCategorySource      ErrorCategory = "SOURCE"
	ErrCategoryDestination ErrorCategory = "DESTINATION"
	ErrCategoryConversion  ErrorCategory = "CONVERSION"
	ErrCategoryStorage     ErrorCategory = "STORAGE"
	ErrCategoryVerify      ErrorCategory = "VERIFY"
	ErrCategoryInternal    ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeInvalidOptions = "INVALID_OPTIONS"

	// Source codes
	CodeSourceNotFound = "SOURCE_NOT_FOUND"

	// Shared by source and destination containers
	CodeContainerUnreadable = "CONTAINER_UNREADABLE"

	// Destination codes
	CodeLayerAlreadyExists = "LAYER_ALREADY_EXISTS"
	CodeResetFailed        = "RESET_FAILED"

	// Conversion codes
	CodeConversionFailed = "CONVERSION_FAILED"

	// Storage codes
	CodeUploadFailed = "UPLOAD_FAILED"

	// Verify codes
	CodeVerifyMismatch = "VERIFY_MISMATCH"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// MigrationError is the structured error type used throughout the system.
type MigrationError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Layer    string
	Details  map[string]interface{}
	Cause    error
	Fatal    bool
}

// Error returns a formatted error string.
func (e *MigrationError) Error() string {
	msg := e.Message
	if e.Layer != "" {
		msg = fmt.Sprintf("%s (layer %q)", msg, e.Layer)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, msg)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *MigrationError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *MigrationError) Is(target error) bool {
	var t *MigrationError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new MigrationError.
func New(category ErrorCategory, code, message string) *MigrationError {
	return &MigrationError{
		Category: category,
		Code:     code,
		Message:  message,
		Fatal:    isFatal(category, code),
	}
}

// Wrap creates a new MigrationError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *MigrationError {
	return &MigrationError{
		Category: category,
		Code:     code,
		Message:  message,
		Cause:    cause,
		Fatal:    isFatal(category, code),
	}
}

// WithLayer returns a copy of the error bound to a layer name.
func (e *MigrationError) WithLayer(layer string) *MigrationError {
	cp := *e
	cp.Layer = layer
	return &cp
}

// WithDetails returns a copy of the error with additional details.
func (e *MigrationError) WithDetails(details map[string]interface{}) *MigrationError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsFatal checks whether an error (or its chain) must abort a run.
// Errors that are not MigrationErrors are always fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var me *MigrationError
	if errors.As(err, &me) {
		return me.Fatal
	}
	return true
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a MigrationError.
func GetCategory(err error) ErrorCategory {
	var me *MigrationError
	if errors.As(err, &me) {
		return me.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a MigrationError.
func GetCode(err error) string {
	var me *MigrationError
	if errors.As(err, &me) {
		return me.Code
	}
	return ""
}

// GetLayer extracts the layer name from an error chain.
func GetLayer(err error) string {
	var me *MigrationError
	if errors.As(err, &me) {
		return me.Layer
	}
	return ""
}

// isFatal determines whether an error code aborts a migration run.
// A name collision with an existing destination layer is the only
// condition the driver absorbs.
func isFatal(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryDestination && code == CodeLayerAlreadyExists:
		return false
	default:
		return true
	}
}

// Sentinels for errors.Is matching. Matching compares category and code only.
var (
	ErrInvalidRequest      = New(ErrCategoryValidation, CodeInvalidRequest, "invalid migration request")
	ErrInvalidOptions      = New(ErrCategoryValidation, CodeInvalidOptions, "invalid write options")
	ErrSourceNotFound      = New(ErrCategorySource, CodeSourceNotFound, "source container not found")
	ErrSourceUnreadable    = New(ErrCategorySource, CodeContainerUnreadable, "source container unreadable")
	ErrDestUnreadable      = New(ErrCategoryDestination, CodeContainerUnreadable, "destination container unreadable")
	ErrLayerAlreadyExists  = New(ErrCategoryDestination, CodeLayerAlreadyExists, "layer already exists")
	ErrDestinationReset    = New(ErrCategoryDestination, CodeResetFailed, "destination reset failed")
	ErrConversionFailure   = New(ErrCategoryConversion, CodeConversionFailed, "layer conversion failed")
	ErrUploadFailed        = New(ErrCategoryStorage, CodeUploadFailed, "upload failed")
	ErrVerificationFailure = New(ErrCategoryVerify, CodeVerifyMismatch, "verification mismatch")
)

// Convenience constructors for common errors.

func NewValidationError(code, message string) *MigrationError {
	return New(ErrCategoryValidation, code, message)
}

func NewSourceNotFound(path string, cause error) *MigrationError {
	return Wrap(ErrCategorySource, CodeSourceNotFound, fmt.Sprintf("source %s does not exist or is not a readable container", path), cause)
}

func NewContainerUnreadable(category ErrorCategory, path string, cause error) *MigrationError {
	return Wrap(category, CodeContainerUnreadable, fmt.Sprintf("cannot read container %s", path), cause)
}

func NewLayerAlreadyExists(layer, dest string) *MigrationError {
	return New(ErrCategoryDestination, CodeLayerAlreadyExists, fmt.Sprintf("layer already exists in %s, skipping", dest)).WithLayer(layer)
}

func NewResetError(path string, cause error) *MigrationError {
	return Wrap(ErrCategoryDestination, CodeResetFailed, fmt.Sprintf("failed to remove %s", path), cause)
}

func NewConversionError(layer, message string, cause error) *MigrationError {
	return Wrap(ErrCategoryConversion, CodeConversionFailed, message, cause).WithLayer(layer)
}

func NewStorageError(code, message string, cause error) *MigrationError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewVerifyError(layer, message string) *MigrationError {
	return New(ErrCategoryVerify, CodeVerifyMismatch, message).WithLayer(layer)
}

func NewInternalError(message string, cause error) *MigrationError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
