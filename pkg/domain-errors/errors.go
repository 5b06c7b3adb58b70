// Package domainerrors defines the error codes shared by every layer of the
// service together with a small error type that carries one of them.
//
// Stores and adapters return plain or wrapped Go errors; services translate
// them into *Error values with a Code so transports can render a consistent
// response without inspecting messages.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies an error condition. Codes are stable strings because they
// are part of the public response contract and of persisted run artifacts.
type Code string

// Transport and platform codes.
const (
	CodeBadRequest         Code = "BAD_REQUEST"
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeForbidden          Code = "FORBIDDEN"
	CodeNotFound           Code = "NOT_FOUND"
	CodeConflict           Code = "CONFLICT"
	CodeTimeout            Code = "TIMEOUT"
	CodeInternal           Code = "INTERNAL_ERROR"
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"
	CodeRateLimited        Code = "RATE_LIMITED"
)

// Acquire stage.
const (
	CodeFileEmpty           Code = "FILE_EMPTY"
	CodeUnsupportedFileType Code = "UNSUPPORTED_FILE_TYPE"
	CodeFileTooLarge        Code = "FILE_TOO_LARGE"
	CodePDFTooManyPages     Code = "PDF_TOO_MANY_PAGES"
	CodeFileSaveFailed      Code = "FILE_SAVE_FAILED"
)

// Recognize stage.
const (
	CodeOCRFailed Code = "OCR_FAILED"
	CodeOCREmpty  Code = "OCR_EMPTY"
)

// Classify stage.
const (
	CodeLLMClassifyFailed Code = "LLM_CLASSIFY_FAILED"
	CodeDocTypeParseError Code = "DOC_TYPE_PARSE_ERROR"
	CodeMultipleDocuments Code = "MULTIPLE_DOCUMENTS"
)

// Extract stage.
const (
	CodeLLMExtractFailed      Code = "LLM_EXTRACT_FAILED"
	CodeExtractSchemaMismatch Code = "EXTRACT_SCHEMA_MISMATCH"
)

// Business rules evaluated by the Validate stage.
const (
	CodeFIOMissing     Code = "FIO_MISSING"
	CodeFIOMismatch    Code = "FIO_MISMATCH"
	CodeDocDateMissing Code = "DOC_DATE_MISSING"
	CodeDocDateTooOld  Code = "DOC_DATE_TOO_OLD"
	CodeDocTypeUnknown Code = "DOC_TYPE_UNKNOWN"
)

// Run-level fallbacks.
const (
	CodeUnknown             Code = "UNKNOWN_ERROR"
	CodeArtifactWriteFailed Code = "ARTIFACT_WRITE_FAILED"
)

// Error is a coded error. Message is safe to show to API clients; Err keeps
// the underlying cause for logs.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error without an underlying cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and client-safe message to err.
func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether any *Error in err's chain carries code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// CodeOf returns the outermost code in err's chain, or CodeInternal when err
// carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the client-safe message of the outermost *Error, or the
// registered message for CodeInternal.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	spec, _ := Lookup(CodeOf(err))
	return spec.Message
}
