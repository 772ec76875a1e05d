// Package apperror is the tagged error result returned by every engine. The
// request boundary turns it into the {success:false, message} JSON shape.
package apperror

import (
	"errors"
	"fmt"
)

// Kind is the category of a failure.
type Kind string

const (
	KindUnauthorized         Kind = "unauthorized"
	KindNotFound             Kind = "not_found"
	KindValidation           Kind = "validation"
	KindConflict             Kind = "conflict"
	KindConfirmationRequired Kind = "confirmation_required"
	KindDatabase             Kind = "database"
)

// Codes name the specific reason within a kind.
const (
	CodeUnauthorized         = "Unauthorized"
	CodeForbidden            = "Forbidden"
	CodeProfileNotFound      = "ProfileNotFound"
	CodeNotFound             = "NotFound"
	CodeNotFoundOrForbidden  = "NotFoundOrForbidden"
	CodeInvalidCode          = "InvalidCode"
	CodeAlreadyCancelled     = "AlreadyCancelled"
	CodeAlreadyCompleted     = "AlreadyCompleted"
	CodeWrongDate            = "WrongDate"
	CodeAlreadyCheckedIn     = "AlreadyCheckedIn"
	CodeInvalidStatus        = "InvalidStatus"
	CodeMissingFields        = "MissingFields"
	CodeInvalidField         = "InvalidField"
	CodeNotEditable          = "NotEditable"
	CodeConfirmationRequired = "ConfirmationRequired"
	CodeDatabaseError        = "DatabaseError"
)

// Error is a failure with a user-facing message. Message is always safe to
// show; Cause never is.
type Error struct {
	Kind     Kind
	Code     string
	Message  string
	Warnings interface{}
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Code: CodeUnauthorized, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindUnauthorized, Code: CodeForbidden, Message: message}
}

func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

func Validation(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

func Conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

// ConfirmationRequired interrupts an operation until the caller resubmits it
// with an explicit override. warnings is rendered verbatim.
func ConfirmationRequired(message string, warnings interface{}) *Error {
	return &Error{
		Kind:     KindConfirmationRequired,
		Code:     CodeConfirmationRequired,
		Message:  message,
		Warnings: warnings,
	}
}

func Database(message string, cause error) *Error {
	return &Error{Kind: KindDatabase, Code: CodeDatabaseError, Message: message, Cause: cause}
}

// ProfileNotFound is returned when the calling user owns no doctor record.
func ProfileNotFound() *Error {
	return NotFound(CodeProfileNotFound, "Doctor profile not found")
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}
