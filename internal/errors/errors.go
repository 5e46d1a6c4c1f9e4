package errors

import (
	stderrors "errors"
	"net/http"
)

type ErrorType string

const (
	ErrorTypeNotInitialized     ErrorType = "NOT_INITIALIZED"
	ErrorTypeAlreadyInitialized ErrorType = "ALREADY_INITIALIZED"
	ErrorTypeNotFound           ErrorType = "NOT_FOUND"
	ErrorTypeAlreadyExists      ErrorType = "ALREADY_EXISTS"
	ErrorTypeNothingToDo        ErrorType = "NOTHING_TO_DO"
	ErrorTypeUntrackedOverwrite ErrorType = "UNTRACKED_OVERWRITE"
	ErrorTypeAmbiguousID        ErrorType = "AMBIGUOUS_ID"
	ErrorTypeInvalidOperands    ErrorType = "INVALID_OPERANDS"
	ErrorTypeLocked             ErrorType = "LOCKED"
)

// Error is a user-facing failure. Message is the exact text shown to the user.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    int       `json:"code"`
}

func (e *Error) Error() string {
	return e.Message
}

// Is reports whether target is an *Error of the same type, so the sentinels
// below work with errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// Sentinels for errors.Is.
var (
	ErrNotInitialized     = &Error{Type: ErrorTypeNotInitialized}
	ErrAlreadyInitialized = &Error{Type: ErrorTypeAlreadyInitialized}
	ErrNotFound           = &Error{Type: ErrorTypeNotFound}
	ErrAlreadyExists      = &Error{Type: ErrorTypeAlreadyExists}
	ErrNothingToDo        = &Error{Type: ErrorTypeNothingToDo}
	ErrUntrackedOverwrite = &Error{Type: ErrorTypeUntrackedOverwrite}
	ErrAmbiguousID        = &Error{Type: ErrorTypeAmbiguousID}
	ErrInvalidOperands    = &Error{Type: ErrorTypeInvalidOperands}
	ErrLocked             = &Error{Type: ErrorTypeLocked}
)

func NotInitialized(message string) *Error {
	return &Error{
		Type:    ErrorTypeNotInitialized,
		Message: message,
		Code:    http.StatusNotFound,
	}
}

func AlreadyInitialized(message string) *Error {
	return &Error{
		Type:    ErrorTypeAlreadyInitialized,
		Message: message,
		Code:    http.StatusConflict,
	}
}

func NotFound(message string) *Error {
	return &Error{
		Type:    ErrorTypeNotFound,
		Message: message,
		Code:    http.StatusNotFound,
	}
}

func AlreadyExists(message string) *Error {
	return &Error{
		Type:    ErrorTypeAlreadyExists,
		Message: message,
		Code:    http.StatusConflict,
	}
}

func NothingToDo(message string) *Error {
	return &Error{
		Type:    ErrorTypeNothingToDo,
		Message: message,
		Code:    http.StatusUnprocessableEntity,
	}
}

func UntrackedOverwrite(message string) *Error {
	return &Error{
		Type:    ErrorTypeUntrackedOverwrite,
		Message: message,
		Code:    http.StatusConflict,
	}
}

func AmbiguousID(message string) *Error {
	return &Error{
		Type:    ErrorTypeAmbiguousID,
		Message: message,
		Code:    http.StatusBadRequest,
	}
}

func InvalidOperands(message string) *Error {
	return &Error{
		Type:    ErrorTypeInvalidOperands,
		Message: message,
		Code:    http.StatusBadRequest,
	}
}

func Locked(message string) *Error {
	return &Error{
		Type:    ErrorTypeLocked,
		Message: message,
		Code:    http.StatusLocked,
	}
}

// As unwraps err to the first *Error in its chain.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Well-known messages shared by several packages.
const (
	MsgUntrackedInTheWay = "There is an untracked file in the way; delete it, or add and commit it first."
	MsgNoSuchCommit      = "No commit with that id exists."
	MsgNotInitialized    = "Not in an initialized twig directory."
)
