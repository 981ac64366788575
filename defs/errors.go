package defs

import "fmt"

// Error is the status type for schema errors: duplicate names,
// unresolved symbolic references, and similar build-time failures. The
// symbol table is left unchanged whenever a build fails.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string { return e.Message }

// ErrorCode classifies a schema build failure.
type ErrorCode uint8

const (
	ErrUnknown ErrorCode = iota
	ErrDuplicateName
	ErrAnonymous
	ErrUnresolvedReference
	ErrFieldNumberOutOfRange
	ErrTooManyFields
	ErrOneofConflict
	ErrGroupInProto3
	ErrNotFrozen
	ErrAlreadyFrozen
	ErrInvalidExtensionRange
)

func errf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}
