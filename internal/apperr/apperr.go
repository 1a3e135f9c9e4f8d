// Package apperr defines the error kinds that services return and the HTTP
// layer translates into status codes.
package apperr

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Kind classifies an error for the caller.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindValidation
	KindUnauthorized
	KindExternal
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindExternal:
		return "external"
	default:
		return "internal"
	}
}

// Codes
const (
	CodeProjectNotFound  = "project_not_found"
	CodeBlockNotFound    = "block_not_found"
	CodeAssetNotFound    = "asset_not_found"
	CodeJobNotFound      = "job_not_found"
	CodeUserNotFound     = "user_not_found"
	CodeBlockSplit       = "block_split_error"
	CodeBlockMerge       = "block_merge_error"
	CodeScriptProcessing = "script_processing_error"
	CodeExternalService  = "external_service_error"
	CodeValidationFailed = "validation_failed"
	CodeNicknameExists   = "nickname_exists"
	CodeInvalidPassword  = "invalid_password"
	CodeInactiveUser     = "inactive_user"
	CodeUnauthorized     = "unauthorized"
	CodeInternal         = "internal_error"
)

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

func ProjectNotFound(id uuid.UUID) *Error {
	return New(KindNotFound, CodeProjectNotFound, fmt.Sprintf("project %s not found", id))
}

func BlockNotFound(id uuid.UUID) *Error {
	return New(KindNotFound, CodeBlockNotFound, fmt.Sprintf("block %s not found", id))
}

func AssetNotFound(blockID, assetID uuid.UUID) *Error {
	return New(KindNotFound, CodeAssetNotFound, fmt.Sprintf("asset %s is not a candidate of block %s", assetID, blockID))
}

func JobNotFound(id uuid.UUID) *Error {
	return New(KindNotFound, CodeJobNotFound, fmt.Sprintf("job %s not found", id))
}

func BlockSplit(format string, args ...any) *Error {
	return New(KindValidation, CodeBlockSplit, fmt.Sprintf(format, args...))
}

func BlockMerge(format string, args ...any) *Error {
	return New(KindValidation, CodeBlockMerge, fmt.Sprintf(format, args...))
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, CodeValidationFailed, fmt.Sprintf(format, args...))
}

func Unauthorized(code, message string) *Error {
	return New(KindUnauthorized, code, message)
}

// ScriptProcessing reports that the splitter produced nothing usable.
func ScriptProcessing(message string, err error) *Error {
	return Wrap(KindExternal, CodeScriptProcessing, message, err)
}

func ExternalService(service string, err error) *Error {
	return Wrap(KindExternal, CodeExternalService, service+" request failed", err)
}
