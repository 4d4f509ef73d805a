package errors

import (
	"errors"
	"fmt"
)

var (
	ErrCorruptWorkbook    = errors.New("corrupt workbook")
	ErrFileNotFound       = errors.New("file not found")
	ErrSheetNotFound      = errors.New("sheet not found")
	ErrInvalidFileFormat  = errors.New("invalid file format")
	ErrEmptyFile          = errors.New("empty file")
	ErrFileTooLarge       = errors.New("file too large")
	ErrFileAlreadyExists  = errors.New("file already uploaded")
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
	ErrProfileIncomplete  = errors.New("profile incomplete")
	ErrLockNotAcquired    = errors.New("lock not acquired")
	ErrInvalidGradeValue  = errors.New("invalid grade value")
)

// CorruptWorkbookError carries the reason a buffer could not be opened.
// It matches ErrCorruptWorkbook with errors.Is.
type CorruptWorkbookError struct {
	Reason string
	Err    error
}

func (e *CorruptWorkbookError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("corrupt workbook: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("corrupt workbook: %s", e.Reason)
}

func (e *CorruptWorkbookError) Is(target error) bool {
	return target == ErrCorruptWorkbook
}

func (e *CorruptWorkbookError) Unwrap() error {
	return e.Err
}

func NewCorruptWorkbookError(reason string, err error) error {
	return &CorruptWorkbookError{Reason: reason, Err: err}
}

// HeaderParseError names the header field that could not be located.
type HeaderParseError struct {
	Sheet string
	Field string
}

func (e *HeaderParseError) Error() string {
	return fmt.Sprintf("sheet '%s': header field '%s' not found", e.Sheet, e.Field)
}

// RowExtractionError reports a student row whose identifier is not an integer.
type RowExtractionError struct {
	Sheet  string
	Row    int
	Column int
	Value  interface{}
	Err    error
}

func (e *RowExtractionError) Error() string {
	return fmt.Sprintf("sheet '%s': row %d column %d: invalid identifier '%v': %v",
		e.Sheet, e.Row, e.Column, e.Value, e.Err)
}

func (e *RowExtractionError) Unwrap() error {
	return e.Err
}

// RewriteError wraps an IO failure while saving a rewritten workbook.
type RewriteError struct {
	Path string
	Op   string
	Err  error
}

func (e *RewriteError) Error() string {
	return fmt.Sprintf("rewrite %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *RewriteError) Unwrap() error {
	return e.Err
}

type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s' with value '%v': %s",
		e.Field, e.Value, e.Message)
}

type RetryableError struct {
	Err     error
	Message string
}

func (e RetryableError) Error() string {
	return fmt.Sprintf("retryable error: %s - %s", e.Message, e.Err.Error())
}

func (e RetryableError) Unwrap() error {
	return e.Err
}

func NewRetryableError(err error, message string) error {
	return RetryableError{
		Err:     err,
		Message: message,
	}
}

// IsRetryable reports whether err carries a RetryableError.
func IsRetryable(err error) bool {
	var r RetryableError
	return errors.As(err, &r)
}
