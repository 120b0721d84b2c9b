package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidState      = errors.New("operation not allowed in current status")
	ErrScoreOutOfRange   = errors.New("score out of range")
	ErrQuestionMismatch  = errors.New("question does not belong to the audit template")
)

// IncompleteRequiredError is returned by Complete when required questions are
// still missing a response row. Missing carries how many.
type IncompleteRequiredError struct {
	Missing int
}

func (e *IncompleteRequiredError) Error() string {
	return fmt.Sprintf("%d required questions still unanswered", e.Missing)
}

// ValidationError covers caller errors on comparison/trend inputs and
// malformed mutation payloads.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}
