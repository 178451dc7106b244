package pipeline

import (
	"errors"
	"fmt"
)

// Kind tags a turn failure so callers can render an appropriate message.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindTranslation    Kind = "translation"
	KindChatCompletion Kind = "chat_completion"
	KindSynthesis      Kind = "synthesis"
	KindConcurrentTurn Kind = "concurrent_turn"
)

// Error wraps a stage failure with its kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf extracts the failure kind from err, if it carries one.
func KindOf(err error) (Kind, bool) {
	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr.Kind, true
	}
	return "", false
}
