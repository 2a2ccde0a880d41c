package decode

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindMalformedData Kind = iota + 1
	KindMemoryExhausted
	KindInvalidConstraints
)

func (k Kind) String() string {
	switch k {
	case KindMalformedData:
		return "malformed_data"
	case KindMemoryExhausted:
		return "memory_exhausted"
	case KindInvalidConstraints:
		return "invalid_constraints"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var (
	ErrMalformedData      = errors.New("malformed image data")
	ErrMemoryExhausted    = errors.New("memory exhausted during decode")
	ErrInvalidConstraints = errors.New("invalid decode constraints")
)

// Error is the failure outcome of Decode. It matches the sentinel for its
// Kind with errors.Is and also unwraps to the underlying cause.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.sentinel().Error()
	}
	return fmt.Sprintf("%s: %v", e.sentinel(), e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.sentinel()}
	}
	return []error{e.sentinel(), e.Err}
}

func (e *Error) sentinel() error {
	switch e.Kind {
	case KindMemoryExhausted:
		return ErrMemoryExhausted
	case KindInvalidConstraints:
		return ErrInvalidConstraints
	default:
		return ErrMalformedData
	}
}

// KindOf reports the decode failure kind carried by err, if any.
func KindOf(err error) (Kind, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return 0, false
}

func outcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if kind, ok := KindOf(err); ok {
		return kind.String()
	}
	return "aborted"
}
