package protocol

import (
	"errors"
)

var (
	// ErrMalformedProtocol matches every framing or content violation found at decode time.
	ErrMalformedProtocol = errors.New("malformed protocol")
	// ErrCodeNotFound is returned when a field does not name a registered action.
	ErrCodeNotFound = errors.New("action code not found")
	// ErrReservedCharacter is returned when content would break the framing.
	ErrReservedCharacter = errors.New("reserved character in field")
)

// MalformedError describes why a frame was rejected.
// errors.Is(err, ErrMalformedProtocol) holds for every MalformedError.
type MalformedError struct {
	Reason string
	Cause  error
}

func malformed(reason string) error {
	return &MalformedError{Reason: reason}
}

func malformedCause(reason string, cause error) error {
	return &MalformedError{Reason: reason, Cause: cause}
}

func (e *MalformedError) Error() string {
	if e.Cause != nil {
		return e.Reason + ": " + e.Cause.Error()
	}
	return e.Reason
}

func (e *MalformedError) Unwrap() error {
	return e.Cause
}

func (e *MalformedError) Is(target error) bool {
	return target == ErrMalformedProtocol
}
