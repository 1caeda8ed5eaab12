package definitions

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidHandle is returned by accessors for handles that do not reference a definition.
	ErrInvalidHandle = errors.New("definitions: invalid handle")
	// ErrOutOfMemory is returned when the arena cannot hold another record.
	// It is fatal for a measurement.
	ErrOutOfMemory = errors.New("definitions: out of memory")
	// ErrUnknownKind is returned for kinds outside the known set.
	ErrUnknownKind = errors.New("definitions: unknown kind")
	// ErrClosed is returned after Free.
	ErrClosed = errors.New("definitions: manager closed")
)

// KindMismatchError is returned when an accessor is used with a handle of another kind.
type KindMismatchError struct {
	Handle Handle
	Want   Kind
	Got    Kind
}

func (e *KindMismatchError) Error() string {
	return fmt.Sprintf("definitions: handle %#x is a %s, not a %s", uint32(e.Handle), e.Got, e.Want)
}

// Is makes errors.Is(err, ErrKindMismatch) match any KindMismatchError.
func (e *KindMismatchError) Is(target error) bool {
	return target == ErrKindMismatch
}

// ErrKindMismatch matches any *KindMismatchError.
var ErrKindMismatch = errors.New("definitions: kind mismatch")
