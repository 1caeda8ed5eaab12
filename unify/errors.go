package unify

import (
	"errors"
	"fmt"

	"github.com/hupe1980/perfdefs/definitions"
)

var (
	// ErrCorruptBatch is returned when a received message fails its checksum or
	// does not decode.
	ErrCorruptBatch = errors.New("unify: corrupt message")
	// ErrIncompleteRemap is returned when a remap table does not cover every
	// local definition.
	ErrIncompleteRemap = errors.New("unify: incomplete remap table")
)

// MissingDependencyError reports a definition that references a definition
// that has not been unified yet. It means the sender violated dependency order.
type MissingDependencyError struct {
	Rank     int
	Kind     definitions.Kind
	Sequence uint32
	RefKind  definitions.Kind
	Ref      uint32
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("unify: rank %d %s #%d references %s #%d which is not unified",
		e.Rank, e.Kind, e.Sequence, e.RefKind, e.Ref)
}

// TransportError wraps a failed send or receive.
type TransportError struct {
	Op   string
	Peer int
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("unify: %s rank %d: %v", e.Op, e.Peer, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
