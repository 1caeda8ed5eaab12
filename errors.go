package perfdefs

import (
	"errors"
	"fmt"
	"os"

	"github.com/hupe1980/perfdefs/definitions"
)

var (
	// ErrNotStarted is returned by Finalize before Begin.
	ErrNotStarted = errors.New("perfdefs: measurement not started")
	// ErrAlreadyStarted is returned by a second Begin.
	ErrAlreadyStarted = errors.New("perfdefs: measurement already started")
	// ErrFinalized is returned by operations after Finalize.
	ErrFinalized = errors.New("perfdefs: measurement finalized")
)

// Subsystems named in fatal errors.
const (
	SubsystemMemory    = "memory"
	SubsystemClockSync = "clock synchronization"
	SubsystemUnify     = "unification"
	SubsystemArchive   = "archive"
)

// FatalError is an error after which the measurement cannot produce
// consistent output. It is passed to the abort handler.
type FatalError struct {
	Subsystem string
	Err       error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("perfdefs: fatal %s error: %v", e.Subsystem, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// AbortHandler is called once with the first fatal error.
type AbortHandler func(err *FatalError)

// ExitOnFatal prints the error to stderr and exits with status 1.
func ExitOnFatal(err *FatalError) {
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}

// isFatalDefine reports whether a definition error is resource exhaustion
// rather than an invalid argument.
func isFatalDefine(err error) bool {
	return errors.Is(err, definitions.ErrOutOfMemory)
}
