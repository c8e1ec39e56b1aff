package flow

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"runtime/debug"
	"strings"
)

var (
	// ErrInconsistent is matched by every violation of the scheduler's
	// bookkeeping rules. It signals a bug in a cooperative body (a child
	// nobody drained, a GetResults without children, ...), not a domain
	// failure.
	ErrInconsistent = errors.New("flow: internal inconsistency")

	// ErrNotCallable is returned when a task has no callable.
	ErrNotCallable = fmt.Errorf("%w: task not callable", ErrInconsistent)

	// ErrCancelled is returned by every primitive of a torn-down flow and
	// by [Outcome.Unwrap] for cancelled outcomes.
	ErrCancelled = errors.New("flow: cancelled")

	// ErrAlreadyRunning is returned when Run is called on a busy scheduler.
	ErrAlreadyRunning = errors.New("flow: scheduler is already running")

	// ErrClosed is returned when Run is called after Close.
	ErrClosed = errors.New("flow: scheduler is closed")

	errGoexit = errors.New("flow: runtime.Goexit called in task")
)

// InconsistencyError describes which bookkeeping rule a flow broke.
type InconsistencyError struct {
	Flow   ID
	Reason string
	// Cause is the flow's own failure when it was raising at the time.
	Cause error
}

func (e *InconsistencyError) Error() string {
	msg := fmt.Sprintf("%v: flow %s: %s", ErrInconsistent, e.Flow, e.Reason)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *InconsistencyError) Is(target error) bool { return target == ErrInconsistent }

func (e *InconsistencyError) Unwrap() error { return e.Cause }

func inconsistent(id ID, cause error, format string, args ...any) error {
	return &InconsistencyError{Flow: id, Reason: fmt.Sprintf(format, args...), Cause: cause}
}

// PanicError carries a panic recovered from a task together with the
// stack of the goroutine that panicked.
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", e.Value, e.Stack)
}

// Unwrap exposes the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

func newPanicError(v any) *PanicError {
	return &PanicError{Value: v, Stack: string(debug.Stack())}
}

var internalPrefix = func() string {
	name := runtime.FuncForPC(reflect.ValueOf(newPanicError).Pointer()).Name()
	return name[:strings.LastIndexByte(name, '.')+1]
}()

func internalFrame(fn string) bool {
	fn = strings.TrimPrefix(fn, "created by ")
	return strings.HasPrefix(fn, internalPrefix) || strings.HasPrefix(fn, "runtime/debug.")
}

// stripInternalFrames drops the frames of this package from a goroutine
// trace so only caller-visible frames remain. A frame is a function line
// followed by a tab-indented file:line line.
func stripInternalFrames(stack string) string {
	lines := strings.Split(stack, "\n")
	out := make([]string, 0, len(lines))
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if line == "" || strings.HasPrefix(line, "\t") || strings.HasPrefix(line, "goroutine ") {
			out = append(out, line)
			continue
		}
		if internalFrame(line) {
			if i+1 < len(lines) && strings.HasPrefix(lines[i+1], "\t") {
				i++
			}
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// stripError trims the stack of the first PanicError in err's chain.
func stripError(err error) error {
	var pe *PanicError
	if errors.As(err, &pe) {
		pe.Stack = stripInternalFrames(pe.Stack)
	}
	return err
}
