package flow

import (
	"fmt"
	"strconv"
)

// ID identifies a flow for the lifetime of a run. Zero is never assigned
// and stands for "no parent".
type ID uint64

func (id ID) String() string { return strconv.FormatUint(uint64(id), 16) }

// OutcomeKind tags an [Outcome].
type OutcomeKind int

const (
	// Spawned marks a flow that is still running. It only shows up in the
	// snapshots passed to a Till predicate.
	Spawned OutcomeKind = iota
	Value
	Error
	Cancelled
)

func (k OutcomeKind) String() string {
	switch k {
	case Spawned:
		return "Spawned"
	case Value:
		return "Value"
	case Error:
		return "Error"
	case Cancelled:
		return "Cancelled"
	default:
		return "OutcomeKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Outcome is what a finished flow produced.
type Outcome struct {
	Kind  OutcomeKind
	Value any
	Err   error
}

// ValueOf returns a Value outcome.
func ValueOf(v any) Outcome { return Outcome{Kind: Value, Value: v} }

// ErrorOf returns an Error outcome.
func ErrorOf(err error) Outcome { return Outcome{Kind: Error, Err: err} }

// Done reports whether o is anything but [Spawned].
func (o Outcome) Done() bool { return o.Kind != Spawned }

// Unwrap returns the payload of o as a (value, error) pair. A cancelled
// outcome yields ErrCancelled.
func (o Outcome) Unwrap() (any, error) {
	switch o.Kind {
	case Value:
		return o.Value, nil
	case Error:
		return nil, o.Err
	case Cancelled:
		return nil, ErrCancelled
	default:
		return nil, fmt.Errorf("flow: outcome is still %s", o.Kind)
	}
}

func (o Outcome) String() string {
	switch o.Kind {
	case Value:
		return fmt.Sprintf("Value(%v)", o.Value)
	case Error:
		return fmt.Sprintf("Error(%v)", o.Err)
	default:
		return o.Kind.String()
	}
}

type resultKind int

const (
	resultReturn resultKind = iota + 1
	resultRaise
	resultTailCall
)

// Result is the return value of a [Func]. Create one with [Co.Return],
// [Co.Raise], [Co.Done] or [Co.TailCall] and return it right away. The zero
// Result returns nil.
type Result struct {
	kind  resultKind
	value any
	err   error
	next  Task
}
