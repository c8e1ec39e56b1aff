package flow

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"slices"
	"strings"
)

// Func is the body of a cooperative task. It runs until it returns a
// [Result], suspending only inside the primitives of co.
type Func func(co *Co) Result

// BlockingFunc is an ordinary function dispatched to the worker pool.
// ctx is cancelled when the flow running it is torn down; honoring it is up
// to the function.
type BlockingFunc func(ctx context.Context, args ...any) (any, error)

// Task describes a deferred call: a callable, its arguments and a name used
// for logs and observers. Tasks are values and are never mutated.
type Task struct {
	name     string
	coop     Func
	blocking BlockingFunc
	args     []any
}

// Coop returns a cooperative [Task] calling fn with args.
func Coop(fn Func, args ...any) Task {
	t := Task{coop: fn, args: slices.Clone(args)}
	if fn != nil {
		t.name = funcName(fn)
	}
	return t
}

// Blocking returns a [Task] that runs fn on the worker pool with args.
func Blocking(fn BlockingFunc, args ...any) Task {
	t := Task{blocking: fn, args: slices.Clone(args)}
	if fn != nil {
		t.name = funcName(fn)
	}
	return t
}

// Named returns a copy of t called name.
func (t Task) Named(name string) Task {
	t.name = name
	return t
}

// Name reports the task name.
func (t Task) Name() string { return t.name }

// Args returns a copy of the task arguments.
func (t Task) Args() []any { return slices.Clone(t.args) }

// IsBlocking reports whether t runs on the worker pool.
func (t Task) IsBlocking() bool { return t.blocking != nil }

func (t Task) callable() bool { return t.coop != nil || t.blocking != nil }

func (t Task) String() string {
	kind := "coop"
	if t.blocking != nil {
		kind = "blocking"
	}
	return fmt.Sprintf("%s(%s)", kind, t.name)
}

func funcName(fn any) string {
	f := runtime.FuncForPC(reflect.ValueOf(fn).Pointer())
	if f == nil {
		return "?"
	}
	name := f.Name()
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	return name
}
