// Package flow provides a single-threaded structured-concurrency scheduler.
//
// A [Scheduler] runs a tree of flows. Each flow executes one [Task]: either a
// cooperative [Func], which suspends at the primitives of [Co] (Spawn, Run,
// GetResults, CancelRemaining and the Till/On* combinators), or a
// [BlockingFunc], which is handed to a bounded worker pool and polled until
// it finishes.
//
// Flows own nothing but their results: the scheduler's registry owns every
// flow, routes each outcome to the parent that spawned it, and tears whole
// subtrees down on CancelRemaining. A cooperative body must drain every child
// it spawns before returning, otherwise the run fails with ErrInconsistent.
//
// Cooperative bodies may return [Co.TailCall] to replace themselves with
// another task without growing the flow tree.
package flow
