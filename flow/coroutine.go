package flow

// step is one transition of a coroutine as seen by the scheduler: either a
// request it suspended on, or the Result it finished with.
type step struct {
	req  request
	done bool
	res  Result
}

// coroutine runs a cooperative body on its own goroutine. The scheduler and
// the body hand control back and forth over unbuffered channels, so exactly
// one of them runs at any time.
type coroutine struct {
	resume chan reply
	yield  chan step

	done    bool // scheduler side
	closing bool // body side
}

// startCoroutine launches fn and blocks until it suspends or finishes.
func startCoroutine(fn Func, co *Co) (*coroutine, step) {
	cr := &coroutine{
		resume: make(chan reply),
		yield:  make(chan step),
	}
	co.cr = cr
	go func() {
		res := Result{kind: resultRaise, err: errGoexit}
		defer func() { cr.yield <- step{done: true, res: res} }()
		res = invoke(fn, co)
	}()
	st := <-cr.yield
	cr.done = st.done
	return cr, st
}

func invoke(fn Func, co *Co) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{kind: resultRaise, err: newPanicError(r)}
		}
	}()
	return fn(co)
}

// send resumes the body with r and blocks until its next step.
func (cr *coroutine) send(r reply) step {
	cr.resume <- r
	st := <-cr.yield
	cr.done = st.done
	return st
}

// close makes the pending suspension point return ErrCancelled and lets the
// body run to completion. Later suspension points return immediately, so
// the next step is the final one; its Result is discarded.
func (cr *coroutine) close() {
	if cr.done {
		return
	}
	for st := cr.send(reply{closing: true}); !st.done; st = cr.send(reply{closing: true}) {
	}
}

// suspend is called on the body's goroutine.
func (cr *coroutine) suspend(req request) reply {
	if cr.closing {
		return reply{err: ErrCancelled}
	}
	cr.yield <- step{req: req}
	r := <-cr.resume
	if r.closing {
		cr.closing = true
		return reply{err: ErrCancelled}
	}
	return r
}
