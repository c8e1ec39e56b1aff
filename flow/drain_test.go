package flow

import (
	"context"
	"errors"
	"log/slog"
	"testing"
)

func newTestRun(t *testing.T) *run {
	t.Helper()
	s := New(WithLogger(slog.New(slog.DiscardHandler)))
	t.Cleanup(func() { _ = s.Close() })
	return &run{
		s:        s,
		ctx:      context.Background(),
		log:      s.log,
		registry: make(map[ID]*record),
	}
}

// A flow waiting on a child that is neither queued nor on the pool can never
// be answered.
func TestDrainReportsStall(t *testing.T) {
	t.Parallel()
	r := newTestRun(t)
	f := r.register(Coop(func(co *Co) Result { return co.Return(nil) }), 0)
	r.root = f.id
	f.state, f.req = stateYielded, getResultsRequest{}
	f.children[r.newID()] = struct{}{}
	r.push(f)

	_, err := r.drain()
	var ie *InconsistencyError
	if !errors.As(err, &ie) {
		t.Fatalf("expected an InconsistencyError, got %v", err)
	}
	if ie.Reason != "no flow can make progress" || ie.Flow != f.id {
		t.Fatalf("unexpected inconsistency: %v", ie)
	}
	if len(r.registry) != 0 || len(r.queue) != 0 {
		t.Fatalf("run not torn down: %d live, %d queued", len(r.registry), len(r.queue))
	}
}
