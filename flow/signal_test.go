//go:build unix

package flow_test

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NetPo4ki/go-flow/flow"
)

// keepSignal keeps sig from reaching its default disposition for the
// duration of the test, so a signal sent between two waits is harmless.
func keepSignal(t *testing.T, sig os.Signal) {
	t.Helper()
	guard := make(chan os.Signal, 1)
	signal.Notify(guard, sig)
	t.Cleanup(func() { signal.Stop(guard) })
}

// sendUntil sends sig to the process every few milliseconds until stop
// reports true or the flow is torn down.
func sendUntil(sig syscall.Signal, stop func() bool) flow.Task {
	return flow.Blocking(func(ctx context.Context, _ ...any) (any, error) {
		tick := time.NewTicker(2 * time.Millisecond)
		defer tick.Stop()
		for !stop() {
			if err := syscall.Kill(os.Getpid(), sig); err != nil {
				return nil, err
			}
			select {
			case <-tick.C:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return nil, nil
	}).Named("send " + sig.String())
}

func TestOnSignal(t *testing.T) {
	keepSignal(t, syscall.SIGUSR1)

	v, err := flow.Run(context.Background(), flow.Coop(func(co *flow.Co) flow.Result {
		return co.Done(co.TillAny(
			flow.Coop(func(co *flow.Co) flow.Result {
				return co.Done(co.OnSignal(syscall.SIGUSR1, returning("got")))
			}),
			sendUntil(syscall.SIGUSR1, func() bool { return false }),
		))
	}))
	require.NoError(t, err)
	out := v.([]flow.Outcome)
	assert.Equal(t, flow.ValueOf("got"), out[0])
	assert.Equal(t, flow.Cancelled, out[1].Kind)
}

func TestOnSignalForever(t *testing.T) {
	keepSignal(t, syscall.SIGUSR2)

	var hits atomic.Int32
	handler := flow.Coop(func(co *flow.Co) flow.Result {
		hits.Add(1)
		return co.Return(nil)
	})
	v, err := flow.Run(context.Background(), flow.Coop(func(co *flow.Co) flow.Result {
		return co.Done(co.TillAny(
			flow.Coop(func(co *flow.Co) flow.Result {
				return co.Done(co.OnSignalForever(syscall.SIGUSR2, handler))
			}),
			sendUntil(syscall.SIGUSR2, func() bool { return hits.Load() >= 3 }),
		))
	}))
	require.NoError(t, err)
	out := v.([]flow.Outcome)
	assert.Equal(t, flow.Cancelled, out[0].Kind)
	assert.Equal(t, flow.ValueOf(nil), out[1])
	assert.GreaterOrEqual(t, hits.Load(), int32(3))
}
