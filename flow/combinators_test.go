package flow

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// everySchedule fires every d.
type everySchedule struct{ d time.Duration }

func (s everySchedule) Next(t time.Time) time.Time { return t.Add(s.d) }

func TestSleepHonorsContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	err := sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
	assert.NoError(t, sleep(context.Background(), 0))
}

func TestSleepTaskName(t *testing.T) {
	t.Parallel()
	st := Sleep(time.Second)
	assert.True(t, st.IsBlocking())
	assert.Equal(t, "sleep 1s", st.Name())
}

func TestOnTimeoutRunsAfterDelay(t *testing.T) {
	t.Parallel()
	const delay = 20 * time.Millisecond
	start := time.Now()
	v, err := Run(context.Background(), Coop(func(co *Co) Result {
		return co.Done(co.OnTimeout(delay, Coop(func(co *Co) Result { return co.Return("late") })))
	}))
	require.NoError(t, err)
	assert.Equal(t, "late", v)
	assert.GreaterOrEqual(t, time.Since(start), delay)
}

func TestOnIntervalRepeatsUntilCancelled(t *testing.T) {
	t.Parallel()
	var ticks atomic.Int32
	tick := Coop(func(co *Co) Result {
		ticks.Add(1)
		return co.Return(nil)
	})
	v, err := Run(context.Background(), Coop(func(co *Co) Result {
		id, err := co.Spawn(Coop(func(co *Co) Result {
			return co.Done(co.OnInterval(5*time.Millisecond, tick))
		}))
		if err != nil {
			return co.Raise(err)
		}
		if _, err := co.Run(Sleep(60 * time.Millisecond)); err != nil {
			return co.Raise(err)
		}
		res, err := co.CancelRemaining()
		if err != nil {
			return co.Raise(err)
		}
		return co.Return(res[id])
	}))
	require.NoError(t, err)
	assert.Equal(t, Cancelled, v.(Outcome).Kind)
	assert.GreaterOrEqual(t, ticks.Load(), int32(2))
}

func TestOnIntervalStopsOnFailure(t *testing.T) {
	t.Parallel()
	var ticks atomic.Int32
	tick := Coop(func(co *Co) Result {
		if ticks.Add(1) == 3 {
			return co.Raise(context.Canceled)
		}
		return co.Return(nil)
	})
	_, err := Run(context.Background(), Coop(func(co *Co) Result {
		return co.Done(co.OnInterval(time.Millisecond, tick))
	}))
	assert.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 3, ticks.Load())
}

func TestOnCronRejectsBadSpec(t *testing.T) {
	t.Parallel()
	_, err := Run(context.Background(), Coop(func(co *Co) Result {
		return co.Done(co.OnCron("not a cron spec", Coop(func(co *Co) Result { return co.Return(nil) })))
	}))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInconsistent)
	assert.Contains(t, err.Error(), "parse cron")
}

func TestOnCronFollowsSchedule(t *testing.T) {
	t.Parallel()
	var fired atomic.Int32
	job := Coop(func(co *Co) Result {
		if fired.Add(1) == 2 {
			return co.Raise(ErrCancelled)
		}
		return co.Return(nil)
	})
	_, err := Run(context.Background(), Coop(onCron(everySchedule{d: 5 * time.Millisecond}, job)))
	assert.ErrorIs(t, err, ErrCancelled)
	assert.EqualValues(t, 2, fired.Load())
}

func TestCombinatorRewritesDerivedRequests(t *testing.T) {
	t.Parallel()
	noop := Coop(func(co *Co) Result { return co.Return(nil) })
	tests := []struct {
		req  request
		name string
	}{
		{tillRequest{pred: AllDone}, "till"},
		{timeoutRequest{task: noop}, "on_timeout"},
		{intervalRequest{task: noop}, "on_interval"},
		{cronRequest{spec: "@hourly", schedule: everySchedule{d: time.Hour}, task: noop}, "on_cron @hourly"},
	}
	for _, tt := range tests {
		task, ok := combinator(tt.req)
		require.True(t, ok, tt.req.requestName())
		assert.Equal(t, tt.name, task.Name())
		assert.False(t, task.IsBlocking())
	}
	for _, req := range []request{spawnRequest{}, &runRequest{}, getResultsRequest{}, cancelRemainingRequest{}} {
		_, ok := combinator(req)
		assert.False(t, ok, req.requestName())
	}
}

func TestPredicates(t *testing.T) {
	t.Parallel()
	pending := Outcome{}
	assert.True(t, AllDone(nil))
	assert.False(t, AnyDone(nil))
	assert.False(t, AllDone([]Outcome{ValueOf(1), pending}))
	assert.True(t, AnyDone([]Outcome{ValueOf(1), pending}))
	assert.True(t, AllDone([]Outcome{ValueOf(1), {Kind: Cancelled}, ErrorOf(ErrCancelled)}))
}
