package workers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exconnect/pkg/errors"
)

type mockWorker struct {
	*BaseWorker
	runCount int32
	runFunc  func(ctx context.Context) error
}

func newMockWorker(name string, interval time.Duration, enabled bool) *mockWorker {
	return &mockWorker{
		BaseWorker: NewBaseWorker(name, interval, enabled),
		runFunc:    func(ctx context.Context) error { return nil },
	}
}

func (m *mockWorker) Run(ctx context.Context) error {
	atomic.AddInt32(&m.runCount, 1)
	if m.runFunc != nil {
		return m.runFunc(ctx)
	}
	return nil
}

func (m *mockWorker) runs() int {
	return int(atomic.LoadInt32(&m.runCount))
}

func stopWithin(t *testing.T, s *Scheduler, d time.Duration) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return s.Stop(ctx)
}

func TestScheduler_StartStop(t *testing.T) {
	scheduler := NewScheduler()

	worker := newMockWorker("ticks", 100*time.Millisecond, true)
	require.NoError(t, scheduler.RegisterWorker(worker))

	require.NoError(t, scheduler.Start(context.Background()))
	assert.True(t, scheduler.IsRunning())

	time.Sleep(250 * time.Millisecond)

	require.NoError(t, stopWithin(t, scheduler, time.Second))
	assert.False(t, scheduler.IsRunning())
	assert.GreaterOrEqual(t, worker.runs(), 2)
}

func TestScheduler_DuplicateName(t *testing.T) {
	scheduler := NewScheduler()
	require.NoError(t, scheduler.RegisterWorker(newMockWorker("dup", time.Second, true)))

	err := scheduler.RegisterWorker(newMockWorker("dup", time.Second, true))
	assert.True(t, errors.Is(err, errors.ErrAlreadyExists))
}

func TestScheduler_DisabledWorkerSkipped(t *testing.T) {
	scheduler := NewScheduler()

	worker := newMockWorker("off", 20*time.Millisecond, false)
	require.NoError(t, scheduler.RegisterWorker(worker))
	require.NoError(t, scheduler.Start(context.Background()))

	time.Sleep(80 * time.Millisecond)
	require.NoError(t, stopWithin(t, scheduler, time.Second))

	assert.Zero(t, worker.runs())
}

func TestScheduler_RecordsHealth(t *testing.T) {
	scheduler := NewScheduler()

	ok := newMockWorker("ok", time.Hour, true)
	failing := newMockWorker("failing", time.Hour, true)
	failing.runFunc = func(ctx context.Context) error { return errors.ErrExchangeUnavailable }
	panicking := newMockWorker("panicking", time.Hour, true)
	panicking.runFunc = func(ctx context.Context) error { panic("boom") }

	for _, w := range []Worker{ok, failing, panicking} {
		require.NoError(t, scheduler.RegisterWorker(w))
	}
	require.NoError(t, scheduler.Start(context.Background()))

	require.Eventually(t, func() bool {
		return ok.runs() == 1 && failing.runs() == 1 && panicking.runs() == 1
	}, time.Second, 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, stopWithin(t, scheduler, time.Second))

	byName := map[string]WorkerHealth{}
	for _, h := range scheduler.Health() {
		byName[h.Name] = h
	}

	assert.Equal(t, int64(1), byName["ok"].RunCount)
	assert.Zero(t, byName["ok"].ErrorCount)
	assert.Empty(t, byName["ok"].LastError)

	assert.Equal(t, int64(1), byName["failing"].ErrorCount)
	assert.Contains(t, byName["failing"].LastError, "exchange unavailable")

	assert.Equal(t, int64(1), byName["panicking"].ErrorCount)
	assert.Contains(t, byName["panicking"].LastError, "boom")
}

func TestScheduler_StopTimesOut(t *testing.T) {
	scheduler := NewScheduler()

	release := make(chan struct{})
	defer close(release)

	stuck := newMockWorker("stuck", time.Hour, true)
	stuck.runFunc = func(ctx context.Context) error {
		<-release
		return nil
	}
	require.NoError(t, scheduler.RegisterWorker(stuck))
	require.NoError(t, scheduler.Start(context.Background()))

	require.Eventually(t, func() bool { return stuck.runs() == 1 }, time.Second, 5*time.Millisecond)

	err := stopWithin(t, scheduler, 50*time.Millisecond)
	assert.True(t, errors.Is(err, errors.ErrTimeout))
}

func TestScheduler_StartTwice(t *testing.T) {
	scheduler := NewScheduler()
	require.NoError(t, scheduler.Start(context.Background()))
	assert.Error(t, scheduler.Start(context.Background()))
	require.NoError(t, stopWithin(t, scheduler, time.Second))

	assert.Error(t, stopWithin(t, scheduler, time.Second))
}

func TestBaseWorker_AvgDuration(t *testing.T) {
	w := NewBaseWorker("avg", time.Second, true)
	w.RecordRun(10 * time.Millisecond)
	w.RecordError(errors.ErrTimeout, 30*time.Millisecond)

	h := w.Health()
	assert.Equal(t, int64(2), h.RunCount)
	assert.Equal(t, int64(1), h.ErrorCount)
	assert.Equal(t, 20*time.Millisecond, h.AvgDuration)
	assert.Equal(t, errors.ErrTimeout.Error(), h.LastError)
	assert.Equal(t, 1, h.ConsecutiveErrors)
	assert.False(t, h.Stale(h.LastRun.Add(2*time.Second)))
	assert.True(t, h.Stale(h.LastSuccess.Add(3*time.Second)))

	w.RecordRun(time.Millisecond)
	assert.Zero(t, w.Health().ConsecutiveErrors)

	w.SetEnabled(false)
	assert.False(t, w.Enabled())
}
