package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/weather-cache-service/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler() (*Scheduler, *observability.Metrics) {
	m := observability.NewMetricsForTesting()
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)), m), m
}

func TestRun_RecordsOutcome(t *testing.T) {
	s, m := newTestScheduler()

	s.run("sweep", time.Second, func(context.Context) error { return nil })
	s.run("sweep", time.Second, func(context.Context) error { return errors.New("database is locked") })
	s.run("sweep", time.Second, func(context.Context) error { return nil })

	assert.Equal(t, 2.0, testutil.ToFloat64(m.JobRuns.WithLabelValues("sweep", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobRuns.WithLabelValues("sweep", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.JobDuration))
}

func TestRun_AppliesTimeout(t *testing.T) {
	s, _ := newTestScheduler()

	var deadline time.Time
	var ok bool
	s.run("probe", 50*time.Millisecond, func(ctx context.Context) error {
		deadline, ok = ctx.Deadline()
		<-ctx.Done()
		return ctx.Err()
	})
	require.True(t, ok)
	assert.WithinDuration(t, time.Now(), deadline, time.Second)
}

func TestStop_CancelsRunningJob(t *testing.T) {
	s, m := newTestScheduler()
	started := make(chan struct{})
	done := make(chan error, 1)

	go s.run("cleanup", 0, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		done <- ctx.Err()
		return ctx.Err()
	})
	<-started
	s.Stop()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("job was not cancelled by Stop")
	}
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.JobRuns.WithLabelValues("cleanup", "error")) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestEvery_RunsRepeatedly(t *testing.T) {
	s, _ := newTestScheduler()
	var runs atomic.Int32

	require.NoError(t, s.Every("tick", 20*time.Millisecond, time.Second, func(context.Context) error {
		runs.Add(1)
		return nil
	}))
	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, 10*time.Millisecond)
}

func TestEvery_DoesNotOverlapSlowRuns(t *testing.T) {
	s, _ := newTestScheduler()
	var running, maxRunning, runs atomic.Int32

	require.NoError(t, s.Every("slow", 10*time.Millisecond, time.Second, func(context.Context) error {
		n := running.Add(1)
		defer running.Add(-1)
		for {
			cur := maxRunning.Load()
			if n <= cur || maxRunning.CompareAndSwap(cur, n) {
				break
			}
		}
		time.Sleep(40 * time.Millisecond)
		runs.Add(1)
		return nil
	}))
	s.Start()

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
	s.Stop()
	assert.Equal(t, int32(1), maxRunning.Load())
}

func TestEvery_RejectsNonPositiveInterval(t *testing.T) {
	s, _ := newTestScheduler()
	assert.Error(t, s.Every("bad", 0, time.Second, func(context.Context) error { return nil }))
}

func TestDaily_RejectsBadTime(t *testing.T) {
	s, _ := newTestScheduler()
	assert.Error(t, s.Daily("cleanup", "25:99", time.Minute, func(context.Context) error { return nil }))
	require.NoError(t, s.Daily("cleanup", "03:00", time.Minute, func(context.Context) error { return nil }))
	assert.Len(t, s.cron.Jobs(), 1)
}
