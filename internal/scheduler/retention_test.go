package scheduler

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarium/internal/logger"
	"librarium/internal/tasks"
)

func TestMain(m *testing.M) {
	logger.Init(logger.Options{Output: io.Discard})
	m.Run()
}

func newTestTasksClient(t *testing.T) *tasks.Client {
	t.Helper()

	cfg := tasks.DefaultConfig()
	cfg.Workers = 1

	client, err := tasks.NewClient(filepath.Join(t.TempDir(), "catalog.db"), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, ValidateSchedule("0 3 * * *"))
	assert.NoError(t, ValidateSchedule("*/15 * * * *"))

	assert.Error(t, ValidateSchedule("not a cron spec"))
	assert.Error(t, ValidateSchedule("0 0 3 * * *"), "six fields should be rejected")
	assert.Error(t, ValidateSchedule(""))
}

func TestRetentionSchedulerStartStop(t *testing.T) {
	client := newTestTasksClient(t)
	sched := NewRetentionScheduler(client, "0 3 * * *", 30)

	require.False(t, sched.IsRunning())
	assert.Nil(t, sched.NextRunTime())

	require.NoError(t, sched.Start(context.Background()))
	assert.True(t, sched.IsRunning())

	next := sched.NextRunTime()
	require.NotNil(t, next)
	assert.True(t, next.After(time.Now()), "next run should be in the future")

	// Starting twice is a no-op
	require.NoError(t, sched.Start(context.Background()))

	sched.Stop()
	assert.False(t, sched.IsRunning())
	assert.Nil(t, sched.NextRunTime())

	// Stopping twice is safe
	sched.Stop()
}

func TestRetentionSchedulerInvalidSchedule(t *testing.T) {
	client := newTestTasksClient(t)
	sched := NewRetentionScheduler(client, "every day at three", 30)

	err := sched.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cron schedule")
	assert.False(t, sched.IsRunning())
}

func TestRetentionSchedulerWithoutQueue(t *testing.T) {
	sched := NewRetentionScheduler(nil, "0 3 * * *", 30)

	require.NoError(t, sched.Start(context.Background()))
	assert.False(t, sched.IsRunning(), "scheduler should not run without a task queue")

	assert.Error(t, sched.RunNow())
}

func TestRetentionSchedulerRunNow(t *testing.T) {
	client := newTestTasksClient(t)

	processed := make(chan time.Duration, 1)
	cleaner := &signalCleaner{processed: processed}
	client.Register(tasks.NewCleanupAuditQueue(cleaner))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Start(ctx)

	sched := NewRetentionScheduler(client, "0 3 * * *", 14)
	require.NoError(t, sched.RunNow())

	select {
	case retention := <-processed:
		assert.Equal(t, 14*24*time.Hour, retention)
	case <-time.After(5 * time.Second):
		t.Fatal("cleanup task was not processed within timeout")
	}
}

func TestRetentionSchedulerStopsOnContextCancel(t *testing.T) {
	client := newTestTasksClient(t)
	sched := NewRetentionScheduler(client, "0 3 * * *", 30)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, sched.Start(ctx))
	require.True(t, sched.IsRunning())

	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for sched.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert.False(t, sched.IsRunning())
}

// signalCleaner reports each cleanup invocation on a channel.
type signalCleaner struct {
	processed chan time.Duration
}

func (c *signalCleaner) DeleteOldEvents(retention time.Duration) (int64, error) {
	c.processed <- retention
	return 0, nil
}

func (c *signalCleaner) LogCleanup(action string, removed int64, err error) {}
