package runner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTask struct {
	name     string
	schedule string
	timeout  time.Duration
	runs     atomic.Int32
	err      error
	deadline atomic.Bool
}

func (t *countingTask) Name() string           { return t.name }
func (t *countingTask) Schedule() string       { return t.schedule }
func (t *countingTask) Timeout() time.Duration { return t.timeout }
func (t *countingTask) Run(ctx context.Context) error {
	t.runs.Add(1)
	_, ok := ctx.Deadline()
	t.deadline.Store(ok)
	return t.err
}

func TestRegisterRejectsDuplicatesAndBadSchedules(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(&countingTask{name: "a", schedule: "@every 1m"}))
	assert.Error(t, r.Register(&countingTask{name: "a", schedule: "@every 1m"}))
	assert.Error(t, r.Register(&countingTask{name: "b", schedule: "not a schedule"}))
	assert.Equal(t, []string{"a"}, r.Tasks())
}

func TestParserAcceptsFiveAndSixFields(t *testing.T) {
	for _, expr := range []string{"*/5 * * * *", "0 */5 * * * *", "@every 30s", "@hourly"} {
		_, err := Parser.Parse(expr)
		assert.NoError(t, err, expr)
	}
}

func TestRunOnceAppliesTimeout(t *testing.T) {
	r := New()
	task := &countingTask{name: "mail", schedule: "@every 1h", timeout: time.Minute}
	require.NoError(t, r.Register(task))

	require.NoError(t, r.RunOnce(context.Background(), "mail"))
	assert.Equal(t, int32(1), task.runs.Load())
	assert.True(t, task.deadline.Load())

	assert.Error(t, r.RunOnce(context.Background(), "missing"))
}

func TestRunOnceReturnsTaskError(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(&countingTask{name: "bad", schedule: "@every 1h", err: errors.New("boom")}))
	assert.EqualError(t, r.RunOnce(context.Background(), "bad"), "boom")
}

func TestStartRunsScheduledTasksUntilCancelled(t *testing.T) {
	r := New()
	task := &countingTask{name: "tick", schedule: "@every 1s"}
	require.NoError(t, r.Register(task))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Start(ctx) }()

	assert.Eventually(t, func() bool { return task.runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
}
