package cancel

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWatchJobCancelsWhenFlagSet(t *testing.T) {
	var flagged atomic.Bool
	check := func(ctx context.Context, jobID string) bool {
		return jobID == "job-1" && flagged.Load()
	}

	ctx, stop := WatchJob(context.Background(), check, "job-1", 2*time.Millisecond)
	defer stop()

	select {
	case <-ctx.Done():
		t.Fatal("context cancelled before flag was set")
	case <-time.After(10 * time.Millisecond):
	}

	flagged.Store(true)

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled after flag was set")
	}
	assert.True(t, IsUserCancelled(ctx))
}

func TestWatchJobStopIsNotUserCancel(t *testing.T) {
	var calls atomic.Int32
	check := func(ctx context.Context, jobID string) bool {
		calls.Add(1)
		return false
	}

	ctx, stop := WatchJob(context.Background(), check, "job-1", time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	stop()

	assert.Error(t, ctx.Err())
	assert.False(t, IsUserCancelled(ctx))

	// stop 이후에는 더 이상 조회하지 않음
	after := calls.Load()
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, after, calls.Load())
}
