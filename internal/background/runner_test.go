package background

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolGoDoesNotBlockCaller(t *testing.T) {
	p := NewPool(time.Second)
	release := make(chan struct{})
	var finished atomic.Bool

	start := time.Now()
	p.Go("slow", func(ctx context.Context) error {
		<-release
		finished.Store(true)
		return nil
	})
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.False(t, finished.Load())

	close(release)
	require.NoError(t, p.Shutdown(context.Background()))
	assert.True(t, finished.Load())
}

func TestPoolSwallowsErrorsAndPanics(t *testing.T) {
	p := NewPool(time.Second)
	var calls atomic.Int32

	p.Go("fails", func(ctx context.Context) error {
		calls.Add(1)
		return errors.New("push provider down")
	})
	p.Go("panics", func(ctx context.Context) error {
		calls.Add(1)
		panic("boom")
	})

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Equal(t, int32(2), calls.Load())
}

func TestPoolTaskContextHasTimeout(t *testing.T) {
	p := NewPool(20 * time.Millisecond)
	errCh := make(chan error, 1)

	p.Go("stalls", func(ctx context.Context) error {
		<-ctx.Done()
		errCh <- ctx.Err()
		return ctx.Err()
	})

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("task context never expired")
	}
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestPoolShutdownTimesOut(t *testing.T) {
	p := NewPool(time.Minute)
	p.Go("stuck", func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Shutdown(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPoolDropsAfterShutdown(t *testing.T) {
	p := NewPool(time.Second)
	require.NoError(t, p.Shutdown(context.Background()))

	var ran atomic.Bool
	p.Go("late", func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})
	time.Sleep(10 * time.Millisecond)
	assert.False(t, ran.Load())
}

func TestInlineRunsImmediately(t *testing.T) {
	ran := false
	Inline{}.Go("inline", func(ctx context.Context) error {
		ran = true
		return errors.New("ignored")
	})
	assert.True(t, ran)
}
