package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_BoundsConcurrency(t *testing.T) {
	p := New("test", 3)

	var inFlight, peak atomic.Int32
	fns := make([]func(context.Context) error, 20)
	for i := range fns {
		fns[i] = func(ctx context.Context) error {
			n := inFlight.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
			return nil
		}
	}

	require.NoError(t, p.Run(context.Background(), fns...))
	assert.EqualValues(t, 3, peak.Load())
	assert.Zero(t, inFlight.Load())
}

func TestPool_FIFOOrder(t *testing.T) {
	p := New("fifo", 1)

	var mu sync.Mutex
	var order []int
	fns := make([]func(context.Context) error, 10)
	for i := range fns {
		i := i
		fns[i] = func(ctx context.Context) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		}
	}

	require.NoError(t, p.Run(context.Background(), fns...))
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
}

func TestPool_QueuesInsteadOfRejecting(t *testing.T) {
	p := New("queue", 1)
	release := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_ = p.Do(context.Background(), func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	done := make(chan error, 1)
	go func() {
		done <- p.Do(context.Background(), func(ctx context.Context) error { return nil })
	}()

	select {
	case <-done:
		t.Fatal("second task ran while the only slot was held")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("queued task never ran")
	}
}

func TestPool_ReleasesOnFailure(t *testing.T) {
	p := New("fail", 1)
	boom := errors.New("boom")

	err := p.Do(context.Background(), func(ctx context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.NoError(t, p.Do(ctx, func(ctx context.Context) error { return nil }))
}

func TestPool_CancelledWhileQueued(t *testing.T) {
	p := New("cancel", 1)
	hold := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = p.Do(context.Background(), func(ctx context.Context) error {
			close(started)
			<-hold
			return nil
		})
	}()
	<-started
	defer close(hold)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	ran := false
	err := p.Do(ctx, func(ctx context.Context) error {
		ran = true
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, ran)
}

func TestPool_RunReturnsFirstError(t *testing.T) {
	p := New("run", 2)
	boom := errors.New("rate source down")

	err := p.Run(context.Background(),
		func(ctx context.Context) error { return nil },
		func(ctx context.Context) error { return boom },
	)
	assert.ErrorIs(t, err, boom)
}

func TestNewPools(t *testing.T) {
	pools := NewPools(8, 0)
	assert.Equal(t, Light, pools.Light.Name())
	assert.Equal(t, 8, pools.Light.Size())
	assert.Equal(t, Heavy, pools.Heavy.Name())
	assert.Equal(t, 1, pools.Heavy.Size())
}
