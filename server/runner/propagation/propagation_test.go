package propagation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_RunsSubmittedTasks(t *testing.T) {
	p := NewPool(2, 16, nil)
	p.Start()
	defer p.Stop()

	var wg sync.WaitGroup
	wg.Add(5)
	var mu sync.Mutex
	ran := 0

	for i := 0; i < 5; i++ {
		ok := p.Submit("count", func(ctx context.Context) error {
			defer wg.Done()
			mu.Lock()
			ran++
			mu.Unlock()
			return nil
		})
		require.True(t, ok)
	}

	wg.Wait()
	assert.Equal(t, 5, ran)

	succeeded, failed, dropped := p.Counters()
	assert.EqualValues(t, 5, succeeded)
	assert.Zero(t, failed)
	assert.Zero(t, dropped)
}

func TestPool_CountsFailuresAndPanics(t *testing.T) {
	p := NewPool(1, 16, nil)
	p.Start()
	defer p.Stop()

	var wg sync.WaitGroup
	wg.Add(2)
	p.Submit("fail", func(ctx context.Context) error {
		defer wg.Done()
		return errors.New("memory service down")
	})
	p.Submit("panic", func(ctx context.Context) error {
		defer wg.Done()
		panic("boom")
	})
	wg.Wait()

	// The panic is counted after the deferred recover runs; give the
	// worker a beat to get there.
	assert.Eventually(t, func() bool {
		_, failed, _ := p.Counters()
		return failed == 2
	}, time.Second, 10*time.Millisecond)
}

func TestPool_FullQueueDropsWithoutBlocking(t *testing.T) {
	p := NewPool(1, 1, nil)
	// Not started: nothing consumes the queue.

	ok := p.Submit("first", func(ctx context.Context) error { return nil })
	require.True(t, ok)

	done := make(chan bool, 1)
	go func() {
		done <- p.Submit("overflow", func(ctx context.Context) error { return nil })
	}()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a full queue")
	}

	_, _, dropped := p.Counters()
	assert.EqualValues(t, 1, dropped)
}

func TestInline_RunsSynchronously(t *testing.T) {
	e := NewInline(nil)
	ran := false
	ok := e.Submit("now", func(ctx context.Context) error {
		ran = true
		return nil
	})
	assert.True(t, ok)
	assert.True(t, ran)

	// Errors are swallowed, matching the pool's contract.
	assert.True(t, e.Submit("fails", func(ctx context.Context) error {
		return errors.New("nope")
	}))
}
