package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPool_RunsSubmittedTasks(t *testing.T) {
	p := NewPool(context.Background(), 4, 16)

	var ran int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		err := p.Submit(context.Background(), func(context.Context) {
			atomic.AddInt64(&ran, 1)
			wg.Done()
		})
		if err != nil {
			t.Fatalf("submit failed: %v", err)
		}
	}
	wg.Wait()
	p.Stop()

	if got := atomic.LoadInt64(&ran); got != 20 {
		t.Errorf("ran %d tasks, want 20", got)
	}
}

func TestPool_StopDrainsQueuedTasks(t *testing.T) {
	p := NewPool(context.Background(), 1, 8)

	var ran int64
	for i := 0; i < 8; i++ {
		err := p.Submit(context.Background(), func(context.Context) {
			time.Sleep(time.Millisecond)
			atomic.AddInt64(&ran, 1)
		})
		if err != nil {
			t.Fatalf("submit failed: %v", err)
		}
	}

	p.Stop()

	if got := atomic.LoadInt64(&ran); got != 8 {
		t.Errorf("stop returned before draining: ran %d of 8", got)
	}
}

func TestPool_SubmitAfterStopFails(t *testing.T) {
	p := NewPool(context.Background(), 1, 1)
	p.Stop()

	err := p.Submit(context.Background(), func(context.Context) {})
	if !errors.Is(err, ErrPoolClosed) {
		t.Errorf("expected ErrPoolClosed, got %v", err)
	}
}

func TestPool_SubmitRespectsContext(t *testing.T) {
	p := NewPool(context.Background(), 1, 1)
	defer p.Stop()

	block := make(chan struct{})
	// Occupy the single worker and fill the single queue slot.
	_ = p.Submit(context.Background(), func(context.Context) { <-block })
	_ = p.Submit(context.Background(), func(context.Context) {})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Submit(ctx, func(context.Context) {})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded on a full queue, got %v", err)
	}
	close(block)
}

func TestPool_StopIsIdempotent(t *testing.T) {
	p := NewPool(context.Background(), 2, 2)
	p.Stop()
	p.Stop()
}
