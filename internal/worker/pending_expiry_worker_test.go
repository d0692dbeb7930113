package worker

import (
	"context"
	"sync"
	"testing"
	"time"
)

type countingExpirer struct {
	mu      sync.Mutex
	calls   int
	timeout time.Duration
	adminID uint
	swept   chan struct{}
}

func (e *countingExpirer) ExpirePending(_ context.Context, timeout time.Duration, adminID uint) (int, error) {
	e.mu.Lock()
	e.calls++
	e.timeout, e.adminID = timeout, adminID
	e.mu.Unlock()
	select {
	case e.swept <- struct{}{}:
	default:
	}
	return 1, nil
}

func TestPendingExpiryWorkerSweepsOnInterval(t *testing.T) {
	expirer := &countingExpirer{swept: make(chan struct{}, 1)}
	w := NewPendingExpiryWorker(expirer, 15*time.Minute, 99, 10*time.Millisecond, discardLogger())
	w.Start(context.Background())
	defer w.Close()

	select {
	case <-expirer.swept:
	case <-time.After(2 * time.Second):
		t.Fatal("worker never swept")
	}

	expirer.mu.Lock()
	defer expirer.mu.Unlock()
	if expirer.timeout != 15*time.Minute || expirer.adminID != 99 {
		t.Fatalf("unexpected sweep arguments timeout=%v admin=%d", expirer.timeout, expirer.adminID)
	}
}

func TestPendingExpiryWorkerStopsOnClose(t *testing.T) {
	expirer := &countingExpirer{swept: make(chan struct{}, 1)}
	w := NewPendingExpiryWorker(expirer, time.Minute, 1, 5*time.Millisecond, discardLogger())
	w.Start(context.Background())
	<-expirer.swept
	w.Close()

	expirer.mu.Lock()
	after := expirer.calls
	expirer.mu.Unlock()
	time.Sleep(30 * time.Millisecond)

	expirer.mu.Lock()
	defer expirer.mu.Unlock()
	if expirer.calls != after {
		t.Fatalf("worker kept sweeping after Close: %d -> %d", after, expirer.calls)
	}
}
