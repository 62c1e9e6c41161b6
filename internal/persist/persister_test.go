package persist

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flowcatalyst-checkweigher/supervisor/internal/monitor"
	"github.com/flowcatalyst-checkweigher/supervisor/internal/queue"
)

func TestWorkerInsertsDrainedBatches(t *testing.T) {
	q := queue.NewBounded[int](10)
	var inserted [][]int
	var mu sync.Mutex

	w := NewWorker("worker_test", q, func(ctx context.Context, batch []int) error {
		mu.Lock()
		defer mu.Unlock()
		cp := append([]int(nil), batch...)
		inserted = append(inserted, cp)
		return nil
	}, monitor.New())

	ctx, cancel := context.WithCancel(context.Background())
	for i := 0; i < 3; i++ {
		_ = q.Put(ctx, i)
	}

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(inserted)
		mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("worker never inserted a batch")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	var total int
	for _, b := range inserted {
		total += len(b)
	}
	if total != 3 {
		t.Fatalf("total items inserted = %d, want 3", total)
	}
}

func TestWorkerFlushesRemainingItemsOnCancellation(t *testing.T) {
	q := queue.NewBounded[int](10)
	var totalInserted int64

	w := NewWorker("worker_test", q, func(ctx context.Context, batch []int) error {
		atomic.AddInt64(&totalInserted, int64(len(batch)))
		return nil
	}, monitor.New())

	ctx, cancel := context.WithCancel(context.Background())
	for i := 0; i < 5; i++ {
		_ = q.Put(ctx, i)
	}
	cancel()

	w.Run(ctx)

	if got := atomic.LoadInt64(&totalInserted); got != 5 {
		t.Fatalf("inserted = %d, want 5 (flush must drain the queue on shutdown)", got)
	}
	if q.Size() != 0 {
		t.Fatalf("queue size after flush = %d, want 0", q.Size())
	}
}

func TestWorkerResumesAfterInsertError(t *testing.T) {
	q := queue.NewBounded[int](10)
	var attempts int64

	w := NewWorker("worker_test", q, func(ctx context.Context, batch []int) error {
		n := atomic.AddInt64(&attempts, 1)
		if n == 1 {
			return errors.New("transient failure")
		}
		return nil
	}, monitor.New())

	ctx, cancel := context.WithCancel(context.Background())
	_ = q.Put(ctx, 1)

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	deadline := time.After(3 * time.Second)
	for atomic.LoadInt64(&attempts) < 1 {
		select {
		case <-deadline:
			t.Fatal("worker never attempted the first insert")
		case <-time.After(10 * time.Millisecond):
		}
	}

	// The failed batch is dropped; the worker must go on to the next one.
	_ = q.Put(ctx, 2)
	for atomic.LoadInt64(&attempts) < 2 {
		select {
		case <-deadline:
			t.Fatal("worker never resumed inserting after the first insert error")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done
}

func TestWorkerReportsHeartbeatOnSuccess(t *testing.T) {
	q := queue.NewBounded[int](10)
	mon := monitor.New()

	w := NewWorker(monitor.WorkerMeasurements, q, func(ctx context.Context, batch []int) error {
		return nil
	}, mon)

	ctx, cancel := context.WithCancel(context.Background())
	_ = q.Put(ctx, 1)

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		if e, ok := mon.Snapshot()[monitor.WorkerMeasurements]; ok && e.TotalProcessed > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("worker never reported a heartbeat with processed items")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-done
}
