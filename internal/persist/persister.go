// Package persist implements the batch persister worker (C7): one worker
// per queue, draining batches into the store and flushing on shutdown.
package persist

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/flowcatalyst-checkweigher/supervisor/internal/monitor"
	"github.com/flowcatalyst-checkweigher/supervisor/internal/queue"
)

const (
	batchSize          = 500
	criticalFillRatio  = 0.8
	insertDeadline     = 10 * time.Second
	flushInsertDeadline = 5 * time.Second
	recoverySleep      = 1 * time.Second
)

// Inserter persists a drained batch. Implemented by the store
// repositories' InsertMany methods.
type Inserter[T any] func(ctx context.Context, batch []T) error

// Worker drains one queue and writes batches through insert.
type Worker[T any] struct {
	name    string
	q       *queue.Bounded[T]
	insert  Inserter[T]
	monitor *monitor.Monitor
	log     *slog.Logger
}

// NewWorker builds a persister bound to q, reporting heartbeats under
// name (one of the fixed monitor keys).
func NewWorker[T any](name string, q *queue.Bounded[T], insert Inserter[T], mon *monitor.Monitor) *Worker[T] {
	return &Worker[T]{
		name:    name,
		q:       q,
		insert:  insert,
		monitor: mon,
		log:     slog.With("worker", name),
	}
}

// Run drives the worker loop until ctx is cancelled, then flushes the
// queue until empty before returning.
func (w *Worker[T]) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			w.flush()
			return
		}

		w.monitor.UpdateHeartbeat(w.name, w.q.Size(), 0)

		batch, err := w.q.GetBatch(ctx, batchSize)
		if err != nil {
			// ctx cancelled while waiting for the first item.
			w.flush()
			return
		}

		if float64(w.q.Size()) > criticalFillRatio*float64(w.q.Capacity()) {
			w.log.Error("queue near capacity", "size", w.q.Size(), "capacity", w.q.Capacity())
		}

		// Deliberately decoupled from ctx: once a batch is drained it must
		// be given its best shot at landing even if shutdown arrives
		// mid-insert, matching flush()'s use of context.Background() below.
		insertCtx, cancel := context.WithTimeout(context.Background(), insertDeadline)
		err = w.insert(insertCtx, batch)
		cancel()

		if err != nil {
			w.log.Error("batch insert failed", "batch_size", len(batch), "error", err, "flush_id", uuid.NewString())
			w.monitor.ReportError(w.name)
			time.Sleep(recoverySleep)
			continue
		}

		w.monitor.UpdateHeartbeat(w.name, w.q.Size(), int64(len(batch)))
	}
}

// flush drains the queue until empty, best-effort, swallowing insert
// errors — it runs only during graceful shutdown and must terminate.
func (w *Worker[T]) flush() {
	flushCtx := context.Background()
	for w.q.Size() > 0 {
		batch, err := w.q.GetBatch(flushCtx, batchSize)
		if err != nil || len(batch) == 0 {
			return
		}

		insertCtx, cancel := context.WithTimeout(flushCtx, flushInsertDeadline)
		if err := w.insert(insertCtx, batch); err != nil {
			w.log.Error("flush insert failed, batch dropped", "batch_size", len(batch), "error", err, "flush_id", uuid.NewString())
		}
		cancel()
	}
}
