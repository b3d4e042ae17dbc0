package plan

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const opPersist = "plan.persist"

// saveWorker persists snapshots in the background. Only the latest queued
// snapshot of a plan is written; failures are logged and never reach callers.
type saveWorker struct {
	store   Store
	timeout time.Duration
	logger  *zap.Logger

	mu      sync.Mutex
	pending map[string]Snapshot
	waiters []chan struct{}
	closed  bool
	wake    chan struct{}
	done    chan struct{}
}

func newSaveWorker(store Store, timeout time.Duration, logger *zap.Logger) *saveWorker {
	worker := &saveWorker{
		store:   store,
		timeout: timeout,
		logger:  logger,
		pending: make(map[string]Snapshot),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go worker.run()
	return worker
}

func (w *saveWorker) enqueue(snapshot Snapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		w.logger.Warn("snapshot dropped after close",
			zap.String("operation", opPersist),
			zap.String("plan_id", snapshot.PlanID),
			zap.Int64("version", snapshot.Version))
		return
	}
	w.pending[snapshot.PlanID] = snapshot
	w.signalLocked()
}

// flush blocks until every snapshot queued before the call has been attempted.
func (w *saveWorker) flush(ctx context.Context) error {
	waiter := make(chan struct{})
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.waiters = append(w.waiters, waiter)
	w.signalLocked()
	w.mu.Unlock()

	select {
	case <-waiter:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close stops accepting snapshots and waits for the queue to drain.
func (w *saveWorker) close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.wake)
	}
	w.mu.Unlock()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *saveWorker) signalLocked() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *saveWorker) run() {
	defer close(w.done)
	for range w.wake {
		w.drain()
	}
	w.drain()
}

func (w *saveWorker) drain() {
	w.mu.Lock()
	batch := w.pending
	waiters := w.waiters
	w.pending = make(map[string]Snapshot)
	w.waiters = nil
	w.mu.Unlock()

	for _, snapshot := range batch {
		w.save(snapshot)
	}
	for _, waiter := range waiters {
		close(waiter)
	}
}

func (w *saveWorker) save(snapshot Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	if err := w.store.Save(ctx, snapshot); err != nil {
		w.logger.Error("plan service error",
			zap.String("operation", opPersist),
			zap.String("reason", "save_failed"),
			zap.Error(err),
			zap.String("plan_id", snapshot.PlanID),
			zap.Int64("version", snapshot.Version))
		return
	}
	w.logger.Debug("plan snapshot saved",
		zap.String("plan_id", snapshot.PlanID),
		zap.Int64("version", snapshot.Version))
}
