// Package batch accumulates records from a stream and hands them to a
// Flusher in batches, either when enough records are pending or when the
// flush interval elapses.
package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	klog "github.com/go-kratos/kratos/v2/log"

	"github.com/go-lynx/logsink/errs"
	"github.com/go-lynx/logsink/log"
	"github.com/go-lynx/logsink/record"
)

// ErrClosed is returned by Add after Close.
var ErrClosed = errors.New("batcher closed")

// Flusher persists one batch, typically Writer.WriteContext.
type Flusher func(ctx context.Context, records []*record.Record) error

// Batcher collects records and flushes them together.
// A failed batch is counted and logged but not retried.
type Batcher struct {
	flush         Flusher
	maxRecords    int
	flushInterval time.Duration
	log           *klog.Helper

	pending   []*record.Record
	pendingMu sync.Mutex
	flushMu   sync.Mutex // serializes flushes so batches keep input order

	stopCh chan struct{}
	wg     sync.WaitGroup
	closed atomic.Bool

	totalRecords atomic.Int64
	totalBatches atomic.Int64
	errorCount   atomic.Int64
}

// Option configures a Batcher.
type Option func(*Batcher)

// WithLogger sets the logger used to report failed background flushes.
func WithLogger(l log.Logger) Option {
	return func(b *Batcher) {
		b.log = klog.NewHelper(klog.With(l, "component", "batcher"))
	}
}

// New creates a Batcher. maxRecords must be positive; a flushInterval of
// zero disables periodic flushing.
func New(flush Flusher, maxRecords int, flushInterval time.Duration, opts ...Option) (*Batcher, error) {
	if flush == nil {
		return nil, errs.InvalidArgument("flusher is nil")
	}
	if maxRecords <= 0 {
		return nil, errs.InvalidArgument("max records must be positive, got %d", maxRecords)
	}
	if flushInterval < 0 {
		return nil, errs.InvalidArgument("flush interval must not be negative, got %s", flushInterval)
	}

	b := &Batcher{
		flush:         flush,
		maxRecords:    maxRecords,
		flushInterval: flushInterval,
		pending:       make([]*record.Record, 0, maxRecords),
		stopCh:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.log == nil {
		WithLogger(log.GetLogger())(b)
	}

	b.wg.Add(1)
	go b.flushLoop()
	return b, nil
}

// Add queues r and flushes when the batch is full. The returned error is
// the flush error, if a flush happened.
func (b *Batcher) Add(ctx context.Context, r *record.Record) error {
	b.pendingMu.Lock()
	if b.closed.Load() {
		b.pendingMu.Unlock()
		return ErrClosed
	}
	b.pending = append(b.pending, r)
	full := len(b.pending) >= b.maxRecords
	b.totalRecords.Add(1)
	b.pendingMu.Unlock()

	if full {
		return b.Flush(ctx)
	}
	return nil
}

// Pending returns the number of queued records.
func (b *Batcher) Pending() int {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	return len(b.pending)
}

// Flush hands the queued records to the Flusher.
func (b *Batcher) Flush(ctx context.Context) error {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.pendingMu.Lock()
	if len(b.pending) == 0 {
		b.pendingMu.Unlock()
		return nil
	}
	records := b.pending
	b.pending = make([]*record.Record, 0, b.maxRecords)
	b.pendingMu.Unlock()

	if err := b.flush(ctx, records); err != nil {
		b.errorCount.Add(1)
		return err
	}
	b.totalBatches.Add(1)
	return nil
}

func (b *Batcher) flushLoop() {
	defer b.wg.Done()

	if b.flushInterval <= 0 {
		return
	}

	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopCh:
			return
		case <-ticker.C:
			if err := b.Flush(context.Background()); err != nil {
				b.log.Errorw("msg", "periodic flush failed", "err", err)
			}
		}
	}
}

// Close stops the flush loop and flushes what is left. Calling Close more
// than once is a no-op.
func (b *Batcher) Close(ctx context.Context) error {
	// closed flips under pendingMu so no Add can queue behind the final flush.
	b.pendingMu.Lock()
	already := b.closed.Swap(true)
	b.pendingMu.Unlock()
	if already {
		return nil
	}
	close(b.stopCh)
	b.wg.Wait()
	return b.Flush(ctx)
}

// Stats returns the number of records added, batches flushed and failed flushes.
func (b *Batcher) Stats() (records, batches, failures int64) {
	return b.totalRecords.Load(),
		b.totalBatches.Load(),
		b.errorCount.Load()
}
