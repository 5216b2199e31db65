// Package writer implements the grouped batch writer.
//
// A Writer serializes each record of a batch, resolves its destination
// handle, groups documents by handle in first-seen order and issues one
// insert per group: InsertOne for a single document, InsertMany otherwise.
// A batch of one record skips grouping entirely.
//
// Every record is processed before the first insert, so a serialization or
// resolution failure writes nothing. Once inserting starts, store errors are
// returned as they are and groups flushed earlier in the same call stay
// written.
package writer

import (
	"context"
	"errors"
	"fmt"
	"time"

	klog "github.com/go-kratos/kratos/v2/log"

	"github.com/go-lynx/logsink/errs"
	"github.com/go-lynx/logsink/log"
	"github.com/go-lynx/logsink/observability/metrics"
	"github.com/go-lynx/logsink/record"
	"github.com/go-lynx/logsink/router"
	"github.com/go-lynx/logsink/serializer"
)

// Store performs the inserts for one destination handle.
type Store[H comparable, D any] interface {
	InsertOne(ctx context.Context, h H, doc D) error
	InsertMany(ctx context.Context, h H, docs []D) error
}

// Writer is the grouped batch writer. It holds no per-call state and is
// safe for concurrent use.
type Writer[H comparable, D any] struct {
	router     router.Router[H]
	serializer serializer.Serializer[D]
	store      Store[H, D]
	log        *klog.Helper
	metrics    *metrics.WriterMetrics
}

// New creates a Writer.
func New[H comparable, D any](r router.Router[H], s serializer.Serializer[D], st Store[H, D], opts ...Option) (*Writer[H, D], error) {
	if r == nil {
		return nil, errs.InvalidArgument("router is nil")
	}
	if s == nil {
		return nil, errs.InvalidArgument("serializer is nil")
	}
	if st == nil {
		return nil, errs.InvalidArgument("store is nil")
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger
	if logger == nil {
		logger = log.GetLogger()
	}

	return &Writer[H, D]{
		router:     r,
		serializer: s,
		store:      st,
		log:        klog.NewHelper(klog.With(logger, "component", "writer")),
		metrics:    o.metrics,
	}, nil
}

// Router returns the destination router.
func (w *Writer[H, D]) Router() router.Router[H] { return w.router }

// Serializer returns the document serializer.
func (w *Writer[H, D]) Serializer() serializer.Serializer[D] { return w.serializer }

// Write persists records using the synchronous router and serializer.
func (w *Writer[H, D]) Write(records []*record.Record) error {
	return w.write(context.Background(), records, false)
}

// WriteContext persists records, checking ctx before every serialize,
// resolve and insert step. Stores receive ctx without its cancellation, so
// an insert already issued runs to completion.
func (w *Writer[H, D]) WriteContext(ctx context.Context, records []*record.Record) error {
	return w.write(ctx, records, true)
}

// WriteAsync runs WriteContext on a new goroutine. The returned channel
// receives exactly one value, nil on success. A panic raised by the router,
// serializer or store is reported as an error on the channel.
func (w *Writer[H, D]) WriteAsync(ctx context.Context, records []*record.Record) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				w.log.Errorw("msg", "panic during write", "panic", r)
				done <- fmt.Errorf("panic during write: %v", r)
			}
		}()
		done <- w.WriteContext(ctx, records)
	}()
	return done
}

// group collects the documents bound for one handle.
type group[H comparable, D any] struct {
	handle H
	docs   []D
}

func (w *Writer[H, D]) write(ctx context.Context, records []*record.Record, cancellable bool) (err error) {
	if len(records) == 0 {
		return errs.InvalidArgument("batch is empty")
	}

	start := time.Now()
	w.metrics.ObserveRecords(len(records))
	defer func() {
		w.metrics.ObserveDuration(time.Since(start))
		if err != nil {
			w.log.Errorw("msg", "write failed", "records", len(records), "err", err)
		}
	}()

	if len(records) == 1 {
		doc, h, err := w.prepare(ctx, 0, records[0], cancellable)
		if err != nil {
			return err
		}
		return w.insertOne(ctx, h, doc, cancellable)
	}

	groups := make([]*group[H, D], 0, 4)
	index := make(map[H]*group[H, D], 4)
	for i, r := range records {
		doc, h, err := w.prepare(ctx, i, r, cancellable)
		if err != nil {
			return err
		}
		g, ok := index[h]
		if !ok {
			g = &group[H, D]{handle: h}
			index[h] = g
			groups = append(groups, g)
		}
		g.docs = append(g.docs, doc)
	}

	w.log.Debugw("msg", "batch grouped", "records", len(records), "groups", len(groups))

	for _, g := range groups {
		if len(g.docs) == 1 {
			err = w.insertOne(ctx, g.handle, g.docs[0], cancellable)
		} else {
			err = w.insertMany(ctx, g.handle, g.docs, cancellable)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// prepare serializes r and then resolves its destination. Resolution is
// skipped when no document could be built.
func (w *Writer[H, D]) prepare(ctx context.Context, i int, r *record.Record, cancellable bool) (D, H, error) {
	var (
		zeroDoc    D
		zeroHandle H
		doc        D
		h          H
		err        error
	)

	if cancellable {
		if err := w.checkCancelled(ctx); err != nil {
			return zeroDoc, zeroHandle, err
		}
		doc, err = w.serializer.BuildFromContext(ctx, r)
	} else {
		doc, err = w.serializer.BuildFrom(r)
	}
	if err != nil {
		if cancellable && isCancellation(ctx, err) {
			w.metrics.ObserveFailure(metrics.ReasonCancelled)
			return zeroDoc, zeroHandle, err
		}
		w.metrics.ObserveFailure(metrics.ReasonSerialization)
		return zeroDoc, zeroHandle, errs.NewRecordError(i, "serialize", errs.ErrSerializationFailed, err)
	}
	if serializer.IsAbsent(doc) {
		w.metrics.ObserveFailure(metrics.ReasonSerialization)
		return zeroDoc, zeroHandle, errs.NewRecordError(i, "serialize", errs.ErrSerializationFailed, nil)
	}

	if cancellable {
		if err := w.checkCancelled(ctx); err != nil {
			return zeroDoc, zeroHandle, err
		}
		h, err = w.router.ResolveContext(ctx, r)
	} else {
		h, err = w.router.Resolve(r)
	}
	if err != nil {
		if cancellable && isCancellation(ctx, err) {
			w.metrics.ObserveFailure(metrics.ReasonCancelled)
			return zeroDoc, zeroHandle, err
		}
		w.metrics.ObserveFailure(metrics.ReasonResolution)
		return zeroDoc, zeroHandle, errs.NewRecordError(i, "resolve", errs.ErrResolutionFailed, err)
	}
	if h == zeroHandle {
		w.metrics.ObserveFailure(metrics.ReasonResolution)
		return zeroDoc, zeroHandle, errs.NewRecordError(i, "resolve", errs.ErrResolutionFailed, nil)
	}
	return doc, h, nil
}

func (w *Writer[H, D]) insertOne(ctx context.Context, h H, doc D, cancellable bool) error {
	if cancellable {
		if err := w.checkCancelled(ctx); err != nil {
			return err
		}
	}
	if err := w.store.InsertOne(context.WithoutCancel(ctx), h, doc); err != nil {
		w.metrics.ObserveFailure(metrics.ReasonStore)
		return err
	}
	w.metrics.ObserveInsert(metrics.InsertOne)
	w.log.Debugw("msg", "group flushed", "documents", 1)
	return nil
}

func (w *Writer[H, D]) insertMany(ctx context.Context, h H, docs []D, cancellable bool) error {
	if cancellable {
		if err := w.checkCancelled(ctx); err != nil {
			return err
		}
	}
	if err := w.store.InsertMany(context.WithoutCancel(ctx), h, docs); err != nil {
		w.metrics.ObserveFailure(metrics.ReasonStore)
		return err
	}
	w.metrics.ObserveInsert(metrics.InsertMany)
	w.log.Debugw("msg", "group flushed", "documents", len(docs))
	return nil
}

func (w *Writer[H, D]) checkCancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		w.metrics.ObserveFailure(metrics.ReasonCancelled)
		return err
	}
	return nil
}

// isCancellation reports whether err is ctx's own cancellation error.
func isCancellation(ctx context.Context, err error) bool {
	cerr := ctx.Err()
	return cerr != nil && errors.Is(err, cerr)
}
