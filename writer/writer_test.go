package writer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	klog "github.com/go-kratos/kratos/v2/log"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-lynx/logsink/errs"
	"github.com/go-lynx/logsink/observability/metrics"
	"github.com/go-lynx/logsink/record"
	"github.com/go-lynx/logsink/router"
	"github.com/go-lynx/logsink/serializer"
	"github.com/go-lynx/logsink/store/memory"
)

type (
	handle = *memory.Collection
	doc    = memory.Document
)

func records(cats ...record.Category) []*record.Record {
	out := make([]*record.Record, len(cats))
	for i, c := range cats {
		out[i] = &record.Record{
			ID:        fmt.Sprintf("r%d", i),
			Source:    "svc",
			Category:  c,
			Timestamp: time.Date(2019, 12, 10, 8, 0, 0, 0, time.UTC),
		}
	}
	return out
}

func ids(docs []doc) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i], _ = d["id"].(string)
	}
	return out
}

// byCategory routes every record to the collection named after its category.
func byCategory(t *testing.T, db *memory.Database) *router.Generator[handle] {
	t.Helper()
	g, err := router.NewGenerator(func(r *record.Record) handle {
		return db.Collection(r.Category.String())
	})
	require.NoError(t, err)
	return g
}

func quiet() Option {
	return WithLogger(klog.NewStdLogger(io.Discard))
}

func newWriter(t *testing.T, r router.Router[handle], s serializer.Serializer[doc], st Store[handle, doc], opts ...Option) *Writer[handle, doc] {
	t.Helper()
	w, err := New(r, s, st, append([]Option{quiet()}, opts...)...)
	require.NoError(t, err)
	return w
}

// countingRouter counts resolutions before delegating.
type countingRouter struct {
	router.Router[handle]
	calls int
}

func (c *countingRouter) Resolve(r *record.Record) (handle, error) {
	c.calls++
	return c.Router.Resolve(r)
}

func (c *countingRouter) ResolveContext(ctx context.Context, r *record.Record) (handle, error) {
	c.calls++
	return c.Router.ResolveContext(ctx, r)
}

// failingSerializer fails for the record at position failAt and calls
// cancel, if set, when it reaches cancelAt.
type failingSerializer struct {
	memory.DocumentBuilder
	failAt   int
	cancelAt int
	cancel   context.CancelFunc
	calls    int
}

func (f *failingSerializer) BuildFrom(r *record.Record) (doc, error) {
	i := f.calls
	f.calls++
	if i == f.failAt {
		return nil, errors.New("cannot encode")
	}
	return f.DocumentBuilder.BuildFrom(r)
}

func (f *failingSerializer) BuildFromContext(ctx context.Context, r *record.Record) (doc, error) {
	if f.cancel != nil && f.calls == f.cancelAt {
		f.cancel()
	}
	return serializer.BuildContext(ctx, r, f.BuildFrom)
}

type errRouter struct{ err error }

func (e errRouter) Resolve(*record.Record) (handle, error) { return nil, e.err }

func (e errRouter) ResolveContext(context.Context, *record.Record) (handle, error) {
	return nil, e.err
}

type panicRouter struct{}

func (panicRouter) Resolve(*record.Record) (handle, error) { panic("router exploded") }

func (panicRouter) ResolveContext(context.Context, *record.Record) (handle, error) {
	panic("router exploded")
}

func TestNew_InvalidArguments(t *testing.T) {
	db := memory.NewDatabase("logs")
	fixed, err := router.NewFixed(db.Collection("all"))
	require.NoError(t, err)
	store := memory.NewStore()
	builder := memory.DocumentBuilder{}

	_, err = New[handle, doc](nil, builder, store)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = New[handle, doc](fixed, nil, store)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = New[handle, doc](fixed, builder, nil)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	w, err := New[handle, doc](fixed, builder, store)
	require.NoError(t, err)
	assert.Same(t, fixed, w.Router())
	assert.Equal(t, builder, w.Serializer())
}

func TestWrite_EmptyBatch(t *testing.T) {
	db := memory.NewDatabase("logs")
	store := memory.NewStore()
	w := newWriter(t, byCategory(t, db), memory.DocumentBuilder{}, store)

	assert.ErrorIs(t, w.Write(nil), errs.ErrInvalidArgument)
	assert.ErrorIs(t, w.WriteContext(context.Background(), []*record.Record{}), errs.ErrInvalidArgument)
	assert.Empty(t, store.Calls())
}

func TestWrite_SingleRecord(t *testing.T) {
	db := memory.NewDatabase("logs")
	store := memory.NewStore()
	w := newWriter(t, byCategory(t, db), memory.DocumentBuilder{}, store)

	require.NoError(t, w.Write(records(record.Error)))

	calls := store.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, memory.CallInsertOne, calls[0].Kind)
	assert.Equal(t, "Error", calls[0].Collection.Name())
	assert.Equal(t, []string{"r0"}, ids(calls[0].Documents))
}

func TestWrite_SharedHandle(t *testing.T) {
	db := memory.NewDatabase("logs")
	fixed, err := router.NewFixed(db.Collection("all"))
	require.NoError(t, err)
	store := memory.NewStore()
	w := newWriter(t, fixed, memory.DocumentBuilder{}, store)

	batch := records(record.Info, record.Error, record.Warning, record.Info)
	require.NoError(t, w.Write(batch))

	calls := store.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, memory.CallInsertMany, calls[0].Kind)
	assert.Equal(t, []string{"r0", "r1", "r2", "r3"}, ids(calls[0].Documents))
	assert.Equal(t, 4, db.Collection("all").Len())
}

func TestWrite_GroupsInFirstSeenOrder(t *testing.T) {
	db := memory.NewDatabase("logs")
	store := memory.NewStore()
	w := newWriter(t, byCategory(t, db), memory.DocumentBuilder{}, store)

	batch := records(record.Warning, record.Error, record.Warning, record.Info, record.Error, record.Warning)
	require.NoError(t, w.Write(batch))

	calls := store.Calls()
	require.Len(t, calls, 3)

	assert.Equal(t, "Warning", calls[0].Collection.Name())
	assert.Equal(t, memory.CallInsertMany, calls[0].Kind)
	assert.Equal(t, []string{"r0", "r2", "r5"}, ids(calls[0].Documents))

	assert.Equal(t, "Error", calls[1].Collection.Name())
	assert.Equal(t, memory.CallInsertMany, calls[1].Kind)
	assert.Equal(t, []string{"r1", "r4"}, ids(calls[1].Documents))

	assert.Equal(t, "Info", calls[2].Collection.Name())
	assert.Equal(t, memory.CallInsertOne, calls[2].Kind)
	assert.Equal(t, []string{"r3"}, ids(calls[2].Documents))
}

func TestWrite_TemplateRouting(t *testing.T) {
	db := memory.NewDatabase("logs")
	tmpl, err := router.NewTemplate[handle](db, "$Source-$LogDate(yyyyMMdd)")
	require.NoError(t, err)
	store := memory.NewStore()
	w := newWriter(t, tmpl, memory.DocumentBuilder{}, store)

	batch := records(record.Info, record.Error, record.Info)
	batch[1].Source = "other"
	require.NoError(t, w.Write(batch))

	calls := store.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "svc-20191210", calls[0].Collection.Name())
	assert.Equal(t, []string{"r0", "r2"}, ids(calls[0].Documents))
	assert.Equal(t, "other-20191210", calls[1].Collection.Name())
	assert.Equal(t, memory.CallInsertOne, calls[1].Kind)
}

func TestWrite_SerializationFailure(t *testing.T) {
	db := memory.NewDatabase("logs")
	store := memory.NewStore()
	r := &countingRouter{Router: byCategory(t, db)}
	s := &failingSerializer{failAt: 1, cancelAt: -1}
	w := newWriter(t, r, s, store)

	err := w.Write(records(record.Info, record.Error, record.Info))
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrSerializationFailed)

	var re *errs.RecordError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 1, re.Index)
	assert.Equal(t, "serialize", re.Op)

	assert.Equal(t, 1, r.calls, "the failing record must not be resolved")
	assert.Empty(t, store.Calls())
}

func TestWrite_AbsentDocument(t *testing.T) {
	db := memory.NewDatabase("logs")
	store := memory.NewStore()
	s, err := serializer.Func(func(r *record.Record) doc {
		if r.Category == record.Failure {
			return nil
		}
		return doc{"id": r.ID}
	})
	require.NoError(t, err)
	w := newWriter(t, byCategory(t, db), s, store)

	err = w.Write(records(record.Info, record.Failure))
	assert.ErrorIs(t, err, errs.ErrSerializationFailed)
	assert.Empty(t, store.Calls())

	// The fast path fails the same way.
	err = w.Write(records(record.Failure))
	assert.ErrorIs(t, err, errs.ErrSerializationFailed)
	assert.Empty(t, store.Calls())
}

func TestWrite_ResolutionFailure(t *testing.T) {
	db := memory.NewDatabase("logs")
	store := memory.NewStore()

	t.Run("absent handle", func(t *testing.T) {
		g, err := router.NewGenerator(func(r *record.Record) handle {
			if r.Category == record.Critical {
				return nil
			}
			return db.Collection("ok")
		})
		require.NoError(t, err)
		w := newWriter(t, g, memory.DocumentBuilder{}, store)

		err = w.Write(records(record.Info, record.Info, record.Critical))
		assert.ErrorIs(t, err, errs.ErrResolutionFailed)

		var re *errs.RecordError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, 2, re.Index)
		assert.Nil(t, re.Err)
		assert.Empty(t, store.Calls())
	})

	t.Run("router error", func(t *testing.T) {
		cause := errors.New("catalog offline")
		w := newWriter(t, errRouter{err: cause}, memory.DocumentBuilder{}, store)

		err := w.Write(records(record.Info))
		assert.ErrorIs(t, err, errs.ErrResolutionFailed)
		assert.ErrorIs(t, err, cause)
		assert.Empty(t, store.Calls())
	})

	t.Run("unmapped category", func(t *testing.T) {
		m, err := router.NewCategoryMap(map[record.Category]handle{
			record.Info:     db.Collection("info"),
			record.Success:  db.Collection("info"),
			record.Event:    db.Collection("info"),
			record.Warning:  db.Collection("warn"),
			record.Error:    db.Collection("err"),
			record.Failure:  db.Collection("err"),
			record.Critical: db.Collection("err"),
		})
		require.NoError(t, err)
		w := newWriter(t, m, memory.DocumentBuilder{}, store)

		batch := records(record.Info, record.Info)
		batch[1].Category = record.Category(42)
		err = w.Write(batch)
		assert.ErrorIs(t, err, errs.ErrResolutionFailed)
		assert.ErrorIs(t, err, errs.ErrInvalidArgument)
		assert.Empty(t, store.Calls())
	})
}

func TestWrite_StoreErrorPropagates(t *testing.T) {
	db := memory.NewDatabase("logs")
	boom := errors.New("write concern failed")
	store := memory.NewStore(memory.WithFailure(func(c *memory.Collection, _ []memory.Document) error {
		if c.Name() == "Warning" {
			return boom
		}
		return nil
	}))
	w := newWriter(t, byCategory(t, db), memory.DocumentBuilder{}, store)

	err := w.Write(records(record.Info, record.Info, record.Warning, record.Error))
	assert.Equal(t, boom, err)

	calls := store.Calls()
	require.Len(t, calls, 2, "no group after the failing one is attempted")
	assert.Equal(t, 2, db.Collection("Info").Len(), "earlier groups stay written")
	assert.Equal(t, 0, db.Collection("Warning").Len())
	assert.Equal(t, 0, db.Collection("Error").Len())
}

func TestWriteContext_Cancelled(t *testing.T) {
	db := memory.NewDatabase("logs")
	store := memory.NewStore()
	w := newWriter(t, byCategory(t, db), memory.DocumentBuilder{}, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.WriteContext(ctx, records(record.Info, record.Error))
	assert.Equal(t, context.Canceled, err)
	assert.Empty(t, store.Calls())

	err = w.WriteContext(ctx, records(record.Info))
	assert.Equal(t, context.Canceled, err)
	assert.Empty(t, store.Calls())
}

func TestWriteContext_CancelledMidBatch(t *testing.T) {
	db := memory.NewDatabase("logs")
	store := memory.NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := &failingSerializer{failAt: -1, cancelAt: 2, cancel: cancel}
	w := newWriter(t, byCategory(t, db), s, store)

	err := w.WriteContext(ctx, records(record.Info, record.Error, record.Info))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, errs.ErrSerializationFailed)
	assert.Empty(t, store.Calls())
}

// blockingStore holds InsertMany open until released or until its context
// is done, as a network-backed store would.
type blockingStore struct {
	*memory.Store
	started chan struct{}
	release chan struct{}
}

func (b *blockingStore) InsertMany(ctx context.Context, c handle, docs []doc) error {
	b.started <- struct{}{}
	select {
	case <-b.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return b.Store.InsertMany(ctx, c, docs)
}

func TestWriteContext_IssuedInsertNotInterrupted(t *testing.T) {
	db := memory.NewDatabase("logs")
	store := &blockingStore{
		Store:   memory.NewStore(),
		started: make(chan struct{}, 2),
		release: make(chan struct{}),
	}
	w := newWriter(t, byCategory(t, db), memory.DocumentBuilder{}, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := w.WriteAsync(ctx, records(record.Warning, record.Warning, record.Error, record.Error))

	select {
	case <-store.started:
	case <-time.After(5 * time.Second):
		t.Fatal("insert was not issued")
	}
	cancel()
	close(store.release)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("WriteContext did not return")
	}

	assert.Equal(t, []string{"r0", "r1"}, ids(db.Collection("Warning").Documents()), "issued group completes")
	assert.Equal(t, 0, db.Collection("Error").Len(), "later groups are not started")
	assert.Len(t, store.Calls(), 1)
}

func TestWriteContext_DeadlineExceeded(t *testing.T) {
	db := memory.NewDatabase("logs")
	store := memory.NewStore()
	w := newWriter(t, byCategory(t, db), memory.DocumentBuilder{}, store)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	assert.ErrorIs(t, w.WriteContext(ctx, records(record.Info)), context.DeadlineExceeded)
	assert.Empty(t, store.Calls())
}

func TestWriteAsync_MatchesWrite(t *testing.T) {
	batch := records(record.Warning, record.Error, record.Warning, record.Info)

	syncDB := memory.NewDatabase("sync")
	syncStore := memory.NewStore()
	require.NoError(t, newWriter(t, byCategory(t, syncDB), memory.DocumentBuilder{}, syncStore).Write(batch))

	asyncDB := memory.NewDatabase("async")
	asyncStore := memory.NewStore()
	w := newWriter(t, byCategory(t, asyncDB), memory.DocumentBuilder{}, asyncStore)

	select {
	case err := <-w.WriteAsync(context.Background(), batch):
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("WriteAsync did not complete")
	}

	want, got := syncStore.Calls(), asyncStore.Calls()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Kind, got[i].Kind)
		assert.Equal(t, want[i].Collection.Name(), got[i].Collection.Name())
		assert.Equal(t, ids(want[i].Documents), ids(got[i].Documents))
	}
}

func TestWriteAsync_ReportsError(t *testing.T) {
	db := memory.NewDatabase("logs")
	w := newWriter(t, byCategory(t, db), memory.DocumentBuilder{}, memory.NewStore())

	err := <-w.WriteAsync(context.Background(), nil)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestWriteAsync_RecoversPanic(t *testing.T) {
	w := newWriter(t, panicRouter{}, memory.DocumentBuilder{}, memory.NewStore())

	select {
	case err := <-w.WriteAsync(context.Background(), records(record.Info)):
		require.Error(t, err)
		assert.Contains(t, err.Error(), "router exploded")
	case <-time.After(5 * time.Second):
		t.Fatal("WriteAsync did not complete")
	}
}

func TestWrite_Concurrent(t *testing.T) {
	db := memory.NewDatabase("logs")
	store := memory.NewStore()
	w := newWriter(t, byCategory(t, db), memory.DocumentBuilder{}, store)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, w.Write(records(record.Info, record.Error, record.Info)))
		}()
	}
	wg.Wait()

	assert.Equal(t, 16, db.Collection("Info").Len())
	assert.Equal(t, 8, db.Collection("Error").Len())
	assert.Len(t, store.Calls(), 16)
}

func TestWrite_Metrics(t *testing.T) {
	db := memory.NewDatabase("logs")
	m := metrics.NewWriterMetrics("logsink", "writer_test")
	w := newWriter(t, byCategory(t, db), memory.DocumentBuilder{}, memory.NewStore(), WithMetrics(m))

	require.NoError(t, w.Write(records(record.Info, record.Error, record.Info)))

	collectors := m.Collectors()
	assert.Equal(t, 3.0, testutil.ToFloat64(collectors[0]), "records")
	assert.Equal(t, 2.0, testutil.ToFloat64(collectors[1]), "groups")
}

func TestWrite_LogsEveryFlushedGroup(t *testing.T) {
	var buf bytes.Buffer
	db := memory.NewDatabase("logs")
	w := newWriter(t, byCategory(t, db), memory.DocumentBuilder{}, memory.NewStore(),
		WithLogger(klog.NewStdLogger(&buf)))

	require.NoError(t, w.Write(records(record.Warning, record.Error, record.Error)))

	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "msg=group flushed"))
	assert.Contains(t, out, "documents=1")
	assert.Contains(t, out, "documents=2")
}
