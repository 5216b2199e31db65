// Package boot assembles a destination from configuration: the backend
// client and store, the router, the serializer and the batch writer.
package boot

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/go-lynx/logsink/conf"
	"github.com/go-lynx/logsink/errs"
	"github.com/go-lynx/logsink/log"
	"github.com/go-lynx/logsink/observability/metrics"
	"github.com/go-lynx/logsink/record"
	"github.com/go-lynx/logsink/router"
	"github.com/go-lynx/logsink/serializer"
	"github.com/go-lynx/logsink/store/memory"
	"github.com/go-lynx/logsink/store/mongodb"
	"github.com/go-lynx/logsink/store/redis"
	"github.com/go-lynx/logsink/template"
	"github.com/go-lynx/logsink/writer"
)

// Destination is a configured writer, independent of the backend types.
type Destination interface {
	Name() string
	Backend() string
	Metrics() *metrics.WriterMetrics
	Write(records []*record.Record) error
	WriteContext(ctx context.Context, records []*record.Record) error
	WriteAsync(ctx context.Context, records []*record.Record) <-chan error
	// Close releases the backend client.
	Close(ctx context.Context) error
}

type destination[H comparable, D any] struct {
	*writer.Writer[H, D]
	name    string
	backend string
	metrics *metrics.WriterMetrics
	close   func(ctx context.Context) error
}

func (d *destination[H, D]) Name() string                    { return d.name }
func (d *destination[H, D]) Backend() string                 { return d.backend }
func (d *destination[H, D]) Metrics() *metrics.WriterMetrics { return d.metrics }

func (d *destination[H, D]) Close(ctx context.Context) error {
	if d.close == nil {
		return nil
	}
	return d.close(ctx)
}

// Option configures Build.
type Option func(*options)

type options struct {
	logger   log.Logger
	memoryDB *memory.Database
	store    *memory.Store
}

// WithLogger sets the logger passed to the writer.
func WithLogger(l log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMemory makes the memory backend write into db through store, so the
// caller can inspect what was written.
func WithMemory(db *memory.Database, store *memory.Store) Option {
	return func(o *options) {
		o.memoryDB = db
		o.store = store
	}
}

// Build creates the destination described by c. For the mongodb backend
// it connects to the server.
func Build(ctx context.Context, c *conf.Logsink, opts ...Option) (Destination, error) {
	if c == nil {
		return nil, errs.InvalidArgument("configuration is nil")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	m := metrics.NewWriterMetrics(c.Metrics.Namespace, c.Name)
	wopts := []writer.Option{writer.WithMetrics(m)}
	if o.logger != nil {
		wopts = append(wopts, writer.WithLogger(o.logger))
	}

	switch c.Backend {
	case conf.BackendMemory:
		db, store := o.memoryDB, o.store
		if db == nil {
			db = memory.NewDatabase(c.Name)
		}
		if store == nil {
			store = memory.NewStore()
		}
		d, err := assemble[*memory.Collection, memory.Document](c, m, db, memory.DocumentBuilder{}, store, nil, wopts)
		if err != nil {
			return nil, err
		}
		return d, nil

	case conf.BackendMongoDB:
		client, err := mongodb.Connect(ctx, c.MongoDB)
		if err != nil {
			return nil, err
		}
		catalog, err := mongodb.NewCatalog(client.Database(c.MongoDB.Database))
		if err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		d, err := assemble[*mongo.Collection, bson.D](c, m, catalog, mongodb.DocumentBuilder{}, mongodb.NewStore(!c.MongoDB.Unordered), client.Disconnect, wopts)
		if err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		return d, nil

	case conf.BackendRedis:
		client, err := redis.NewClient(c.Redis)
		if err != nil {
			return nil, err
		}
		store, err := redis.NewStore(client, c.Redis.MaxLen)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		closer := func(context.Context) error { return client.Close() }
		d, err := assemble[string, redis.Fields](c, m, redis.NewCatalog(c.Redis.KeyPrefix), redis.FieldsBuilder{}, store, closer, wopts)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return d, nil
	}
	return nil, errs.InvalidArgument("unknown backend %q", c.Backend)
}

func assemble[H comparable, D any](
	c *conf.Logsink,
	m *metrics.WriterMetrics,
	catalog router.Catalog[H],
	s serializer.Serializer[D],
	store writer.Store[H, D],
	closer func(context.Context) error,
	wopts []writer.Option,
) (*destination[H, D], error) {
	r, err := NewRouter(c.Route, catalog)
	if err != nil {
		return nil, err
	}
	w, err := writer.New[H, D](r, s, store, wopts...)
	if err != nil {
		return nil, err
	}
	log.Infow("msg", "destination ready", "name", c.Name, "backend", c.Backend, "route", c.Route.Mode())
	return &destination[H, D]{
		Writer:  w,
		name:    c.Name,
		backend: c.Backend,
		metrics: m,
		close:   closer,
	}, nil
}

// NewRouter builds the router selected by route, looking destinations up in catalog.
func NewRouter[H comparable](route conf.Route, catalog router.Catalog[H]) (router.Router[H], error) {
	switch route.Mode() {
	case conf.RouteCollection:
		h, err := catalog.Handle(route.Collection)
		if err != nil {
			return nil, fmt.Errorf("route.collection: %w", err)
		}
		r, err := router.NewFixed(h)
		if err != nil {
			return nil, err
		}
		return r, nil

	case conf.RouteCategories:
		names, err := route.CategoryNames()
		if err != nil {
			return nil, err
		}
		handles := make(map[record.Category]H, len(names))
		for category, name := range names {
			h, err := catalog.Handle(name)
			if err != nil {
				return nil, fmt.Errorf("route.categories[%s]: %w", category, err)
			}
			handles[category] = h
		}
		r, err := router.NewCategoryMap(handles)
		if err != nil {
			return nil, err
		}
		return r, nil

	case conf.RouteTemplate:
		var topts []template.Option
		if route.DateFormat != "" {
			topts = append(topts, template.WithDefaultDateFormat(route.DateFormat))
		}
		r, err := router.NewTemplate(catalog, route.Template, topts...)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	return nil, errs.InvalidArgument("route: exactly one of collection, categories or template must be set")
}
