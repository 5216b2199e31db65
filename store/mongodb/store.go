package mongodb

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/go-lynx/logsink/errs"
	"github.com/go-lynx/logsink/record"
	"github.com/go-lynx/logsink/serializer"
)

// Catalog hands out collections of one database by name. The same
// *mongo.Collection is returned for a name on every call, so records routed
// to the same name are grouped together by the writer.
type Catalog struct {
	db          *mongo.Database
	collections sync.Map // name -> *mongo.Collection
}

// NewCatalog creates a Catalog over db.
func NewCatalog(db *mongo.Database) (*Catalog, error) {
	if db == nil {
		return nil, errs.InvalidArgument("database is nil")
	}
	return &Catalog{db: db}, nil
}

// Database returns the underlying database.
func (c *Catalog) Database() *mongo.Database { return c.db }

// Handle implements router.Catalog.
func (c *Catalog) Handle(name string) (*mongo.Collection, error) {
	if name == "" {
		return nil, errs.InvalidArgument("collection name is empty")
	}
	if coll, ok := c.collections.Load(name); ok {
		return coll.(*mongo.Collection), nil
	}
	coll, _ := c.collections.LoadOrStore(name, c.db.Collection(name))
	return coll.(*mongo.Collection), nil
}

// HandleContext implements router.Catalog.
func (c *Catalog) HandleContext(ctx context.Context, name string) (*mongo.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.Handle(name)
}

// Store inserts documents into collections. Driver errors are returned as is.
type Store struct {
	ordered bool
}

// NewStore creates a Store. With ordered set, InsertMany stops at the
// first failing document.
func NewStore(ordered bool) *Store {
	return &Store{ordered: ordered}
}

// InsertOne implements writer.Store.
func (s *Store) InsertOne(ctx context.Context, coll *mongo.Collection, doc bson.D) error {
	if coll == nil {
		return errs.InvalidArgument("collection is nil")
	}
	_, err := coll.InsertOne(ctx, doc)
	return err
}

// InsertMany implements writer.Store.
func (s *Store) InsertMany(ctx context.Context, coll *mongo.Collection, docs []bson.D) error {
	if coll == nil {
		return errs.InvalidArgument("collection is nil")
	}
	batch := make([]interface{}, len(docs))
	for i, d := range docs {
		batch[i] = d
	}
	_, err := coll.InsertMany(ctx, batch, options.InsertMany().SetOrdered(s.ordered))
	return err
}

// DocumentBuilder converts records into BSON documents with the fields
// LogId, Context, Tags, Source, LogType, Description, LogItems and LogDate.
type DocumentBuilder struct{}

// BuildFrom implements serializer.Serializer.
func (DocumentBuilder) BuildFrom(r *record.Record) (bson.D, error) {
	if r == nil {
		return nil, errs.InvalidArgument("record is nil")
	}

	var items bson.A
	if r.Items != nil {
		items = make(bson.A, len(r.Items))
		for i, it := range r.Items {
			items[i] = bson.D{{Key: "Name", Value: it.Name}, {Key: "Value", Value: it.Value}}
		}
	}

	return bson.D{
		{Key: "LogId", Value: r.ID},
		{Key: "Context", Value: r.Context},
		{Key: "Tags", Value: r.Tags},
		{Key: "Source", Value: r.Source},
		{Key: "LogType", Value: r.Category.String()},
		{Key: "Description", Value: r.Description},
		{Key: "LogItems", Value: items},
		{Key: "LogDate", Value: r.UTC()},
	}, nil
}

// BuildFromContext implements serializer.Serializer.
func (b DocumentBuilder) BuildFromContext(ctx context.Context, r *record.Record) (bson.D, error) {
	return serializer.BuildContext(ctx, r, b.BuildFrom)
}
