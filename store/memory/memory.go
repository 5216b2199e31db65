// Package memory is an in-process destination backend. Collections are
// handed out once per name, so records routed to the same name share a
// handle, and every insert call is recorded for inspection.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/go-lynx/logsink/errs"
	"github.com/go-lynx/logsink/record"
	"github.com/go-lynx/logsink/serializer"
)

// Document is the document type stored by this backend.
type Document = map[string]any

// Collection is a named list of documents.
type Collection struct {
	name string
	mu   sync.Mutex
	docs []Document
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// Documents returns a copy of the stored documents in insertion order.
func (c *Collection) Documents() []Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Document(nil), c.docs...)
}

// Len returns the number of stored documents.
func (c *Collection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.docs)
}

func (c *Collection) append(docs ...Document) {
	c.mu.Lock()
	c.docs = append(c.docs, docs...)
	c.mu.Unlock()
}

// Database hands out collections by name.
type Database struct {
	name        string
	collections sync.Map // name -> *Collection
}

// NewDatabase creates an empty database.
func NewDatabase(name string) *Database {
	return &Database{name: name}
}

// Name returns the database name.
func (db *Database) Name() string { return db.name }

// Collection returns the collection called name, creating it on first use.
func (db *Database) Collection(name string) *Collection {
	if c, ok := db.collections.Load(name); ok {
		return c.(*Collection)
	}
	c, _ := db.collections.LoadOrStore(name, &Collection{name: name})
	return c.(*Collection)
}

// Handle implements router.Catalog.
func (db *Database) Handle(name string) (*Collection, error) {
	if name == "" {
		return nil, errs.InvalidArgument("collection name is empty")
	}
	return db.Collection(name), nil
}

// HandleContext implements router.Catalog.
func (db *Database) HandleContext(ctx context.Context, name string) (*Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return db.Handle(name)
}

// CollectionNames lists the collections created so far, sorted.
func (db *Database) CollectionNames() []string {
	var names []string
	db.collections.Range(func(k, _ any) bool {
		names = append(names, k.(string))
		return true
	})
	sort.Strings(names)
	return names
}

// CallKind distinguishes single and multi-document inserts.
type CallKind string

const (
	CallInsertOne  CallKind = "InsertOne"
	CallInsertMany CallKind = "InsertMany"
)

// Call is one recorded insert.
type Call struct {
	Kind       CallKind
	Collection *Collection
	Documents  []Document
}

// Store appends documents to collections and records each call.
type Store struct {
	mu     sync.Mutex
	calls  []Call
	failOn func(c *Collection, docs []Document) error
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithFailure makes the store return the error produced by fn, if any,
// instead of storing the documents. The failed call is still recorded.
func WithFailure(fn func(c *Collection, docs []Document) error) StoreOption {
	return func(s *Store) { s.failOn = fn }
}

// NewStore creates a Store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InsertOne implements writer.Store.
func (s *Store) InsertOne(_ context.Context, c *Collection, doc Document) error {
	return s.insert(CallInsertOne, c, []Document{doc})
}

// InsertMany implements writer.Store.
func (s *Store) InsertMany(_ context.Context, c *Collection, docs []Document) error {
	return s.insert(CallInsertMany, c, append([]Document(nil), docs...))
}

func (s *Store) insert(kind CallKind, c *Collection, docs []Document) error {
	if c == nil {
		return errs.InvalidArgument("collection is nil")
	}
	s.mu.Lock()
	s.calls = append(s.calls, Call{Kind: kind, Collection: c, Documents: docs})
	s.mu.Unlock()

	if s.failOn != nil {
		if err := s.failOn(c, docs); err != nil {
			return err
		}
	}
	c.append(docs...)
	return nil
}

// Calls returns the recorded calls in order.
func (s *Store) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Reset forgets the recorded calls.
func (s *Store) Reset() {
	s.mu.Lock()
	s.calls = nil
	s.mu.Unlock()
}

// DocumentBuilder converts records into Documents.
type DocumentBuilder struct{}

// BuildFrom implements serializer.Serializer.
func (DocumentBuilder) BuildFrom(r *record.Record) (Document, error) {
	if r == nil {
		return nil, errs.InvalidArgument("record is nil")
	}
	doc := Document{
		"id":          r.ID,
		"source":      r.Source,
		"context":     r.Context,
		"category":    r.Category.String(),
		"timestamp":   r.UTC(),
		"description": r.Description,
	}
	if len(r.Tags) > 0 {
		doc["tags"] = append([]string(nil), r.Tags...)
	}
	if len(r.Items) > 0 {
		doc["items"] = append([]record.Item(nil), r.Items...)
	}
	return doc, nil
}

// BuildFromContext implements serializer.Serializer.
func (b DocumentBuilder) BuildFromContext(ctx context.Context, r *record.Record) (Document, error) {
	return serializer.BuildContext(ctx, r, b.BuildFrom)
}
