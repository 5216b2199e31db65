package redis

import (
	"context"
	"time"

	"github.com/go-kratos/kratos/v2/encoding"
	_ "github.com/go-kratos/kratos/v2/encoding/json"
	"github.com/redis/go-redis/v9"

	"github.com/go-lynx/logsink/errs"
	"github.com/go-lynx/logsink/record"
	"github.com/go-lynx/logsink/serializer"
)

// Fields is one stream entry.
type Fields = map[string]any

// Catalog maps destination names to stream keys. Keys are plain strings,
// so equal names always group together.
type Catalog struct {
	prefix string
}

// NewCatalog creates a Catalog that prepends prefix to every name.
func NewCatalog(prefix string) *Catalog {
	return &Catalog{prefix: prefix}
}

// Handle implements router.Catalog.
func (c *Catalog) Handle(name string) (string, error) {
	if name == "" {
		return "", errs.InvalidArgument("stream name is empty")
	}
	return c.prefix + name, nil
}

// HandleContext implements router.Catalog.
func (c *Catalog) HandleContext(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return c.Handle(name)
}

// Store appends entries to streams.
type Store struct {
	client redis.UniversalClient
	maxLen int64
}

// NewStore creates a Store. A positive maxLen trims each stream to about
// that many entries on every append.
func NewStore(client redis.UniversalClient, maxLen int64) (*Store, error) {
	if client == nil {
		return nil, errs.InvalidArgument("redis client is nil")
	}
	if maxLen < 0 {
		return nil, errs.InvalidArgument("max length must not be negative, got %d", maxLen)
	}
	return &Store{client: client, maxLen: maxLen}, nil
}

func (s *Store) args(stream string, fields Fields) *redis.XAddArgs {
	return &redis.XAddArgs{
		Stream: stream,
		MaxLen: s.maxLen,
		Approx: s.maxLen > 0,
		Values: fields,
	}
}

// InsertOne implements writer.Store with a single XADD.
func (s *Store) InsertOne(ctx context.Context, stream string, fields Fields) error {
	if stream == "" {
		return errs.InvalidArgument("stream key is empty")
	}
	return s.client.XAdd(ctx, s.args(stream, fields)).Err()
}

// InsertMany implements writer.Store. The entries are appended in one
// MULTI/EXEC transaction.
func (s *Store) InsertMany(ctx context.Context, stream string, docs []Fields) error {
	if stream == "" {
		return errs.InvalidArgument("stream key is empty")
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, fields := range docs {
			pipe.XAdd(ctx, s.args(stream, fields))
		}
		return nil
	})
	return err
}

// FieldsBuilder converts records into stream entries. Tags and items are
// JSON encoded; the timestamp is RFC 3339 in UTC.
type FieldsBuilder struct{}

// BuildFrom implements serializer.Serializer.
func (FieldsBuilder) BuildFrom(r *record.Record) (Fields, error) {
	if r == nil {
		return nil, errs.InvalidArgument("record is nil")
	}
	fields := Fields{
		"id":          r.ID,
		"source":      r.Source,
		"context":     r.Context,
		"category":    r.Category.String(),
		"timestamp":   r.UTC().Format(time.RFC3339Nano),
		"description": r.Description,
	}

	codec := encoding.GetCodec("json")
	if len(r.Tags) > 0 {
		b, err := codec.Marshal(r.Tags)
		if err != nil {
			return nil, err
		}
		fields["tags"] = string(b)
	}
	if len(r.Items) > 0 {
		b, err := codec.Marshal(r.Items)
		if err != nil {
			return nil, err
		}
		fields["items"] = string(b)
	}
	return fields, nil
}

// BuildFromContext implements serializer.Serializer.
func (b FieldsBuilder) BuildFromContext(ctx context.Context, r *record.Record) (Fields, error) {
	return serializer.BuildContext(ctx, r, b.BuildFrom)
}
