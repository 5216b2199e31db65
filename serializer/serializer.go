// Package serializer defines how records become backend documents.
package serializer

import (
	"context"
	"reflect"

	"github.com/go-lynx/logsink/errs"
	"github.com/go-lynx/logsink/record"
)

// Serializer builds a document of type D from a record.
// Implementations return an error rather than an absent document when a
// record cannot be serialized.
type Serializer[D any] interface {
	BuildFrom(r *record.Record) (D, error)
	BuildFromContext(ctx context.Context, r *record.Record) (D, error)
}

// BuildContext is the context-aware counterpart of a synchronous build
// function: it honours cancellation, then delegates.
func BuildContext[D any](ctx context.Context, r *record.Record, build func(*record.Record) (D, error)) (D, error) {
	if err := ctx.Err(); err != nil {
		var zero D
		return zero, err
	}
	return build(r)
}

// Converter wraps a caller-supplied conversion function.
type Converter[D any] struct {
	fn func(*record.Record) D
}

// Func returns a Serializer backed by fn. The result of fn is passed through
// unchanged, so a nil document surfaces as a serialization failure in the writer.
func Func[D any](fn func(*record.Record) D) (*Converter[D], error) {
	if fn == nil {
		return nil, errs.InvalidArgument("converter function is nil")
	}
	return &Converter[D]{fn: fn}, nil
}

// BuildFrom implements Serializer.
func (c *Converter[D]) BuildFrom(r *record.Record) (D, error) {
	return c.fn(r), nil
}

// BuildFromContext implements Serializer.
func (c *Converter[D]) BuildFromContext(ctx context.Context, r *record.Record) (D, error) {
	return BuildContext(ctx, r, c.BuildFrom)
}

// IsAbsent reports whether v is the absent document or handle: a nil
// interface, or a nil pointer, slice, map, channel or function.
func IsAbsent(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
