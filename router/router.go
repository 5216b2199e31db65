// Package router maps log records to destination handles.
//
// Four strategies are provided: Fixed, CategoryMap, Generator and Template.
// Handles are compared with ==, so the handle type decides what "same
// destination" means: pointer identity for collection objects, value
// identity for keys.
package router

import (
	"context"

	"github.com/go-lynx/logsink/record"
)

// Router resolves the destination handle for a record.
type Router[H comparable] interface {
	Resolve(r *record.Record) (H, error)
	ResolveContext(ctx context.Context, r *record.Record) (H, error)
}

// Catalog looks destination handles up by name, e.g. a database handing out
// collections. Template routers depend on it.
type Catalog[H comparable] interface {
	Handle(name string) (H, error)
	HandleContext(ctx context.Context, name string) (H, error)
}

// resolveContext is the context-aware counterpart shared by the synchronous strategies.
func resolveContext[H comparable](ctx context.Context, r *record.Record, resolve func(*record.Record) (H, error)) (H, error) {
	if err := ctx.Err(); err != nil {
		var zero H
		return zero, err
	}
	return resolve(r)
}
