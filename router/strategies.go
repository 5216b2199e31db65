package router

import (
	"context"
	"fmt"

	"github.com/go-lynx/logsink/errs"
	"github.com/go-lynx/logsink/record"
	"github.com/go-lynx/logsink/template"
)

// Fixed routes every record to the same handle.
type Fixed[H comparable] struct {
	handle H
}

// NewFixed returns a router that always resolves to h.
func NewFixed[H comparable](h H) (*Fixed[H], error) {
	var zero H
	if h == zero {
		return nil, errs.InvalidArgument("fixed destination handle is nil")
	}
	return &Fixed[H]{handle: h}, nil
}

// Handle returns the configured handle.
func (f *Fixed[H]) Handle() H { return f.handle }

// Resolve implements Router.
func (f *Fixed[H]) Resolve(*record.Record) (H, error) { return f.handle, nil }

// ResolveContext implements Router.
func (f *Fixed[H]) ResolveContext(ctx context.Context, r *record.Record) (H, error) {
	return resolveContext(ctx, r, f.Resolve)
}

// CategoryMap routes records by category. The mapping covers every category.
type CategoryMap[H comparable] struct {
	handles map[record.Category]H
}

// NewCategoryMap validates that m maps every category to a non-nil handle
// and returns a router over a copy of it.
func NewCategoryMap[H comparable](m map[record.Category]H) (*CategoryMap[H], error) {
	if m == nil {
		return nil, errs.InvalidArgument("category mapping is nil")
	}
	var zero H
	handles := make(map[record.Category]H, len(m))
	for _, c := range record.Categories() {
		h, ok := m[c]
		if !ok {
			return nil, errs.InvalidArgument("category mapping has no entry for %s", c)
		}
		if h == zero {
			return nil, errs.InvalidArgument("category mapping has a nil handle for %s", c)
		}
		handles[c] = h
	}
	if len(m) != len(handles) {
		return nil, errs.InvalidArgument("category mapping contains unknown categories")
	}
	return &CategoryMap[H]{handles: handles}, nil
}

// Handles returns a copy of the mapping.
func (c *CategoryMap[H]) Handles() map[record.Category]H {
	out := make(map[record.Category]H, len(c.handles))
	for k, v := range c.handles {
		out[k] = v
	}
	return out
}

// Resolve implements Router.
func (c *CategoryMap[H]) Resolve(r *record.Record) (H, error) {
	var zero H
	if r == nil {
		return zero, errs.InvalidArgument("record is nil")
	}
	h, ok := c.handles[r.Category]
	if !ok {
		return zero, errs.InvalidArgument("record category %s is not mapped", r.Category)
	}
	return h, nil
}

// ResolveContext implements Router.
func (c *CategoryMap[H]) ResolveContext(ctx context.Context, r *record.Record) (H, error) {
	return resolveContext(ctx, r, c.Resolve)
}

// Generator delegates to a caller-supplied function.
type Generator[H comparable] struct {
	fn func(*record.Record) H
}

// NewGenerator returns a router backed by fn. Whatever fn returns, including
// a nil handle, is passed through.
func NewGenerator[H comparable](fn func(*record.Record) H) (*Generator[H], error) {
	if fn == nil {
		return nil, errs.InvalidArgument("generator function is nil")
	}
	return &Generator[H]{fn: fn}, nil
}

// Resolve implements Router.
func (g *Generator[H]) Resolve(r *record.Record) (H, error) { return g.fn(r), nil }

// ResolveContext implements Router.
func (g *Generator[H]) ResolveContext(ctx context.Context, r *record.Record) (H, error) {
	return resolveContext(ctx, r, g.Resolve)
}

// Template resolves a destination name from a template and asks the
// catalog for the matching handle.
type Template[H comparable] struct {
	catalog  Catalog[H]
	template *template.Template
}

// NewTemplate compiles text once and returns a router looking names up in catalog.
func NewTemplate[H comparable](catalog Catalog[H], text string, opts ...template.Option) (*Template[H], error) {
	if catalog == nil {
		return nil, errs.InvalidArgument("destination catalog is nil")
	}
	tmpl, err := template.Compile(text, opts...)
	if err != nil {
		return nil, fmt.Errorf("compile destination template: %w", err)
	}
	return &Template[H]{catalog: catalog, template: tmpl}, nil
}

// Template returns the compiled name template.
func (t *Template[H]) Template() *template.Template { return t.template }

// Catalog returns the catalog handles are looked up in.
func (t *Template[H]) Catalog() Catalog[H] { return t.catalog }

// Name resolves the destination name for r without looking it up.
func (t *Template[H]) Name(r *record.Record) string { return t.template.Resolve(r) }

// Resolve implements Router.
func (t *Template[H]) Resolve(r *record.Record) (H, error) {
	return t.catalog.Handle(t.template.Resolve(r))
}

// ResolveContext implements Router.
func (t *Template[H]) ResolveContext(ctx context.Context, r *record.Record) (H, error) {
	if err := ctx.Err(); err != nil {
		var zero H
		return zero, err
	}
	return t.catalog.HandleContext(ctx, t.template.Resolve(r))
}
