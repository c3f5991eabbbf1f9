// Package engine defines the contract between the view layer and the
// template engine that actually compiles and executes templates. The view
// owns framework translation (stash, globals, template-name policy) and
// delegates everything else through this seam.
package engine

import (
	"context"
	"io"
)

// Engine executes named or inline templates. Implementations own template
// loading, compilation, and caching; callers hand over a fully merged data
// map and a destination writer.
type Engine interface {
	// Render executes the template registered under name. The name is used
	// verbatim; extension policy belongs to the caller.
	Render(ctx context.Context, w io.Writer, name string, data map[string]any) error

	// RenderString compiles and executes an inline template source.
	RenderString(ctx context.Context, w io.Writer, src string, data map[string]any) error
}

// FilterFunc transforms a template value. param carries the filter argument
// when the template supplies one (nil otherwise).
type FilterFunc func(in any, param any) (any, error)

// FilterRegistrar is implemented by engines whose template language supports
// value filters. Callers type-assert for it the way they would for
// http.Flusher.
type FilterRegistrar interface {
	RegisterFilter(name string, fn FilterFunc) error
}

// GlobalBinder is implemented by engines that can expose a value to every
// template without it being part of per-request data.
type GlobalBinder interface {
	SetGlobal(name string, value any)
}
