// Package echoview renders templates for the Echo web framework through the
// pongo2 template engine. Handlers stash values on the request context, and
// the view resolves a template from the route, merges stash, globals, theme,
// and translation bindings, and writes the response. Template compilation
// and caching stay inside the engine; this module is the glue between
// framework conventions and the engine's invocation API.
//
// The root package re-exports the common entry points. The full option
// surface lives in pkg/view, engine adapters in pkg/engine, and filed-based
// configuration in pkg/config.
package echoview

import (
	"fmt"

	"github.com/labstack/echo/v4"

	"github.com/autarch/echoview/pkg/config"
	"github.com/autarch/echoview/pkg/engine"
	"github.com/autarch/echoview/pkg/engine/gormloader"
	"github.com/autarch/echoview/pkg/engine/pongo2engine"
	"github.com/autarch/echoview/pkg/view"
)

// View implements echo.Renderer on top of a template engine.
type View = view.View

// Option configures a View before construction.
type Option = view.Option

// GlobalFunc derives a per-request template value.
type GlobalFunc = view.GlobalFunc

// Translator resolves message keys for the t(...) template helper.
type Translator = view.Translator

// Engine is the seam between the view and the wrapped template engine.
type Engine = engine.Engine

// Config describes a view in data, loadable from YAML and ECHOVIEW_* vars.
type Config = config.Config

// ErrNoTemplate reports a render with no resolvable template name.
var ErrNoTemplate = view.ErrNoTemplate

// New builds a View from options. See pkg/view for the full option set.
func New(opts ...Option) (*View, error) {
	return view.New(opts...)
}

// FromConfig builds a View from a Config plus extra code-level options such
// as WithThemeSelector or WithTranslator. A DatabaseDSN opens the SQLite
// template store and adds it as an engine loader behind any templates
// directory.
func FromConfig(cfg Config, extra ...Option) (*View, error) {
	opts := cfg.Options()

	if cfg.DatabaseDSN != "" {
		loader, err := gormloader.Open(cfg.DatabaseDSN, nil)
		if err != nil {
			return nil, fmt.Errorf("echoview: open template store: %w", err)
		}
		opts = append(opts, view.WithEngineOptions(pongo2engine.WithLoader(loader)))
	}

	return view.New(append(opts, extra...)...)
}

// Register installs the view as the Echo instance's renderer so handlers
// can call c.Render.
func Register(e *echo.Echo, v *View) {
	e.Renderer = v
}

// Middleware returns the after-handler auto-render hook for v. Mount it
// with e.Use alongside Register.
func Middleware(v *View) echo.MiddlewareFunc {
	return v.Middleware()
}

// Commonly used options, re-exported so simple applications only import the
// root package.
var (
	WithTemplatesDir = view.WithTemplatesDir
	WithTemplatesFS  = view.WithTemplatesFS
	WithAutoReload   = view.WithAutoReload
	WithExtension    = view.WithExtension
	WithStockFilters = view.WithStockFilters
)
