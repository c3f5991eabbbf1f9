// Package pongo2engine adapts the pongo2 template engine to the engineseam
// used by the view layer. Template compilation, inclusion, inheritance, and
// filter execution all stay inside pongo2; this package translates
// construction options into a pongo2.TemplateSet and render calls into
// template executions.
package pongo2engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"

	"github.com/autarch/echoview/pkg/engine"
)

// Option configures the adapter before construction.
type Option func(*config)

type config struct {
	baseDir    string
	templates  fs.FS
	loaders    []pongo2.TemplateLoader
	filters    map[string]engine.FilterFunc
	globals    map[string]any
	autoReload bool
}

// WithBaseDir loads templates from a directory on disk.
func WithBaseDir(dir string) Option {
	return func(cfg *config) {
		cfg.baseDir = strings.TrimSpace(dir)
	}
}

// WithFS loads templates from an fs.FS (embed.FS, fstest.MapFS, os.DirFS).
func WithFS(files fs.FS) Option {
	return func(cfg *config) {
		cfg.templates = files
	}
}

// WithLoader appends custom pongo2 loaders, consulted after any base dir or
// fs.FS loader. Use this to source templates from places pongo2 does not
// know about, such as a database.
func WithLoader(loaders ...pongo2.TemplateLoader) Option {
	return func(cfg *config) {
		for _, loader := range loaders {
			if loader != nil {
				cfg.loaders = append(cfg.loaders, loader)
			}
		}
	}
}

// WithFilters registers value filters when the engine loads. Names already
// known to pongo2 are left untouched so repeated construction stays
// idempotent.
func WithFilters(filters map[string]engine.FilterFunc) Option {
	return func(cfg *config) {
		if len(filters) == 0 {
			return
		}
		if cfg.filters == nil {
			cfg.filters = make(map[string]engine.FilterFunc, len(filters))
		}
		for name, fn := range filters {
			cfg.filters[strings.TrimSpace(name)] = fn
		}
	}
}

// WithGlobals seeds set-wide values available to every template.
func WithGlobals(globals map[string]any) Option {
	return func(cfg *config) {
		if len(globals) == 0 {
			return
		}
		if cfg.globals == nil {
			cfg.globals = make(map[string]any, len(globals))
		}
		for name, value := range globals {
			cfg.globals[strings.TrimSpace(name)] = value
		}
	}
}

// WithAutoReload disables the compiled-template cache so every render picks
// up source changes. Meant for development; production keeps the cache.
func WithAutoReload(reload bool) Option {
	return func(cfg *config) {
		cfg.autoReload = reload
	}
}

// Engine drives a pongo2.TemplateSet behind the engine.Engine seam.
type Engine struct {
	mu sync.RWMutex

	templateSet *pongo2.TemplateSet
	loaders     []pongo2.TemplateLoader
	templates   map[string]*pongo2.Template
	autoReload  bool
}

var (
	_ engine.Engine          = (*Engine)(nil)
	_ engine.FilterRegistrar = (*Engine)(nil)
	_ engine.GlobalBinder    = (*Engine)(nil)
)

// New constructs an Engine from the provided options. At least one template
// source (base dir, fs.FS, or custom loader) is required.
func New(options ...Option) (*Engine, error) {
	cfg := &config{}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(cfg)
	}

	var loaders []pongo2.TemplateLoader
	if cfg.baseDir != "" {
		loader, err := pongo2.NewLocalFileSystemLoader(cfg.baseDir)
		if err != nil {
			return nil, fmt.Errorf("pongo2engine: create local loader: %w", err)
		}
		loaders = append(loaders, loader)
	}
	if cfg.templates != nil {
		loaders = append(loaders, pongo2.NewFSLoader(cfg.templates))
	}
	loaders = append(loaders, cfg.loaders...)
	if len(loaders) == 0 {
		return nil, errors.New("pongo2engine: need a base dir, fs.FS, or loader")
	}

	e := &Engine{
		templateSet: pongo2.NewSet("echoview", loaders...),
		loaders:     loaders,
		templates:   make(map[string]*pongo2.Template),
		autoReload:  cfg.autoReload,
	}

	for name, fn := range cfg.filters {
		if name == "" || fn == nil || pongo2.FilterExists(name) {
			continue
		}
		if err := e.RegisterFilter(name, fn); err != nil {
			return nil, fmt.Errorf("pongo2engine: register filter %q: %w", name, err)
		}
	}
	for name, value := range cfg.globals {
		if name == "" {
			continue
		}
		e.SetGlobal(name, value)
	}

	return e, nil
}

// Render executes the named template. Nothing is written to w on error.
func (e *Engine) Render(ctx context.Context, w io.Writer, name string, data map[string]any) error {
	if e == nil || e.templateSet == nil {
		return errors.New("pongo2engine: engine is nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tmpl, err := e.template(name)
	if err != nil {
		return err
	}
	return e.execute(tmpl, name, w, data)
}

// RenderString compiles and executes an inline template source.
func (e *Engine) RenderString(ctx context.Context, w io.Writer, src string, data map[string]any) error {
	if e == nil || e.templateSet == nil {
		return errors.New("pongo2engine: engine is nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tmpl, err := e.templateSet.FromString(src)
	if err != nil {
		return &engine.RenderError{Name: "inline", Err: err}
	}
	return e.execute(tmpl, "inline", w, data)
}

// RegisterFilter exposes fn to templates under name. Registration is
// process-wide (pongo2 keeps one filter table), so duplicate names are
// refused.
func (e *Engine) RegisterFilter(name string, fn engine.FilterFunc) error {
	if strings.TrimSpace(name) == "" || fn == nil {
		return errors.New("pongo2engine: filter name and function required")
	}
	if pongo2.FilterExists(name) {
		return fmt.Errorf("pongo2engine: filter %q: %w", name, engine.ErrFilterExists)
	}

	filter := func(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
		var paramVal any
		if param != nil {
			paramVal = param.Interface()
		}
		result, err := fn(in.Interface(), paramVal)
		if err != nil {
			return nil, &pongo2.Error{Sender: "filter:" + name, OrigError: err}
		}
		return pongo2.AsValue(result), nil
	}
	return pongo2.RegisterFilter(name, filter)
}

// SetGlobal exposes value to every template rendered by this engine.
func (e *Engine) SetGlobal(name string, value any) {
	if e == nil || e.templateSet == nil || strings.TrimSpace(name) == "" {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.templateSet.Globals == nil {
		e.templateSet.Globals = make(pongo2.Context)
	}
	e.templateSet.Globals[name] = value
}

func (e *Engine) execute(tmpl *pongo2.Template, name string, w io.Writer, data map[string]any) error {
	viewContext := make(pongo2.Context, len(data))
	for key, value := range data {
		viewContext[key] = value
	}

	e.mu.RLock()
	err := tmpl.ExecuteWriter(viewContext, w)
	e.mu.RUnlock()

	if err != nil {
		return &engine.RenderError{Name: name, Err: err}
	}
	return nil
}

func (e *Engine) template(name string) (*pongo2.Template, error) {
	if e.autoReload {
		return e.compile(name)
	}

	e.mu.RLock()
	if tmpl, ok := e.templates[name]; ok {
		e.mu.RUnlock()
		return tmpl, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if tmpl, ok := e.templates[name]; ok {
		return tmpl, nil
	}
	tmpl, err := e.compileLocked(name)
	if err != nil {
		return nil, err
	}
	e.templates[name] = tmpl
	return tmpl, nil
}

func (e *Engine) compile(name string) (*pongo2.Template, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.compileLocked(name)
}

func (e *Engine) compileLocked(name string) (*pongo2.Template, error) {
	tmpl, err := e.templateSet.FromFile(name)
	if err != nil {
		if e.missingSource(name) {
			return nil, &engine.NotFoundError{Name: name}
		}
		return nil, &engine.RenderError{Name: name, Err: err}
	}
	return tmpl, nil
}

// missingSource reports whether every loader misses the named template.
// pongo2 discards the loader error when compilation fails, and a broken
// include inside an existing template fails with the same error shape as a
// missing template, so the loaders are asked directly. A loader failure
// other than fs.ErrNotExist counts as existing so infrastructure errors
// keep surfacing as render errors.
func (e *Engine) missingSource(name string) bool {
	for _, loader := range e.loaders {
		reader, err := loader.Get(loader.Abs("", name))
		if err == nil {
			if closer, ok := reader.(io.Closer); ok {
				closer.Close()
			}
			return false
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return false
		}
	}
	return true
}
