// Package htmlengine backs the engine seam with the standard library's
// html/template. It exists for projects that want contextual auto-escaping
// and no extra template dependency; pongo2engine remains the default.
//
// Templates are keyed by their slash path relative to the source root
// ("users/show.html"), not by base name, so templates in different
// directories never shadow each other.
package htmlengine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"os"
	"sync"

	"github.com/autarch/echoview/pkg/engine"
)

// Option configures the adapter before construction.
type Option func(*config)

type config struct {
	templates fs.FS
	funcs     template.FuncMap
}

// WithBaseDir loads templates from a directory on disk.
func WithBaseDir(dir string) Option {
	return func(cfg *config) {
		if dir != "" {
			cfg.templates = os.DirFS(dir)
		}
	}
}

// WithFS loads templates from an fs.FS.
func WithFS(files fs.FS) Option {
	return func(cfg *config) {
		cfg.templates = files
	}
}

// WithFuncs installs template functions before any template is parsed.
func WithFuncs(funcs template.FuncMap) Option {
	return func(cfg *config) {
		if len(funcs) == 0 {
			return
		}
		if cfg.funcs == nil {
			cfg.funcs = make(template.FuncMap, len(funcs))
		}
		for name, fn := range funcs {
			cfg.funcs[name] = fn
		}
	}
}

// Engine renders html/template documents behind the engine.Engine seam.
type Engine struct {
	mu      sync.RWMutex
	root    *template.Template
	funcs   template.FuncMap
	globals map[string]any
}

var (
	_ engine.Engine       = (*Engine)(nil)
	_ engine.GlobalBinder = (*Engine)(nil)
)

// New walks the template source and parses every file it finds. Parse
// failures abort construction; html/template cannot re-parse lazily without
// losing its escaping analysis.
func New(options ...Option) (*Engine, error) {
	cfg := &config{}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(cfg)
	}
	if cfg.templates == nil {
		return nil, errors.New("htmlengine: need a base dir or fs.FS")
	}

	root := template.New("echoview")
	if len(cfg.funcs) > 0 {
		root = root.Funcs(cfg.funcs)
	}

	err := fs.WalkDir(cfg.templates, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		src, err := fs.ReadFile(cfg.templates, path)
		if err != nil {
			return fmt.Errorf("read template %q: %w", path, err)
		}
		if _, err := root.New(path).Parse(string(src)); err != nil {
			return fmt.Errorf("parse template %q: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("htmlengine: load templates: %w", err)
	}

	return &Engine{root: root, funcs: cfg.funcs, globals: make(map[string]any)}, nil
}

// Render executes the template stored under name. Nothing is written to w
// on error.
func (e *Engine) Render(ctx context.Context, w io.Writer, name string, data map[string]any) error {
	if e == nil || e.root == nil {
		return errors.New("htmlengine: engine is nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tmpl := e.root.Lookup(name)
	if tmpl == nil {
		return &engine.NotFoundError{Name: name}
	}
	return e.execute(tmpl, name, w, data)
}

// RenderString parses and executes an inline template source. The inline
// template is parsed standalone: html/template freezes a set once executed,
// and inline sources cannot reference loaded templates anyway.
func (e *Engine) RenderString(ctx context.Context, w io.Writer, src string, data map[string]any) error {
	if e == nil || e.root == nil {
		return errors.New("htmlengine: engine is nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	inline := template.New("inline")
	if len(e.funcs) > 0 {
		inline = inline.Funcs(e.funcs)
	}
	tmpl, err := inline.Parse(src)
	if err != nil {
		return &engine.RenderError{Name: "inline", Err: err}
	}
	return e.execute(tmpl, "inline", w, data)
}

// SetGlobal exposes value to every template under name, overridable by
// per-render data.
func (e *Engine) SetGlobal(name string, value any) {
	if e == nil || name == "" {
		return
	}
	e.mu.Lock()
	e.globals[name] = value
	e.mu.Unlock()
}

func (e *Engine) execute(tmpl *template.Template, name string, w io.Writer, data map[string]any) error {
	e.mu.RLock()
	merged := make(map[string]any, len(e.globals)+len(data))
	for key, value := range e.globals {
		merged[key] = value
	}
	e.mu.RUnlock()
	for key, value := range data {
		merged[key] = value
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, merged); err != nil {
		return &engine.RenderError{Name: name, Err: err}
	}
	_, err := w.Write(buf.Bytes())
	return err
}
