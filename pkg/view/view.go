// Package view renders templates for Echo handlers through a pluggable
// template engine. It owns the framework side of the contract: resolving
// which template a request should render, assembling the data map from the
// stash, per-request globals, theme and translation bindings, and writing
// the response. Template compilation and execution stay behind the
// engine.Engine seam.
package view

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/autarch/echoview/internal/actionpath"
	"github.com/autarch/echoview/pkg/engine"
	"github.com/autarch/echoview/pkg/engine/pongo2engine"
	"github.com/autarch/echoview/pkg/filters"
	"github.com/autarch/echoview/pkg/stash"
)

// ErrNoTemplate reports a render with no explicit name, no stash override,
// and no matched route to derive a template from.
var ErrNoTemplate = errors.New("view: no template resolved for request")

// Translator resolves a message key for a locale. Implementations usually
// wrap a message catalog; the view exposes them to templates through the
// t(...) helper.
type Translator interface {
	Translate(locale, key string, args ...any) (string, error)
}

// View implements echo.Renderer on top of an engine.Engine. Construct it
// with New and hand it to Echo via e.Renderer, or let the middleware call
// Process after each handler.
type View struct {
	engine engine.Engine

	requestGlobals []globalSpec
	staticGlobals  map[string]any

	extension    string
	alwaysAppend bool
	charset      string
	contentType  string
	templateKey  string
	derive       func(echo.Context) string

	logger        *slog.Logger
	tracer        trace.Tracer
	translator    Translator
	defaultLocale string
	theme         *themeBinding
}

var _ echo.Renderer = (*View)(nil)

// New builds a View from options. Without WithEngine it constructs a pongo2
// engine from the templates dir or fs.FS; injected engines keep the rest of
// the options (filters, globals) applied when they support them.
func New(opts ...Option) (*View, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(cfg)
	}

	eng := cfg.engine
	if eng == nil {
		built, err := buildDefaultEngine(cfg)
		if err != nil {
			return nil, err
		}
		eng = built
	} else if cfg.templatesDir != "" || cfg.templatesFS != nil || len(cfg.engineOpts) > 0 {
		return nil, errors.New("view: WithEngine conflicts with WithTemplatesDir, WithTemplatesFS, and WithEngineOptions")
	}

	// Theme defaults or fallbacks without a selector cannot resolve anything.
	if cfg.theme != nil && cfg.theme.selector == nil {
		cfg.theme = nil
	}

	v := &View{
		engine:         eng,
		requestGlobals: cfg.requestGlobals,
		extension:      cfg.extension,
		alwaysAppend:   cfg.alwaysAppend,
		charset:        cfg.charset,
		contentType:    cfg.contentType,
		templateKey:    cfg.templateKey,
		derive:         cfg.derive,
		logger:         cfg.logger,
		tracer:         cfg.tracer,
		translator:     cfg.translator,
		defaultLocale:  cfg.defaultLocale,
		theme:          cfg.theme,
	}

	if cfg.stockFilters {
		if reg, ok := eng.(engine.FilterRegistrar); ok {
			if err := filters.Register(reg); err != nil {
				return nil, err
			}
		}
	}
	for name, fn := range cfg.filters {
		reg, ok := eng.(engine.FilterRegistrar)
		if !ok {
			return nil, fmt.Errorf("view: engine %T does not accept filters", eng)
		}
		if err := reg.RegisterFilter(name, fn); err != nil {
			return nil, fmt.Errorf("view: register filter %q: %w", name, err)
		}
	}

	if len(cfg.staticGlobals) > 0 {
		if binder, ok := eng.(engine.GlobalBinder); ok {
			for name, value := range cfg.staticGlobals {
				binder.SetGlobal(name, value)
			}
		} else {
			// Merged beneath per-request data on every render instead.
			v.staticGlobals = cfg.staticGlobals
		}
	}

	return v, nil
}

func buildDefaultEngine(cfg *config) (engine.Engine, error) {
	if cfg.templatesDir == "" && cfg.templatesFS == nil && len(cfg.engineOpts) == 0 {
		return nil, errors.New("view: need WithEngine, WithTemplatesDir, or WithTemplatesFS")
	}

	var opts []pongo2engine.Option
	if cfg.templatesDir != "" {
		opts = append(opts, pongo2engine.WithBaseDir(cfg.templatesDir))
	}
	if cfg.templatesFS != nil {
		opts = append(opts, pongo2engine.WithFS(cfg.templatesFS))
	}
	opts = append(opts, pongo2engine.WithAutoReload(cfg.autoReload))
	opts = append(opts, cfg.engineOpts...)

	eng, err := pongo2engine.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("view: build engine: %w", err)
	}
	return eng, nil
}

// Engine returns the wrapped template engine.
func (v *View) Engine() engine.Engine {
	if v == nil {
		return nil
	}
	return v.engine
}

// Render satisfies echo.Renderer. An empty name falls back to the stash
// template and then the route-derived path; nil data renders the request
// stash. Echo buffers the writer, so handler responses stay clean when the
// template fails.
func (v *View) Render(w io.Writer, name string, data any, c echo.Context) error {
	if v == nil || v.engine == nil {
		return errors.New("view: renderer not initialised")
	}

	resolved, err := v.resolveTemplate(name, c)
	if err != nil {
		return err
	}

	user, err := normalizeData(data)
	if err != nil {
		return fmt.Errorf("view: render %q: %w", resolved, err)
	}
	if user == nil && c != nil {
		user = stash.Map(c)
	}

	merged, err := v.buildData(c, user)
	if err != nil {
		return err
	}
	return v.render(w, resolved, merged, c)
}

// Process renders the template pending for the request (stash override or
// route derivation) with the stash as data, then writes it as the response
// body using the response's current status. The render is buffered, so a
// template failure leaves the response untouched for the error handler.
func (v *View) Process(c echo.Context) error {
	if v == nil || v.engine == nil {
		return errors.New("view: renderer not initialised")
	}
	if c == nil {
		return errors.New("view: process needs a request context")
	}

	resolved, err := v.resolveTemplate("", c)
	if err != nil {
		return err
	}

	merged, err := v.buildData(c, stash.Map(c))
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := v.render(&buf, resolved, merged, c); err != nil {
		return err
	}

	status := c.Response().Status
	if status == 0 {
		status = http.StatusOK
	}
	return c.Blob(status, v.responseContentType(), buf.Bytes())
}

// Middleware returns an after-handler hook that auto-renders the request
// through Process. Requests that already produced a body, committed the
// response, or ended in a bodyless status pass through untouched.
func (v *View) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := next(c); err != nil {
				return err
			}
			if !v.shouldAutoRender(c) {
				return nil
			}
			return v.Process(c)
		}
	}
}

func (v *View) shouldAutoRender(c echo.Context) bool {
	res := c.Response()
	if res.Committed || res.Size > 0 {
		return false
	}
	if c.Request().Method == http.MethodHead {
		return false
	}
	switch status := res.Status; {
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	case status >= 300 && status < 400:
		return false
	}
	return true
}

// render executes the engine call with tracing and debug logging around it.
func (v *View) render(w io.Writer, name string, data map[string]any, c echo.Context) error {
	ctx := context.Background()
	if c != nil {
		ctx = c.Request().Context()
	}

	var span trace.Span
	if v.tracer != nil {
		ctx, span = v.tracer.Start(ctx, "view.render", trace.WithAttributes(
			attribute.String("view.template", name),
			attribute.String("view.engine", fmt.Sprintf("%T", v.engine)),
		))
		defer span.End()
	}

	start := time.Now()
	err := v.engine.Render(ctx, w, name, data)

	if span != nil {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "render failed")
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
	if err != nil {
		return err
	}
	if v.logger != nil {
		v.logger.Debug("rendered template", "template", name, "elapsed", time.Since(start))
	}
	return nil
}

// resolveTemplate picks the template name for a render. Explicit names and
// stash overrides are trusted as given (extension appended only under
// WithAlwaysAppendExtension); derived names always carry the extension.
func (v *View) resolveTemplate(explicit string, c echo.Context) (string, error) {
	if name := strings.TrimSpace(explicit); name != "" {
		return v.withExtension(name, v.alwaysAppend), nil
	}
	if c == nil {
		return "", ErrNoTemplate
	}
	if name, ok := stash.GetString(c, v.templateKey); ok {
		return v.withExtension(name, v.alwaysAppend), nil
	}
	if v.derive != nil {
		if name := strings.TrimSpace(v.derive(c)); name != "" {
			return v.withExtension(name, true), nil
		}
	}
	if routePath := c.Path(); routePath != "" {
		return v.withExtension(actionpath.Derive(routePath), true), nil
	}
	return "", ErrNoTemplate
}

func (v *View) withExtension(name string, append bool) string {
	if !append || v.extension == "" || strings.HasSuffix(name, v.extension) {
		return name
	}
	return name + v.extension
}

// buildData assembles the final template data. Globals are evaluated in
// registration order, then the locale, translator, and theme bindings go in,
// and the user data overlays everything so its keys always win.
func (v *View) buildData(c echo.Context, user map[string]any) (map[string]any, error) {
	data := make(map[string]any, len(v.staticGlobals)+len(v.requestGlobals)+len(user)+3)

	for name, value := range v.staticGlobals {
		data[name] = value
	}
	if c != nil {
		for _, spec := range v.requestGlobals {
			data[spec.name] = spec.fn(c)
		}
	}

	locale := v.defaultLocale
	if c != nil {
		if l := stash.Locale(c); l != "" {
			locale = l
		}
	}
	if locale != "" || v.translator != nil {
		data["locale"] = locale
		data["t"] = v.translateFunc(locale)
	}

	if v.theme != nil && c != nil {
		themed, err := v.theme.contextValue(c)
		if err != nil {
			return nil, err
		}
		data["theme"] = themed
	}

	for key, value := range user {
		data[key] = value
	}
	return data, nil
}

// translateFunc binds the request locale into a template-callable helper.
// Lookups that fail fall back to the key itself so templates degrade to
// something greppable instead of an error page.
func (v *View) translateFunc(locale string) func(string, ...any) string {
	return func(key string, args ...any) string {
		key = strings.TrimSpace(key)
		if key == "" || v.translator == nil {
			return key
		}
		msg, err := v.translator.Translate(locale, key, args...)
		if err != nil || strings.TrimSpace(msg) == "" {
			if err != nil && v.logger != nil {
				v.logger.Debug("missing translation", "locale", locale, "key", key, "error", err)
			}
			return key
		}
		return msg
	}
}

func (v *View) responseContentType() string {
	if v.contentType != "" {
		return v.contentType
	}
	charset := v.charset
	if charset == "" {
		charset = "UTF-8"
	}
	return echo.MIMETextHTML + "; charset=" + charset
}

// normalizeData turns the data argument into a map the engine seam accepts.
// nil stays nil so the caller can substitute the stash; maps pass through;
// anything else goes through a JSON round trip, which keeps structs usable
// at the cost of losing unexported fields.
func normalizeData(data any) (map[string]any, error) {
	switch d := data.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return d, nil
	case echo.Map:
		return map[string]any(d), nil
	case map[string]string:
		out := make(map[string]any, len(d))
		for key, value := range d {
			out[key] = value
		}
		return out, nil
	default:
		raw, err := json.Marshal(d)
		if err != nil {
			return nil, fmt.Errorf("convert data %T: %w", data, err)
		}
		out := map[string]any{}
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("convert data %T: %w", data, err)
		}
		return out, nil
	}
}
