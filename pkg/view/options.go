package view

import (
	"io/fs"
	"log/slog"
	"strings"

	theme "github.com/goliatone/go-theme"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/trace"

	"github.com/autarch/echoview/pkg/engine"
	"github.com/autarch/echoview/pkg/engine/pongo2engine"
	"github.com/autarch/echoview/pkg/stash"
)

// Option configures a View before construction.
type Option func(*config)

// GlobalFunc derives a per-request value that is merged beneath the render
// data on every render.
type GlobalFunc func(echo.Context) any

type globalSpec struct {
	name string
	fn   GlobalFunc
}

type config struct {
	engine        engine.Engine
	templatesDir  string
	templatesFS   fs.FS
	autoReload    bool
	engineOpts    []pongo2engine.Option
	filters       map[string]engine.FilterFunc
	stockFilters  bool
	staticGlobals map[string]any

	requestGlobals []globalSpec

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

func defaultConfig() *config {
	return &config{
		extension:   ".html",
		charset:     "UTF-8",
		templateKey: stash.TemplateKey,
	}
}

// WithEngine injects a prebuilt engine instead of the default pongo2 one.
// Conflicts with WithTemplatesDir and WithTemplatesFS.
func WithEngine(e engine.Engine) Option {
	return func(cfg *config) {
		cfg.engine = e
	}
}

// WithTemplatesDir points the default engine at a directory on disk.
func WithTemplatesDir(dir string) Option {
	return func(cfg *config) {
		cfg.templatesDir = strings.TrimSpace(dir)
	}
}

// WithTemplatesFS points the default engine at an fs.FS, typically an
// embed.FS in production binaries.
func WithTemplatesFS(files fs.FS) Option {
	return func(cfg *config) {
		cfg.templatesFS = files
	}
}

// WithAutoReload recompiles templates on every render so edits show up
// without a restart. Development only.
func WithAutoReload(enabled bool) Option {
	return func(cfg *config) {
		cfg.autoReload = enabled
	}
}

// WithEngineOptions forwards extra construction options to the default
// pongo2 engine, for example a database-backed template loader. Conflicts
// with WithEngine the same way the template-source options do.
func WithEngineOptions(opts ...pongo2engine.Option) Option {
	return func(cfg *config) {
		for _, opt := range opts {
			if opt != nil {
				cfg.engineOpts = append(cfg.engineOpts, opt)
			}
		}
	}
}

// WithFilter exposes fn to templates under name, alongside the stock
// filter suite.
func WithFilter(name string, fn engine.FilterFunc) Option {
	return func(cfg *config) {
		name = strings.TrimSpace(name)
		if name == "" || fn == nil {
			return
		}
		if cfg.filters == nil {
			cfg.filters = make(map[string]engine.FilterFunc)
		}
		cfg.filters[name] = fn
	}
}

// WithStockFilters registers the filters package's suite (sanitize,
// markdown, json) on engines that accept filters. Safe to combine with a
// second view in the same process; already-known names are skipped.
func WithStockFilters() Option {
	return func(cfg *config) {
		cfg.stockFilters = true
	}
}

// WithExtension sets the file extension appended to resolved template
// names. The empty string disables appending entirely.
func WithExtension(ext string) Option {
	return func(cfg *config) {
		ext = strings.TrimSpace(ext)
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		cfg.extension = ext
	}
}

// WithAlwaysAppendExtension extends the extension policy to explicit and
// stash-provided names. Route-derived names always get the extension.
func WithAlwaysAppendExtension(always bool) Option {
	return func(cfg *config) {
		cfg.alwaysAppend = always
	}
}

// WithStaticGlobal exposes a fixed value to every template.
func WithStaticGlobal(name string, value any) Option {
	return func(cfg *config) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		if cfg.staticGlobals == nil {
			cfg.staticGlobals = make(map[string]any)
		}
		cfg.staticGlobals[name] = value
	}
}

// WithGlobal evaluates fn on every request and merges the result beneath
// the render data under name. Later registrations win at the same name;
// stash and explicit data win over globals.
func WithGlobal(name string, fn GlobalFunc) Option {
	return func(cfg *config) {
		name = strings.TrimSpace(name)
		if name == "" || fn == nil {
			return
		}
		cfg.requestGlobals = append(cfg.requestGlobals, globalSpec{name: name, fn: fn})
	}
}

// WithCharset sets the charset used in the Content-Type header written by
// Process. Defaults to UTF-8.
func WithCharset(charset string) Option {
	return func(cfg *config) {
		if charset = strings.TrimSpace(charset); charset != "" {
			cfg.charset = charset
		}
	}
}

// WithContentType overrides the full Content-Type header written by
// Process, charset included.
func WithContentType(contentType string) Option {
	return func(cfg *config) {
		cfg.contentType = strings.TrimSpace(contentType)
	}
}

// WithTemplateKey changes the stash key consulted for per-request
// template overrides. Defaults to "template".
func WithTemplateKey(key string) Option {
	return func(cfg *config) {
		if key = strings.TrimSpace(key); key != "" {
			cfg.templateKey = key
		}
	}
}

// WithDeriveTemplate installs a custom route-to-template mapping consulted
// before the built-in path derivation. Returning "" falls through.
func WithDeriveTemplate(fn func(echo.Context) string) Option {
	return func(cfg *config) {
		cfg.derive = fn
	}
}

// WithLogger attaches a logger for render diagnostics. Without one the
// view stays silent.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithTracer wraps every render in a span on the given tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(cfg *config) {
		cfg.tracer = tracer
	}
}

// WithTranslator makes translations available to templates through the
// t(...) helper and the locale value.
func WithTranslator(t Translator) Option {
	return func(cfg *config) {
		cfg.translator = t
	}
}

// WithDefaultLocale sets the locale used when the request stash carries
// none.
func WithDefaultLocale(locale string) Option {
	return func(cfg *config) {
		cfg.defaultLocale = strings.TrimSpace(locale)
	}
}

// WithThemeSelector resolves a theme per render and exposes the flattened
// selection to templates as the "theme" value. The stash keys "theme" and
// "theme_variant" override the defaults per request. Empty name or variant
// keep whatever WithThemeDefaults already set.
func WithThemeSelector(selector theme.ThemeSelector, name, variant string) Option {
	return func(cfg *config) {
		if selector == nil {
			return
		}
		if cfg.theme == nil {
			cfg.theme = &themeBinding{}
		}
		cfg.theme.selector = selector
		if name = strings.TrimSpace(name); name != "" {
			cfg.theme.name = name
		}
		if variant = strings.TrimSpace(variant); variant != "" {
			cfg.theme.variant = variant
		}
	}
}

// WithThemeDefaults sets the theme and variant used when the stash carries
// no override. Without a WithThemeSelector the defaults are inert; that lets
// configuration files state them before code supplies the selector.
func WithThemeDefaults(name, variant string) Option {
	return func(cfg *config) {
		if cfg.theme == nil {
			cfg.theme = &themeBinding{}
		}
		if name = strings.TrimSpace(name); name != "" {
			cfg.theme.name = name
		}
		if variant = strings.TrimSpace(variant); variant != "" {
			cfg.theme.variant = variant
		}
	}
}

// WithThemeFallbacks seeds partial paths used when the selected theme
// does not override them.
func WithThemeFallbacks(partials map[string]string) Option {
	return func(cfg *config) {
		if len(partials) == 0 {
			return
		}
		if cfg.theme == nil {
			cfg.theme = &themeBinding{}
		}
		if cfg.theme.fallbacks == nil {
			cfg.theme.fallbacks = make(map[string]string, len(partials))
		}
		for key, value := range partials {
			cfg.theme.fallbacks[key] = value
		}
	}
}
