// Package config holds the file- and environment-backed settings for a view
// and translates them into view options. It exists for applications that
// configure the template layer from echoview.yaml or ECHOVIEW_* variables
// instead of wiring every option in code.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/autarch/echoview/pkg/stash"
	"github.com/autarch/echoview/pkg/view"
)

// Config describes a view in data. Start from Default and layer Load and
// FromEnv on top; a zero Config is valid but carries none of the view's
// usual defaults.
type Config struct {
	// TemplatesDir is the directory templates are loaded from.
	TemplatesDir string `yaml:"templatesDir" env:"ECHOVIEW_TEMPLATES_DIR"`
	// Extension is appended to resolved template names. Empty disables
	// appending.
	Extension string `yaml:"extension" env:"ECHOVIEW_EXTENSION"`
	// AlwaysAppendExtension extends the extension policy to explicit and
	// stash-provided names, not just route-derived ones.
	AlwaysAppendExtension bool `yaml:"alwaysAppendExtension" env:"ECHOVIEW_ALWAYS_APPEND_EXTENSION"`
	// AutoReload recompiles templates on every render. Development only.
	AutoReload bool `yaml:"autoReload" env:"ECHOVIEW_AUTO_RELOAD"`
	// ContentType overrides the Content-Type header written by Process,
	// charset included. Empty derives text/html plus Charset.
	ContentType string `yaml:"contentType" env:"ECHOVIEW_CONTENT_TYPE"`
	// Charset names the charset for the derived Content-Type.
	Charset string `yaml:"charset" env:"ECHOVIEW_CHARSET"`
	// TemplateKey is the stash key consulted for per-request template
	// overrides.
	TemplateKey string `yaml:"templateKey" env:"ECHOVIEW_TEMPLATE_KEY"`
	// DefaultLocale is used when the request stash carries no locale.
	DefaultLocale string `yaml:"defaultLocale" env:"ECHOVIEW_DEFAULT_LOCALE"`
	// StockFilters registers the filters package's suite on the engine.
	StockFilters bool `yaml:"stockFilters" env:"ECHOVIEW_STOCK_FILTERS"`
	// Theme names the default theme selection. The selector itself is code
	// and arrives through view options.
	Theme ThemeConfig `yaml:"theme"`
	// Globals are fixed values exposed to every template.
	Globals map[string]any `yaml:"globals"`
	// DatabaseDSN points the engine at a SQLite template store. Options does
	// not translate it; echoview.FromConfig opens the store and wires the
	// loader.
	DatabaseDSN string `yaml:"databaseDsn" env:"ECHOVIEW_DATABASE_DSN"`
}

// ThemeConfig is the default theme and variant rendered when the stash
// carries no override.
type ThemeConfig struct {
	// Name is the theme name passed to the selector.
	Name string `yaml:"name" env:"ECHOVIEW_THEME"`
	// Variant is the variant within the theme.
	Variant string `yaml:"variant" env:"ECHOVIEW_THEME_VARIANT"`
}

// Default returns the configuration a bare view.New would apply.
func Default() Config {
	return Config{
		TemplatesDir: "templates",
		Extension:    ".html",
		Charset:      "UTF-8",
		TemplateKey:  stash.TemplateKey,
	}
}

// Load reads a YAML config file over the defaults. Keys absent from the
// file keep their Default values.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, fmt.Errorf("config: path is empty")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// FromEnv layers ECHOVIEW_* environment variables over cfg. Unset variables
// leave the given values untouched.
func FromEnv(cfg Config) (Config, error) {
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("config: parse environment: %w", err)
	}
	return cfg, nil
}

// Options translates the configuration into view options. DatabaseDSN is
// the one field left out: opening the store can fail, so it belongs to
// echoview.FromConfig.
func (c Config) Options() []view.Option {
	opts := []view.Option{
		view.WithExtension(c.Extension),
		view.WithAlwaysAppendExtension(c.AlwaysAppendExtension),
		view.WithAutoReload(c.AutoReload),
	}

	if c.TemplatesDir != "" {
		opts = append(opts, view.WithTemplatesDir(c.TemplatesDir))
	}
	if c.ContentType != "" {
		opts = append(opts, view.WithContentType(c.ContentType))
	}
	if c.Charset != "" {
		opts = append(opts, view.WithCharset(c.Charset))
	}
	if c.TemplateKey != "" {
		opts = append(opts, view.WithTemplateKey(c.TemplateKey))
	}
	if c.DefaultLocale != "" {
		opts = append(opts, view.WithDefaultLocale(c.DefaultLocale))
	}
	if c.StockFilters {
		opts = append(opts, view.WithStockFilters())
	}
	if c.Theme.Name != "" || c.Theme.Variant != "" {
		opts = append(opts, view.WithThemeDefaults(c.Theme.Name, c.Theme.Variant))
	}
	for name, value := range c.Globals {
		opts = append(opts, view.WithStaticGlobal(name, value))
	}

	return opts
}
