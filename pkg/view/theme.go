package view

import (
	"fmt"
	"strings"

	theme "github.com/goliatone/go-theme"
	"github.com/labstack/echo/v4"

	"github.com/autarch/echoview/pkg/stash"
)

// Stash keys consulted for per-request theme overrides.
const (
	themeStashKey        = "theme"
	themeVariantStashKey = "theme_variant"
)

// themeBinding resolves a theme per render and flattens the selection into
// the "theme" template value. Selection runs on every render so stash
// overrides and registry updates take effect without rebuilding the view.
type themeBinding struct {
	selector  theme.ThemeSelector
	name      string
	variant   string
	fallbacks map[string]string
}

// contextValue selects and flattens the theme for this request. A failing
// selection fails the render; a page skinned with the wrong theme is worse
// to debug than an error page.
func (b *themeBinding) contextValue(c echo.Context) (map[string]any, error) {
	name, variant := b.name, b.variant
	if s, ok := stash.GetString(c, themeStashKey); ok {
		name = s
	}
	if s, ok := stash.GetString(c, themeVariantStashKey); ok {
		variant = s
	}

	selection, err := b.selector.Select(name, variant)
	if err != nil {
		return nil, fmt.Errorf("view: select theme %q variant %q: %w", name, variant, err)
	}
	if selection == nil {
		return nil, fmt.Errorf("view: theme selector returned no selection for %q", name)
	}
	return b.flatten(selection), nil
}

// flatten merges the manifest's base values with the selected variant's:
// variant tokens and partials override base ones, which override the
// configured fallbacks. Tokens are mirrored as --name CSS custom properties.
func (b *themeBinding) flatten(selection *theme.Selection) map[string]any {
	manifest := selection.Manifest

	var variant theme.Variant
	if manifest != nil {
		variant = manifest.Variants[selection.Variant]
	}

	tokens := make(map[string]string)
	partials := copyStringMap(b.fallbacks)
	if partials == nil {
		partials = make(map[string]string)
	}
	if manifest != nil {
		for key, value := range manifest.Tokens {
			tokens[key] = value
		}
		for key, value := range manifest.Templates {
			partials[key] = value
		}
	}
	for key, value := range variant.Tokens {
		tokens[key] = value
	}
	for key, value := range variant.Templates {
		partials[key] = value
	}

	cssVars := make(map[string]string, len(tokens))
	for key, value := range tokens {
		cssVars["--"+key] = value
	}

	return map[string]any{
		"name":      selection.Theme,
		"variant":   selection.Variant,
		"tokens":    tokens,
		"css_vars":  cssVars,
		"partials":  partials,
		"asset_url": assetResolver(manifest, variant),
	}
}

// assetResolver maps logical asset keys ("stylesheet", "vendor") to URLs.
// Variant files shadow base files; the asset prefix comes from whichever
// level declared one.
func assetResolver(manifest *theme.Manifest, variant theme.Variant) func(string) string {
	return func(key string) string {
		key = strings.TrimSpace(key)
		if key == "" {
			return ""
		}

		file, prefix := "", ""
		if manifest != nil {
			file = manifest.Assets.Files[key]
			prefix = manifest.Assets.Prefix
		}
		if f, ok := variant.Assets.Files[key]; ok {
			file = f
		}
		if variant.Assets.Prefix != "" {
			prefix = variant.Assets.Prefix
		}
		if file == "" {
			return ""
		}
		if prefix == "" {
			return file
		}
		return strings.TrimSuffix(prefix, "/") + "/" + strings.TrimPrefix(file, "/")
	}
}

func copyStringMap(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
