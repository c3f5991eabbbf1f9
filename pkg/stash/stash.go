// Package stash carries per-request view variables on the echo.Context.
// Handlers fill the stash as they work; at render time the whole bag
// becomes the template data. The bag lives under a module-scoped context
// key so it never collides with other middleware state.
package stash

import "github.com/labstack/echo/v4"

// Reserved keys the view layer reads back out of the stash.
const (
	// TemplateKey overrides the derived template name for the request.
	TemplateKey = "template"
	// LocaleKey selects the translation locale for the request.
	LocaleKey = "locale"
)

const contextKey = "github.com/autarch/echoview/stash"

// Map returns the live stash for the request, creating it on first use.
// Mutations are visible to every later caller in the same request.
func Map(c echo.Context) map[string]any {
	if existing, ok := c.Get(contextKey).(map[string]any); ok {
		return existing
	}
	created := make(map[string]any)
	c.Set(contextKey, created)
	return created
}

// Set stores value under key in the request stash.
func Set(c echo.Context, key string, value any) {
	Map(c)[key] = value
}

// Get reads key from the request stash.
func Get(c echo.Context, key string) (any, bool) {
	value, ok := Map(c)[key]
	return value, ok
}

// GetString reads key and reports whether it held a non-empty string.
func GetString(c echo.Context, key string) (string, bool) {
	value, ok := Map(c)[key]
	if !ok {
		return "", false
	}
	s, ok := value.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// Merge copies values into the request stash, overwriting existing keys.
func Merge(c echo.Context, values map[string]any) {
	if len(values) == 0 {
		return
	}
	bag := Map(c)
	for key, value := range values {
		bag[key] = value
	}
}

// SetTemplate points the request at an explicit template name.
func SetTemplate(c echo.Context, name string) {
	Set(c, TemplateKey, name)
}

// Template returns the stash's template override, if one was set.
func Template(c echo.Context) (string, bool) {
	return GetString(c, TemplateKey)
}

// SetLocale records the locale translations should use for this request.
func SetLocale(c echo.Context, locale string) {
	Set(c, LocaleKey, locale)
}

// Locale returns the request locale, or "" when none was set.
func Locale(c echo.Context) string {
	locale, _ := GetString(c, LocaleKey)
	return locale
}
