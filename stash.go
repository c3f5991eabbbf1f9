package echoview

import (
	"github.com/labstack/echo/v4"

	"github.com/autarch/echoview/pkg/stash"
)

// Stash returns the live per-request variable bag. Values put here become
// template data on the next render that carries no explicit data.
func Stash(c echo.Context) map[string]any {
	return stash.Map(c)
}

// Set stores a single value in the request stash.
func Set(c echo.Context, key string, value any) {
	stash.Set(c, key, value)
}

// SetTemplate points the request at an explicit template name, overriding
// route derivation.
func SetTemplate(c echo.Context, name string) {
	stash.SetTemplate(c, name)
}

// SetLocale records the locale translations should use for this request.
func SetLocale(c echo.Context, locale string) {
	stash.SetLocale(c, locale)
}
