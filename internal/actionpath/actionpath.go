// Package actionpath turns route paths into template base names. The
// mapping mirrors how handler hierarchies usually line up with template
// directories: static segments become path components, parameter and
// wildcard segments are dropped because their values vary per request.
package actionpath

import "strings"

// Root is the template base name used when a route has no static segments.
const Root = "index"

// Derive maps an Echo route path to a template base name without
// extension. "/books/list" becomes "books/list", "/users/:id/edit"
// becomes "users/edit", and "/" becomes Root.
func Derive(routePath string) string {
	segments := strings.Split(routePath, "/")

	kept := make([]string, 0, len(segments))
	for _, segment := range segments {
		if segment == "" || isDynamic(segment) {
			continue
		}
		kept = append(kept, segment)
	}
	if len(kept) == 0 {
		return Root
	}
	return strings.Join(kept, "/")
}

func isDynamic(segment string) bool {
	return strings.HasPrefix(segment, ":") || strings.HasPrefix(segment, "*")
}
