// Package filters ships the stock template filters the view registers on
// engines that accept them: HTML sanitisation, markdown rendering, and JSON
// encoding. Filters return plain strings; under pongo2's autoescaping the
// template author decides trust by chaining |safe, e.g. {{ body|markdown|safe }}.
package filters

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gomarkdown/markdown"
	"github.com/microcosm-cc/bluemonday"

	"github.com/autarch/echoview/pkg/engine"
)

var (
	policyOnce   sync.Once
	ugcPolicy    *bluemonday.Policy
	strictPolicy *bluemonday.Policy
)

func policies() (*bluemonday.Policy, *bluemonday.Policy) {
	policyOnce.Do(func() {
		ugcPolicy = bluemonday.UGCPolicy()
		strictPolicy = bluemonday.StrictPolicy()
	})
	return ugcPolicy, strictPolicy
}

// Builtin returns the stock filter set keyed by template-facing name.
func Builtin() map[string]engine.FilterFunc {
	return map[string]engine.FilterFunc{
		"sanitize":        Sanitize,
		"sanitize_strict": SanitizeStrict,
		"markdown":        Markdown,
		"json":            JSON,
	}
}

// Register installs the stock filters on r. Names the engine already knows
// are left alone, so registering twice in one process is safe.
func Register(r engine.FilterRegistrar) error {
	if r == nil {
		return nil
	}
	for name, fn := range Builtin() {
		err := r.RegisterFilter(name, fn)
		if err != nil && !errors.Is(err, engine.ErrFilterExists) {
			return fmt.Errorf("filters: register %q: %w", name, err)
		}
	}
	return nil
}

// Sanitize strips markup down to the user-generated-content policy:
// common formatting tags survive, scripts and event handlers do not.
func Sanitize(in any, _ any) (any, error) {
	ugc, _ := policies()
	return strings.TrimSpace(ugc.Sanitize(stringify(in))), nil
}

// SanitizeStrict removes every tag, leaving text content only.
func SanitizeStrict(in any, _ any) (any, error) {
	_, strict := policies()
	return strings.TrimSpace(strict.Sanitize(stringify(in))), nil
}

// Markdown renders markdown source to HTML and passes the result through
// the user-generated-content policy so embedded raw HTML cannot smuggle
// scripts in.
func Markdown(in any, _ any) (any, error) {
	src := stringify(in)
	if strings.TrimSpace(src) == "" {
		return "", nil
	}
	rendered := markdown.ToHTML([]byte(src), nil, nil)
	ugc, _ := policies()
	return ugc.Sanitize(string(rendered)), nil
}

// JSON encodes the value as JSON. A string parameter selects indented
// output with that indent, e.g. {{ payload|json:"  " }}.
func JSON(in any, param any) (any, error) {
	indent, _ := param.(string)

	var (
		out []byte
		err error
	)
	if indent != "" {
		out, err = json.MarshalIndent(in, "", indent)
	} else {
		out, err = json.Marshal(in)
	}
	if err != nil {
		return nil, fmt.Errorf("filters: encode json: %w", err)
	}
	return string(out), nil
}

func stringify(in any) string {
	switch v := in.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
