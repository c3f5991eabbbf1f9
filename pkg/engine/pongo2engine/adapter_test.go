package pongo2engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/autarch/echoview/pkg/engine"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"pages/home.html": &fstest.MapFile{
			Data: []byte("<h1>{{ title }}</h1>"),
		},
		"pages/globals.html": &fstest.MapFile{
			Data: []byte("{{ site }} / {{ title }}"),
		},
		"pages/broken.html": &fstest.MapFile{
			Data: []byte("{% include \"pages/missing.html\" %}"),
		},
	}
}

func newTestEngine(t *testing.T, options ...Option) *Engine {
	t.Helper()
	eng, err := New(append([]Option{WithFS(testFS())}, options...)...)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return eng
}

func TestNewRequiresTemplateSource(t *testing.T) {
	if _, err := New(); err == nil {
		t.Fatal("expected error when no loader configured")
	}
}

func TestRender(t *testing.T) {
	eng := newTestEngine(t)

	var buf bytes.Buffer
	err := eng.Render(context.Background(), &buf, "pages/home.html", map[string]any{"title": "Home"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got := buf.String(); got != "<h1>Home</h1>" {
		t.Fatalf("output = %q", got)
	}
}

func TestRenderMissingTemplate(t *testing.T) {
	eng := newTestEngine(t)

	err := eng.Render(context.Background(), io.Discard, "pages/nope.html", nil)
	if err == nil {
		t.Fatal("expected error for missing template")
	}
	if !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expected engine.ErrNotFound, got %v", err)
	}

	var notFound *engine.NotFoundError
	if !errors.As(err, &notFound) || notFound.Name != "pages/nope.html" {
		t.Fatalf("expected NotFoundError with name, got %v", err)
	}
}

// Includes resolve while the template compiles, so a template that exists
// but points at a missing include must fail as a render error, not as a
// missing template.
func TestRenderBrokenInclude(t *testing.T) {
	eng := newTestEngine(t)

	var buf bytes.Buffer
	err := eng.Render(context.Background(), &buf, "pages/broken.html", nil)
	if err == nil {
		t.Fatal("expected error for broken include")
	}

	var renderErr *engine.RenderError
	if !errors.As(err, &renderErr) {
		t.Fatalf("expected RenderError, got %T: %v", err, err)
	}
	if errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("broken include must not report the template as missing: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("partial output written: %q", buf.String())
	}
}

func TestRenderString(t *testing.T) {
	eng := newTestEngine(t)

	var buf bytes.Buffer
	err := eng.RenderString(context.Background(), &buf, "Hello {{ name }}!", map[string]any{"name": "Ana"})
	if err != nil {
		t.Fatalf("render string: %v", err)
	}
	if got := buf.String(); got != "Hello Ana!" {
		t.Fatalf("output = %q", got)
	}
}

func TestRenderStringSyntaxError(t *testing.T) {
	eng := newTestEngine(t)

	err := eng.RenderString(context.Background(), io.Discard, "{% if %}", nil)
	var renderErr *engine.RenderError
	if !errors.As(err, &renderErr) {
		t.Fatalf("expected RenderError for bad syntax, got %v", err)
	}
}

func TestRenderHonoursContextCancellation(t *testing.T) {
	eng := newTestEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := eng.Render(ctx, io.Discard, "pages/home.html", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestGlobals(t *testing.T) {
	eng := newTestEngine(t, WithGlobals(map[string]any{"site": "echoview"}))

	var buf bytes.Buffer
	err := eng.Render(context.Background(), &buf, "pages/globals.html", map[string]any{"title": "Docs"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got := buf.String(); got != "echoview / Docs" {
		t.Fatalf("output = %q", got)
	}

	eng.SetGlobal("site", "updated")
	buf.Reset()
	if err := eng.Render(context.Background(), &buf, "pages/globals.html", map[string]any{"title": "Docs"}); err != nil {
		t.Fatalf("render after SetGlobal: %v", err)
	}
	if got := buf.String(); got != "updated / Docs" {
		t.Fatalf("output = %q", got)
	}
}

func TestDataShadowsGlobals(t *testing.T) {
	eng := newTestEngine(t, WithGlobals(map[string]any{"site": "global"}))

	var buf bytes.Buffer
	err := eng.Render(context.Background(), &buf, "pages/globals.html", map[string]any{
		"site":  "request",
		"title": "Docs",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got := buf.String(); got != "request / Docs" {
		t.Fatalf("per-render data should win over globals, got %q", got)
	}
}

// Filter registration is process-wide in pongo2, so every test filter name
// carries a package prefix to stay out of other tests' way.

func TestRegisterFilter(t *testing.T) {
	eng := newTestEngine(t)

	err := eng.RegisterFilter("p2test_shout", func(in any, _ any) (any, error) {
		return strings.ToUpper(fmt.Sprint(in)) + "!", nil
	})
	if err != nil {
		t.Fatalf("register filter: %v", err)
	}

	var buf bytes.Buffer
	err = eng.RenderString(context.Background(), &buf, "{{ word|p2test_shout }}", map[string]any{"word": "hi"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got := buf.String(); got != "HI!" {
		t.Fatalf("output = %q", got)
	}
}

func TestRegisterFilterWithParam(t *testing.T) {
	eng := newTestEngine(t)

	err := eng.RegisterFilter("p2test_repeat", func(in any, param any) (any, error) {
		count, ok := param.(int)
		if !ok || count < 1 {
			count = 1
		}
		return strings.Repeat(fmt.Sprint(in), count), nil
	})
	if err != nil {
		t.Fatalf("register filter: %v", err)
	}

	var buf bytes.Buffer
	err = eng.RenderString(context.Background(), &buf, "{{ word|p2test_repeat:3 }}", map[string]any{"word": "ab"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got := buf.String(); got != "ababab" {
		t.Fatalf("output = %q", got)
	}
}

func TestRegisterFilterDuplicate(t *testing.T) {
	eng := newTestEngine(t)

	fn := func(in any, _ any) (any, error) { return in, nil }
	if err := eng.RegisterFilter("p2test_dup", fn); err != nil {
		t.Fatalf("first registration: %v", err)
	}

	err := eng.RegisterFilter("p2test_dup", fn)
	if !errors.Is(err, engine.ErrFilterExists) {
		t.Fatalf("expected ErrFilterExists, got %v", err)
	}
}

func TestFilterErrorSurfacesAsRenderError(t *testing.T) {
	eng := newTestEngine(t)

	if err := eng.RegisterFilter("p2test_fail", func(any, any) (any, error) {
		return nil, errors.New("nope")
	}); err != nil {
		t.Fatalf("register filter: %v", err)
	}

	err := eng.RenderString(context.Background(), io.Discard, "{{ x|p2test_fail }}", map[string]any{"x": 1})
	var renderErr *engine.RenderError
	if !errors.As(err, &renderErr) {
		t.Fatalf("expected RenderError, got %v", err)
	}
}

// countingLoader hands out sources from a map and counts lookups so tests
// can observe compiled-template caching.
type countingLoader struct {
	mu    sync.Mutex
	files map[string]string
	gets  map[string]int
}

func newCountingLoader(files map[string]string) *countingLoader {
	return &countingLoader{files: files, gets: make(map[string]int)}
}

func (l *countingLoader) Abs(_, name string) string { return name }

func (l *countingLoader) Get(path string) (io.Reader, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gets[path]++
	src, ok := l.files[path]
	if !ok {
		return nil, fmt.Errorf("template %q: %w", path, fs.ErrNotExist)
	}
	return strings.NewReader(src), nil
}

func (l *countingLoader) count(path string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gets[path]
}

func TestTemplateCache(t *testing.T) {
	loader := newCountingLoader(map[string]string{"cached.html": "v"})
	eng, err := New(WithLoader(loader))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	for range 3 {
		if err := eng.Render(context.Background(), io.Discard, "cached.html", nil); err != nil {
			t.Fatalf("render: %v", err)
		}
	}
	if got := loader.count("cached.html"); got != 1 {
		t.Fatalf("expected a single loader hit, got %d", got)
	}
}

func TestAutoReloadBypassesCache(t *testing.T) {
	loader := newCountingLoader(map[string]string{"live.html": "before"})
	eng, err := New(WithLoader(loader), WithAutoReload(true))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	var buf bytes.Buffer
	if err := eng.Render(context.Background(), &buf, "live.html", nil); err != nil {
		t.Fatalf("render: %v", err)
	}
	if buf.String() != "before" {
		t.Fatalf("output = %q", buf.String())
	}

	loader.mu.Lock()
	loader.files["live.html"] = "after"
	loader.mu.Unlock()

	buf.Reset()
	if err := eng.Render(context.Background(), &buf, "live.html", nil); err != nil {
		t.Fatalf("render after edit: %v", err)
	}
	if buf.String() != "after" {
		t.Fatalf("expected reloaded source, got %q", buf.String())
	}
	if got := loader.count("live.html"); got != 2 {
		t.Fatalf("expected loader hit per render, got %d", got)
	}
}

func TestCustomLoaderNotFoundMapping(t *testing.T) {
	loader := newCountingLoader(map[string]string{})
	eng, err := New(WithLoader(loader))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	renderErr := eng.Render(context.Background(), io.Discard, "ghost.html", nil)
	if !errors.Is(renderErr, engine.ErrNotFound) {
		t.Fatalf("expected ErrNotFound through custom loader, got %v", renderErr)
	}
}
