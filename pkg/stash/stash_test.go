package stash

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/labstack/echo/v4"
)

func newContext(t *testing.T) echo.Context {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec)
}

func TestSetAndGet(t *testing.T) {
	c := newContext(t)

	Set(c, "title", "Home")

	got, ok := Get(c, "title")
	if !ok {
		t.Fatal("expected title to be present")
	}
	if got != "Home" {
		t.Fatalf("got %v, want Home", got)
	}

	if _, ok := Get(c, "missing"); ok {
		t.Fatal("expected missing key to report absent")
	}
}

func TestMapIsLive(t *testing.T) {
	c := newContext(t)

	Map(c)["count"] = 1
	Map(c)["count"] = 2

	got, _ := Get(c, "count")
	if got != 2 {
		t.Fatalf("expected later write to win, got %v", got)
	}
}

func TestMerge(t *testing.T) {
	c := newContext(t)

	Set(c, "a", 1)
	Merge(c, map[string]any{"a": 10, "b": 2})

	want := map[string]any{"a": 10, "b": 2}
	if diff := cmp.Diff(want, Map(c)); diff != "" {
		t.Fatalf("stash mismatch (-want +got):\n%s", diff)
	}
}

func TestTemplateOverride(t *testing.T) {
	c := newContext(t)

	if _, ok := Template(c); ok {
		t.Fatal("expected no template override initially")
	}

	SetTemplate(c, "books/list.html")

	name, ok := Template(c)
	if !ok || name != "books/list.html" {
		t.Fatalf("got (%q, %v), want (books/list.html, true)", name, ok)
	}
}

func TestTemplateIgnoresNonStringValue(t *testing.T) {
	c := newContext(t)

	Set(c, TemplateKey, 42)

	if _, ok := Template(c); ok {
		t.Fatal("expected non-string template value to be ignored")
	}
}

func TestLocale(t *testing.T) {
	c := newContext(t)

	if got := Locale(c); got != "" {
		t.Fatalf("expected empty locale, got %q", got)
	}

	SetLocale(c, "de-DE")
	if got := Locale(c); got != "de-DE" {
		t.Fatalf("got %q, want de-DE", got)
	}
}
