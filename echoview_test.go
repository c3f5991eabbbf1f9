package echoview_test

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/autarch/echoview"
	"github.com/autarch/echoview/pkg/engine/gormloader"
	"github.com/autarch/echoview/pkg/testsupport"
	"github.com/autarch/echoview/pkg/view"
)

func TestAutoRenderEndToEnd(t *testing.T) {
	templates := testsupport.TemplatesFS(map[string]string{
		"books.html": "<h1>{{ title }}</h1>\n<ul>{% for book in books %}<li>{{ book }}</li>{% endfor %}</ul>\n",
	})

	v, err := echoview.New(echoview.WithTemplatesFS(templates))
	if err != nil {
		t.Fatalf("new view: %v", err)
	}

	e := echo.New()
	echoview.Register(e, v)
	e.Use(echoview.Middleware(v))
	e.GET("/books", func(c echo.Context) error {
		echoview.Set(c, "title", "Books")
		echoview.Set(c, "books", []string{"Dune", "A Wizard of Earthsea"})
		return nil
	})

	req := httptest.NewRequest(http.MethodGet, "/books", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get(echo.HeaderContentType); got != "text/html; charset=UTF-8" {
		t.Fatalf("content type = %q", got)
	}

	golden := filepath.Join("testdata", "books_list.golden")
	if testsupport.WriteMaybeGolden(t, golden, rec.Body.Bytes()) {
		return
	}
	want := testsupport.MustReadGoldenString(t, golden)
	if diff := testsupport.CompareGolden(want, rec.Body.String()); diff != "" {
		t.Fatalf("body mismatch (-want +got):\n%s", diff)
	}
}

func TestExplicitRenderWithCustomFilter(t *testing.T) {
	templates := testsupport.TemplatesFS(map[string]string{
		"welcome.html": "{{ greeting|cheer }}",
	})

	v, err := echoview.New(
		echoview.WithTemplatesFS(templates),
		view.WithFilter("cheer", func(in any, _ any) (any, error) {
			return strings.ToUpper(fmt.Sprint(in)) + "!", nil
		}),
	)
	if err != nil {
		t.Fatalf("new view: %v", err)
	}

	e := echo.New()
	echoview.Register(e, v)
	e.GET("/", func(c echo.Context) error {
		return c.Render(http.StatusOK, "welcome.html", map[string]any{"greeting": "hello"})
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "HELLO!" {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestFromConfigWithTemplateStore(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "templates.db")

	store, err := gormloader.Open(dsn, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.Put("pages/about.html", "<p>{{ site_name }}: {{ body }}</p>"); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	cfg := echoview.Config{
		Extension:   ".html",
		Charset:     "UTF-8",
		TemplateKey: "template",
		Globals:     map[string]any{"site_name": "Bookshelf"},
		DatabaseDSN: dsn,
	}

	v, err := echoview.FromConfig(cfg)
	if err != nil {
		t.Fatalf("from config: %v", err)
	}

	c, _ := testsupport.NewEchoContext(t, http.MethodGet, "/about")
	out := testsupport.CaptureRender(t, func(w io.Writer) error {
		return v.Render(w, "pages/about.html", map[string]any{"body": "hand-picked reads"}, c)
	})
	if out != "<p>Bookshelf: hand-picked reads</p>" {
		t.Fatalf("output = %q", out)
	}
}

func TestStashHelpers(t *testing.T) {
	templates := testsupport.TemplatesFS(map[string]string{
		"custom.html": "{{ locale }}: {{ note }}",
	})

	v, err := echoview.New(echoview.WithTemplatesFS(templates))
	if err != nil {
		t.Fatalf("new view: %v", err)
	}

	c, rec := testsupport.NewEchoContext(t, http.MethodGet, "/anything")
	echoview.SetTemplate(c, "custom.html")
	echoview.SetLocale(c, "de")
	echoview.Set(c, "note", "merkzettel")

	if echoview.Stash(c)["note"] != "merkzettel" {
		t.Fatal("stash map does not reflect Set")
	}

	if err := v.Process(c); err != nil {
		t.Fatalf("process: %v", err)
	}
	if rec.Body.String() != "de: merkzettel" {
		t.Fatalf("body = %q", rec.Body.String())
	}
}
