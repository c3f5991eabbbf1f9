package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	"github.com/autarch/echoview/internal/actionpath"
	"github.com/autarch/echoview/internal/logging"
	"github.com/autarch/echoview/pkg/engine"
	"github.com/autarch/echoview/pkg/view"
)

// newServeCommand creates the serve subcommand, a development server that
// maps request paths straight onto templates.
func newServeCommand(opts *Options) *cobra.Command {
	var (
		addr         string
		templatesDir string
		noReload     bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Preview a templates directory over HTTP",
		Long: "Serve starts a development server in front of the configured templates.\n" +
			"Request paths map straight onto template names, so GET /pages/about renders\n" +
			"pages/about plus the configured extension. Templates recompile on every\n" +
			"request unless --no-reload is set.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())

			cfg, err := loadConfig(opts.ConfigPath)
			if err != nil {
				return err
			}
			if templatesDir != "" {
				cfg.TemplatesDir = templatesDir
			}
			if !noReload {
				cfg.AutoReload = true
			}

			v, err := buildView(cfg, logger, view.WithDeriveTemplate(requestPathTemplate))
			if err != nil {
				return err
			}

			e := echo.New()
			e.HideBanner = true
			e.HidePort = true
			e.Logger.SetOutput(logging.NewWriter(logger))
			e.Renderer = v
			e.GET("/*", func(c echo.Context) error {
				if err := v.Process(c); err != nil {
					if errors.Is(err, engine.ErrNotFound) {
						return echo.NewHTTPError(http.StatusNotFound, err.Error())
					}
					return err
				}
				return nil
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := e.Shutdown(shutdownCtx); err != nil {
					logger.Warn("shutdown", "error", err)
				}
			}()

			logger.Info("previewing templates",
				"addr", addr,
				"dir", cfg.TemplatesDir,
				"autoReload", cfg.AutoReload,
			)
			if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			logger.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", ":8080", "Address to listen on")
	cmd.Flags().StringVarP(&templatesDir, "templates", "t", "", "Templates directory (overrides the configured one)")
	cmd.Flags().BoolVar(&noReload, "no-reload", false, "Serve compiled templates without recompiling per request")

	return cmd
}

// requestPathTemplate maps the request URL onto a template path so the
// preview server needs no routes. Cleaning first keeps lookups inside the
// templates directory.
func requestPathTemplate(c echo.Context) string {
	p := path.Clean("/" + strings.TrimPrefix(c.Request().URL.Path, "/"))
	return actionpath.Derive(p)
}
