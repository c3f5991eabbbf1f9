package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// newRenderCommand creates the render subcommand, which executes a single
// template outside of any HTTP request.
func newRenderCommand(opts *Options) *cobra.Command {
	var (
		inline       string
		templatesDir string
		dataFiles    []string
		vars         []string
		withEnv      bool
		envFiles     []string
		outPath      string
	)

	cmd := &cobra.Command{
		Use:   "render [template]",
		Short: "Render a template to stdout or a file",
		Long: "Render executes one template with the engine, filters, and data rules the\n" +
			"library applies inside an Echo application. Data comes from YAML or JSON\n" +
			"files, --var key=value pairs, and optionally the process environment under\n" +
			"the \"env\" key. Template names resolve against the configured templates\n" +
			"directory; --string renders an inline source instead.",
		Example: "  echoview render pages/home.html --data site.yaml --var title=Home\n" +
			"  echoview render --string '{{ user | upper }}' --var user=ada\n" +
			"  echoview render emails/welcome.html --env-file .env --out welcome.html",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := LoggerFromContext(cmd.Context())

			name := ""
			if len(args) > 0 {
				name = args[0]
			}
			if name == "" && inline == "" {
				return errors.New("render needs a template name or --string")
			}
			if name != "" && inline != "" {
				return errors.New("--string conflicts with a template name argument")
			}

			cfg, err := loadConfig(opts.ConfigPath)
			if err != nil {
				return err
			}
			if templatesDir != "" {
				cfg.TemplatesDir = templatesDir
			}
			// Inline sources render without a templates directory; includes
			// then resolve against the working directory.
			if inline != "" && cfg.DatabaseDSN == "" {
				if _, statErr := os.Stat(cfg.TemplatesDir); statErr != nil {
					cfg.TemplatesDir = "."
				}
			}

			data, err := assembleData(dataFiles, vars, withEnv, envFiles)
			if err != nil {
				return err
			}

			v, err := buildView(cfg, logger)
			if err != nil {
				return err
			}

			// Buffer the render so a template error leaves the output file
			// or terminal untouched.
			var buf bytes.Buffer
			if inline != "" {
				err = v.Engine().RenderString(cmd.Context(), &buf, inline, data)
			} else {
				err = v.Render(&buf, name, data, nil)
			}
			if err != nil {
				return err
			}

			if outPath == "" {
				_, err := buf.WriteTo(cmd.OutOrStdout())
				return err
			}
			if err := os.WriteFile(outPath, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write %q: %w", outPath, err)
			}
			logger.Info("rendered template", "out", outPath, "bytes", buf.Len())
			return nil
		},
	}

	cmd.Flags().StringVarP(&inline, "string", "s", "", "Inline template source to render instead of a named template")
	cmd.Flags().StringVarP(&templatesDir, "templates", "t", "", "Templates directory (overrides the configured one)")
	cmd.Flags().StringArrayVarP(&dataFiles, "data", "d", nil, "YAML or JSON data file, may be repeated; later files win")
	cmd.Flags().StringArrayVar(&vars, "var", nil, "key=value data pair, may be repeated; wins over --data files")
	cmd.Flags().BoolVar(&withEnv, "env", false, "Expose the process environment to the template under \"env\"")
	cmd.Flags().StringArrayVar(&envFiles, "env-file", nil, "Dotenv file layered over the process environment under \"env\"")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write the output to a file instead of stdout")

	return cmd
}
