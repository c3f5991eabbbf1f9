package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/autarch/echoview/pkg/config"
)

// errPromptAborted reports that the user interrupted the prompts.
var errPromptAborted = errors.New("prompt aborted")

// prompter abstracts the interactive prompts so the init flow is testable
// without a terminal.
type prompter interface {
	Input(message, defaultValue string) (string, error)
	Confirm(message string, defaultValue bool) (bool, error)
}

type surveyPrompter struct{}

func (surveyPrompter) Input(message, defaultValue string) (string, error) {
	var out string
	prompt := &survey.Input{Message: message, Default: defaultValue}
	if err := survey.AskOne(prompt, &out); err != nil {
		return "", translatePromptErr(err)
	}
	return out, nil
}

func (surveyPrompter) Confirm(message string, defaultValue bool) (bool, error) {
	var out bool
	prompt := &survey.Confirm{Message: message, Default: defaultValue}
	if err := survey.AskOne(prompt, &out); err != nil {
		return false, translatePromptErr(err)
	}
	return out, nil
}

func translatePromptErr(err error) error {
	if errors.Is(err, terminal.InterruptErr) {
		return errPromptAborted
	}
	return err
}

// newInitCommand creates the init subcommand, which writes a config file
// from interactive answers.
func newInitCommand(opts *Options) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create an echoview.yaml interactively",
		Long: "Init asks a few questions about the template setup and writes the answers\n" +
			"to the config file named by --config. Existing files are left alone unless\n" +
			"--force is set.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())

			path := opts.ConfigPath
			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("%q already exists, use --force to overwrite", path)
				}
			}

			cfg, err := askInitConfig(surveyPrompter{})
			if err != nil {
				if errors.Is(err, errPromptAborted) {
					logger.Info("init cancelled")
					return nil
				}
				return err
			}

			raw, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			if err := os.WriteFile(path, raw, 0o644); err != nil {
				return fmt.Errorf("write %q: %w", path, err)
			}

			logger.Info("wrote config", "path", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config file")

	return cmd
}

// askInitConfig collects a config from the prompter, starting at the
// defaults.
func askInitConfig(p prompter) (config.Config, error) {
	cfg := config.Default()

	dir, err := p.Input("Templates directory:", cfg.TemplatesDir)
	if err != nil {
		return cfg, err
	}
	if dir = strings.TrimSpace(dir); dir != "" {
		cfg.TemplatesDir = dir
	}

	ext, err := p.Input("Template extension:", cfg.Extension)
	if err != nil {
		return cfg, err
	}
	if ext = strings.TrimSpace(ext); ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	cfg.Extension = ext

	reload, err := p.Confirm("Recompile templates on every render (development)?", false)
	if err != nil {
		return cfg, err
	}
	cfg.AutoReload = reload

	stock, err := p.Confirm("Register the stock filter suite (sanitize, markdown, json)?", true)
	if err != nil {
		return cfg, err
	}
	cfg.StockFilters = stock

	dsn, err := p.Input("SQLite template store DSN (empty for none):", "")
	if err != nil {
		return cfg, err
	}
	cfg.DatabaseDSN = strings.TrimSpace(dsn)

	return cfg, nil
}
