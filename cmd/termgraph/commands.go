package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/sanonone/termgraph/internal/app"
	"github.com/sanonone/termgraph/internal/config"
)

// globals holds the persistent flags shared by every subcommand.
type globals struct {
	configPath string
	apiKey     string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:   "termgraph",
		Short: "Find UMLS definitions by walking the concept graph",
		Long: `termgraph looks up textual definitions for UMLS concepts. When a concept
has none, it walks synonym and hierarchy relations breadth-first and returns
the closest concepts that do.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "path to a YAML config file")
	pf.StringVar(&g.apiKey, "api-key", "", "UMLS API key (overrides "+config.EnvAPIKey+")")
	pf.StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&g.logFormat, "log-format", "", "log format: text or json")

	root.AddCommand(
		newSearchCmd(g),
		newFindCmd(g),
		newServeCmd(g),
		newMCPCmd(g),
		newCacheCmd(g),
	)
	return root
}

// load reads the config file and applies the global flag overrides.
func (g *globals) load(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return cfg, nil, err
	}
	if g.apiKey != "" {
		cfg.UMLS.APIKey = g.apiKey
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if g.logFormat != "" {
		cfg.Log.Format = g.logFormat
	}
	logger, err := config.NewLoggerTo(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, logger, nil
}

// open builds the App. The caller must Close it.
func (g *globals) open(cmd *cobra.Command) (*app.App, error) {
	cfg, logger, err := g.load(cmd)
	if err != nil {
		return nil, err
	}
	return app.New(cfg, logger)
}

// printJSON writes v to w, indented when w is a terminal.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
