package main

import (
	"github.com/spf13/cobra"

	"ledgerflow/internal/config"
	"ledgerflow/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

type globalOptions struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg config.Config
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "ledgerflow",
		Short: "Intent routing and expense reconciliation workflows",
		Long: "ledgerflow classifies chat messages into intents and reconciles\n" +
			"external expense records against the ledger.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Path to a YAML or JSON config file")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	pf.StringVar(&opts.logFormat, "log-format", "", "Log format: text or json (overrides config)")

	root.AddCommand(
		newRouteCmd(opts),
		newReconcileCmd(opts),
		newLedgerCmd(opts),
		newGraphCmd(opts),
		newServeCmd(opts),
	)
	return root
}

// load reads the config file, applies flag overrides and configures slog.
// Logs go to stderr so stdout stays machine-readable.
func (o *globalOptions) load(cmd *cobra.Command) error {
	cfg, err := config.LoadFromPath(o.configPath)
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr()); err != nil {
		return err
	}
	o.cfg = cfg
	return nil
}
