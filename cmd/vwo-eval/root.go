package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/matt-riley/vwo-openfeature-provider/internal/config"
	"github.com/matt-riley/vwo-openfeature-provider/internal/logging"
)

// app carries state shared by the subcommands once the root command has
// loaded configuration.
type app struct {
	stdout io.Writer
	stderr io.Writer
	cfg    config.Config
	log    *slog.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	cmd := &cobra.Command{
		Use:   "vwo-eval",
		Short: "Resolve VWO feature flags through OpenFeature",
		Long: `vwo-eval evaluates feature flags with the VWO OpenFeature provider,
backed by a local YAML flag file.

Examples:
  vwo-eval flags --flags-file flags.yaml
  vwo-eval resolve checkout-redesign --flags-file flags.yaml --targeting-key user-1
  vwo-eval resolve checkout-redesign --type string --variable title --default "Checkout"
  vwo-eval serve --flags-file flags.yaml --http-addr :8080`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	pf := cmd.PersistentFlags()
	pf.String(config.FlagNames[config.KeyFlagsFile], "", "YAML flag file (env "+config.KeyFlagsFile+")")
	pf.String(config.FlagNames[config.KeyLogLevel], "info", "Log level: debug, info, warn, error (env "+config.KeyLogLevel+")")
	pf.String(config.FlagNames[config.KeyLogFormat], "json", "Log format: json, text (env "+config.KeyLogFormat+")")
	pf.StringP(config.FlagNames[config.KeyOutputFormat], "o", "json", "Output format: json, yaml, table (env "+config.KeyOutputFormat+")")

	cmd.AddCommand(newResolveCmd(a), newFlagsCmd(a), newServeCmd(a))
	return cmd
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg
	a.log = logging.NewWithFormat(cfg.LogLevel, cfg.LogFormat, a.stderr)
	return nil
}
