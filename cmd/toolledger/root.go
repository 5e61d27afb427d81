package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/guildworks/toolledger/shell"
	"github.com/guildworks/toolledger/shell/config"
)

type cliOptions struct {
	configFile string
	logLevel   string
	otelLogs   bool
	cfg        config.Config
	logger     *zap.Logger
}

func newRootCommand() *cobra.Command {
	opts := &cliOptions{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:           "toolledger",
		Short:         "Operator CLI for the tool loan ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			_ = opts.logger.Sync()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "path to a YAML config file (TOOLLEDGER_* env vars override it)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	flags.BoolVar(&opts.otelLogs, "otel-logs", false, "route contextual logs through the OpenTelemetry slog bridge")

	root.AddCommand(
		newAddToolCmd(opts),
		newRemoveToolCmd(opts),
		newBorrowCmd(opts),
		newReturnCmd(opts),
		newRevokeCmd(opts),
		newStatusCmd(opts),
		newSnapshotCmd(opts),
		newMyLoansCmd(opts),
		newAllLoansCmd(opts),
		newAllToolsCmd(opts),
		newSuggestCmd(opts),
		newLabelCmd(opts),
		newServeCmd(opts),
	)

	return root
}

func (o *cliOptions) load(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}

	logger, err := shell.NewZapLogger(cfg.LogLevel)
	if err != nil {
		return err
	}

	o.cfg = cfg
	o.logger = logger

	return nil
}
