package main

import (
	"github.com/spf13/cobra"

	"github.com/guildworks/toolledger/holderlabels"
)

func newLabelCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "label",
		Short: "Manage preferred holder labels used for new loans",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set HOLDER LABEL",
			Short: "Set the preferred label of a holder",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withLabels(opts, func(labels *holderlabels.Store) error {
					if err := labels.SetLabel(cmd.Context(), args[0], args[1]); err != nil {
						return err
					}

					return writeJSON(cmd.OutOrStdout(), map[string]any{"holder_id": args[0], "label": args[1]})
				})
			},
		},
		&cobra.Command{
			Use:   "delete HOLDER",
			Short: "Clear the preferred label of a holder",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withLabels(opts, func(labels *holderlabels.Store) error {
					deleted, err := labels.DeleteLabel(cmd.Context(), args[0])
					if err != nil {
						return err
					}

					return writeJSON(cmd.OutOrStdout(), map[string]any{"holder_id": args[0], "deleted": deleted})
				})
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List every preferred label",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withLabels(opts, func(labels *holderlabels.Store) error {
					records, err := labels.All(cmd.Context())
					if err != nil {
						return err
					}

					return writeJSON(cmd.OutOrStdout(), records)
				})
			},
		},
	)

	return cmd
}

// withLabels opens only the label store, so labels can be edited without touching the ledger.
func withLabels(opts *cliOptions, fn func(labels *holderlabels.Store) error) error {
	labels, err := holderlabels.Open(opts.cfg.LabelsPath)
	if err != nil {
		return err
	}

	defer func() { _ = labels.Close() }()

	return fn(labels)
}
