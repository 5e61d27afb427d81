package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/guildworks/toolledger/ledger"
	"github.com/guildworks/toolledger/loans"
)

const (
	exitCodePartialFailure = 2

	operationRevoke     = "revoke"
	operationRemoveTool = "remove_tool"
)

var errInvalidToolArg = errors.New("invalid tool argument")

// parseToolKey reads a CATEGORY/NAME argument. The name may itself contain slashes.
func parseToolKey(arg string) (ledger.ToolKey, error) {
	category, name, ok := strings.Cut(arg, "/")
	if !ok {
		return ledger.ToolKey{}, fmt.Errorf("%w: %q, expected CATEGORY/NAME", errInvalidToolArg, arg)
	}

	return ledger.BuildToolKey(category, name)
}

// parseReturnSlot reads CATEGORY, CATEGORY/NAME or the return-all token.
func parseReturnSlot(arg string) loans.ReturnSlot {
	category, name, _ := strings.Cut(arg, "/")

	return loans.ReturnSlot{Category: strings.TrimSpace(category), Name: strings.TrimSpace(name)}
}

func partialFailure(failed int) error {
	if failed == 0 {
		return nil
	}

	return exitError{code: exitCodePartialFailure, message: fmt.Sprintf("%d item(s) failed", failed)}
}

func newAddToolCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add-tool CATEGORY NAME",
		Short: "Register a new tool, creating its category if needed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := ledger.BuildToolKey(args[0], args[1])
			if err != nil {
				return err
			}

			return withApp(cmd.Context(), opts, cmd.OutOrStdout(), func(a *app) error {
				added, addErr := a.service.AddTool(cmd.Context(), key)
				if addErr != nil {
					return addErr
				}

				return writeJSON(a.out, map[string]any{"category": key.Category, "name": key.Name, "added": added})
			})
		},
	}
}

func newRemoveToolCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-tool CATEGORY NAME",
		Short: "Delete a tool; a tool on loan is returned and its holder notified",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := ledger.BuildToolKey(args[0], args[1])
			if err != nil {
				return err
			}

			return withApp(cmd.Context(), opts, cmd.OutOrStdout(), func(a *app) error {
				var removed bool

				retryErr := a.retried(cmd.Context(), operationRemoveTool, func(ctx context.Context) error {
					var removeErr error
					removed, removeErr = a.service.RemoveTool(ctx, key)

					return removeErr
				})
				if retryErr != nil {
					return retryErr
				}

				return writeJSON(a.out, map[string]any{"category": key.Category, "name": key.Name, "removed": removed})
			})
		},
	}
}

func newBorrowCmd(opts *cliOptions) *cobra.Command {
	var holder ledger.Holder

	cmd := &cobra.Command{
		Use:   "borrow CATEGORY/NAME...",
		Short: "Borrow up to three tools for a holder",
		Args:  cobra.RangeArgs(1, loans.MaxTargetsPerCall),
		RunE: func(cmd *cobra.Command, args []string) error {
			targets := make([]ledger.ToolKey, 0, len(args))
			for _, arg := range args {
				key, err := parseToolKey(arg)
				if err != nil {
					return err
				}

				targets = append(targets, key)
			}

			return withApp(cmd.Context(), opts, cmd.OutOrStdout(), func(a *app) error {
				result, err := a.service.Borrow(cmd.Context(), loans.BorrowRequest{Holder: holder, Targets: targets})
				if err != nil {
					return err
				}

				if writeErr := writeJSON(a.out, presenter{a.location}.borrow(result)); writeErr != nil {
					return writeErr
				}

				return partialFailure(len(result.Failed))
			})
		},
	}

	cmd.Flags().StringVar(&holder.ID, "holder", "", "holder id")
	cmd.Flags().StringVar(&holder.DisplayName, "name", "", "holder display name at loan time")
	_ = cmd.MarkFlagRequired("holder")

	return cmd
}

func newReturnCmd(opts *cliOptions) *cobra.Command {
	var holderID string

	cmd := &cobra.Command{
		Use:   "return SLOT...",
		Short: "Return tools; a slot is CATEGORY, CATEGORY/NAME or the return-all token",
		Args:  cobra.RangeArgs(1, loans.MaxTargetsPerCall),
		RunE: func(cmd *cobra.Command, args []string) error {
			slots := make([]loans.ReturnSlot, 0, len(args))
			for _, arg := range args {
				slots = append(slots, parseReturnSlot(arg))
			}

			return withApp(cmd.Context(), opts, cmd.OutOrStdout(), func(a *app) error {
				result, err := a.service.ReturnTools(cmd.Context(), loans.ReturnRequest{HolderID: holderID, Slots: slots})
				if err != nil {
					return err
				}

				if writeErr := writeJSON(a.out, presenter{a.location}.returned(result)); writeErr != nil {
					return writeErr
				}

				return partialFailure(len(result.Failed) + len(result.Warnings))
			})
		},
	}

	cmd.Flags().StringVar(&holderID, "holder", "", "holder id")
	_ = cmd.MarkFlagRequired("holder")

	return cmd
}

func newRevokeCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke CATEGORY NAME",
		Short: "Return a tool on behalf of its holder and notify them",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := ledger.BuildToolKey(args[0], args[1])
			if err != nil {
				return err
			}

			return withApp(cmd.Context(), opts, cmd.OutOrStdout(), func(a *app) error {
				var result loans.RevokeResult

				retryErr := a.retried(cmd.Context(), operationRevoke, func(ctx context.Context) error {
					var revokeErr error
					result, revokeErr = a.service.RevokeLoan(ctx, key)

					return revokeErr
				})
				if retryErr != nil {
					return retryErr
				}

				return writeJSON(a.out, presenter{a.location}.revoke(result))
			})
		},
	}
}

func newStatusCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status CATEGORY NAME",
		Short: "Show the current state of one tool",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := ledger.BuildToolKey(args[0], args[1])
			if err != nil {
				return err
			}

			return withApp(cmd.Context(), opts, cmd.OutOrStdout(), func(a *app) error {
				tool, found, statusErr := a.service.Status(cmd.Context(), key)
				if statusErr != nil {
					return statusErr
				}

				if !found {
					return exitError{code: 1, message: ledger.ReasonNotFound.String()}
				}

				return writeJSON(a.out, presenter{a.location}.tool(tool))
			})
		},
	}
}

func newSnapshotCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot CATEGORY",
		Short: "Show every tool of a category from the lookup cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, cmd.OutOrStdout(), func(a *app) error {
				rows, found := a.service.CategorySnapshot(strings.TrimSpace(args[0]))
				if !found {
					return exitError{code: 1, message: ledger.ReasonNotFound.String()}
				}

				return writeJSON(a.out, presenter{a.location}.snapshot(rows))
			})
		},
	}
}

func newMyLoansCmd(opts *cliOptions) *cobra.Command {
	var holderID string

	cmd := &cobra.Command{
		Use:   "my-loans",
		Short: "List the active loans of a holder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, cmd.OutOrStdout(), func(a *app) error {
				tools, err := a.service.MyLoans(cmd.Context(), holderID)
				if err != nil {
					return err
				}

				return writeJSON(a.out, presenter{a.location}.tools(tools))
			})
		},
	}

	cmd.Flags().StringVar(&holderID, "holder", "", "holder id")
	_ = cmd.MarkFlagRequired("holder")

	return cmd
}

func newAllLoansCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "all-loans",
		Short: "List every active loan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, cmd.OutOrStdout(), func(a *app) error {
				reports, err := a.service.AllLoans(cmd.Context())
				if err != nil {
					return err
				}

				return writeJSON(a.out, presenter{a.location}.loanReports(reports))
			})
		},
	}
}

func newAllToolsCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "all-tools",
		Short: "List the whole inventory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, cmd.OutOrStdout(), func(a *app) error {
				tools, err := a.service.AllTools(cmd.Context())
				if err != nil {
					return err
				}

				return writeJSON(a.out, presenter{a.location}.tools(tools))
			})
		},
	}
}

func newSuggestCmd(opts *cliOptions) *cobra.Command {
	var category, holderID, filter string

	cmd := &cobra.Command{
		Use:       "suggest KIND",
		Short:     "Print completion candidates from the lookup cache",
		Long:      "KIND is one of categories, available, held, loaned, names, holder-categories.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"categories", "available", "held", "loaned", "names", "holder-categories"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, cmd.OutOrStdout(), func(a *app) error {
				suggestions := a.service.Suggestions()

				var candidates []string

				switch args[0] {
				case "categories":
					candidates = suggestions.Categories(filter)
				case "available":
					candidates = suggestions.AvailableNames(category, filter)
				case "held":
					candidates = suggestions.HeldNames(category, holderID, filter)
				case "loaned":
					candidates = suggestions.LoanedNames(category, filter)
				case "names":
					candidates = suggestions.Names(category, filter)
				case "holder-categories":
					candidates = suggestions.HolderCategories(holderID, filter)
				default:
					return fmt.Errorf("unknown suggestion kind %q", args[0])
				}

				if candidates == nil {
					candidates = []string{}
				}

				return writeJSON(a.out, candidates)
			})
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "category to complete names in")
	cmd.Flags().StringVar(&holderID, "holder", "", "holder id for held and holder-categories")
	cmd.Flags().StringVar(&filter, "filter", "", "case-sensitive substring filter")

	return cmd
}
