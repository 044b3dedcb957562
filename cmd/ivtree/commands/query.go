package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/ivtree/pkg/observability"
)

const (
	flagData = "data"
	flagTree = "tree"
	flagLow  = "low"
	flagHigh = "high"
)

type lookupFlags struct {
	data string
	tree string
	low  uint32
	high uint32
}

func (lf *lookupFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&lf.data, flagData, "d", "", "dataset file (.yaml, .yml or .csv)")
	cmd.Flags().StringVarP(&lf.tree, flagTree, "t", "", "tree name")
	cmd.Flags().Uint32Var(&lf.low, flagLow, 0, "query low bound (inclusive)")
	cmd.Flags().Uint32Var(&lf.high, flagHigh, 0, "query high bound (inclusive)")

	for _, name := range []string{flagData, flagTree} {
		err := cmd.MarkFlagRequired(name)
		if err != nil {
			panic(err)
		}
	}
}

// NewQueryCommand creates the query subcommand.
func NewQueryCommand(opts *GlobalOptions) *cobra.Command {
	var flags lookupFlags

	cmd := &cobra.Command{
		Use:   "query",
		Short: "List every interval of a tree that overlaps [low, high]",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			return withApp(ctx, opts, observability.ModeCLI, flags.data, func(a *app) error {
				entries, err := a.catalog.Query(ctx, flags.tree, flags.low, flags.high)
				if err != nil {
					return err
				}

				renderEntries(cmd.OutOrStdout(), entries)

				return nil
			})
		},
	}

	flags.register(cmd)

	return cmd
}

// NewFindCommand creates the find subcommand.
func NewFindCommand(opts *GlobalOptions) *cobra.Command {
	var flags lookupFlags

	cmd := &cobra.Command{
		Use:   "find",
		Short: "Print one interval of a tree that overlaps [low, high]",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			return withApp(ctx, opts, observability.ModeCLI, flags.data, func(a *app) error {
				entry, ok, err := a.catalog.Find(ctx, flags.tree, flags.low, flags.high)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if !ok {
					fmt.Fprintf(out, "no interval in %q overlaps [%d, %d]\n", flags.tree, flags.low, flags.high)

					return nil
				}

				fmt.Fprintf(out, "[%d, %d] %s (handle %d)\n", entry.Low, entry.High, entry.Label, entry.Handle)

				return nil
			})
		},
	}

	flags.register(cmd)

	return cmd
}
