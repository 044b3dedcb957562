package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/ivtree/pkg/observability"
)

// NewStatsCommand creates the stats subcommand.
func NewStatsCommand(opts *GlobalOptions) *cobra.Command {
	var data string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show size and height of every tree in a dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, observability.ModeCLI, data, func(a *app) error {
				renderStats(cmd.OutOrStdout(), a.catalog.Stats())

				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&data, flagData, "d", "", "dataset file (.yaml, .yml or .csv)")

	return cmd
}
