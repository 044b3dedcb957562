package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/ivtree/pkg/observability"
)

// ErrVerifyFailed is returned when at least one tree is corrupt.
var ErrVerifyFailed = errors.New("verification failed")

// NewVerifyCommand creates the verify subcommand.
func NewVerifyCommand(opts *GlobalOptions) *cobra.Command {
	var data string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check red-black and augmentation invariants of every tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			return withApp(ctx, opts, observability.ModeCLI, data, func(a *app) error {
				out := cmd.OutOrStdout()

				err := a.catalog.Verify(ctx)
				if err != nil {
					printFail(out, "FAIL %v\n", err)

					return errors.Join(ErrVerifyFailed, err)
				}

				printOK(out, "OK %d trees verified\n", len(a.catalog.Names()))

				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&data, flagData, "d", "", "dataset file (.yaml, .yml or .csv)")

	return cmd
}
