// Package main provides the entry point for the ivtree CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/ivtree/cmd/ivtree/commands"
	"github.com/Sumatoshi-tech/ivtree/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	err := newRootCommand().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &commands.GlobalOptions{}

	rootCmd := &cobra.Command{
		Use:   "ivtree",
		Short: "ivtree - augmented interval tree index",
		Long: `ivtree indexes named sets of closed integer intervals and answers
overlap queries against them.

Commands:
  query     List intervals overlapping a range
  find      Print one interval overlapping a range
  stats     Show tree sizes and heights
  verify    Check tree invariants
  bench     Benchmark the index on random data
  serve     Serve queries over HTTP`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default ./ivtree.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&opts.LogJSON, "log-json", false, "JSON log output")

	rootCmd.AddCommand(
		commands.NewQueryCommand(opts),
		commands.NewFindCommand(opts),
		commands.NewStatsCommand(opts),
		commands.NewVerifyCommand(opts),
		commands.NewBenchCommand(),
		commands.NewServeCommand(opts),
		versionCmd(),
	)

	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ivtree %s\n", version.String())
		},
	}
}
