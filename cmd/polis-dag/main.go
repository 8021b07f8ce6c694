// Package main is the entry point for the polis-dag binary: the pipeline
// HTTP service plus local run and validate commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const defaultLogLevel = "info"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	pretty     bool
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "polis-dag",
		Short: "DAG pipeline execution engine",
		Long: `polis-dag runs declarative pipelines of typed nodes.

Pipelines are DAGs: each node receives the outputs of its predecessors and
runs under a per-attempt timeout with bounded retries.

Examples:
  polis-dag serve --config config.yaml
  polis-dag run pipelines/contacts.yaml --input '"hello"'
  polis-dag validate pipelines/*.hcl`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to configuration file (YAML)")
	rootCmd.PersistentFlags().StringVarP(&flags.logLevel, "log-level", "l", "", "Log level (debug, info, warn, error); overrides the config file")
	rootCmd.PersistentFlags().BoolVar(&flags.pretty, "pretty", false, "Enable pretty console logging")

	rootCmd.AddCommand(
		newServeCmd(flags),
		newRunCmd(flags),
		newValidateCmd(flags),
		newRunnersCmd(flags),
	)
	return rootCmd
}
