package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newRunnersCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "runners",
		Short: "List the registered node types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			logger, _ := newLogger(flags, cfg, cmd.ErrOrStderr())
			registry := newExecutor(cfg, logger).Registry()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TYPE\tALIASES\tDESCRIPTION")
			for _, spec := range registry.Specs() {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", spec.Type, strings.Join(spec.Aliases, ","), spec.Description)
			}
			return tw.Flush()
		},
	}
}
