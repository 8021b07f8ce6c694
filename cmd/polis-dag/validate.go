package main

import (
	"errors"
	"fmt"

	"github.com/polisai/polis-dag/pkg/engine"
	"github.com/polisai/polis-dag/pkg/pipelinefile"
	"github.com/spf13/cobra"
)

func newValidateCmd(flags *globalFlags) *cobra.Command {
	var showPlan bool
	cmd := &cobra.Command{
		Use:   "validate FILE...",
		Short: "Check pipeline files without running them",
		Long: `Parses each file and plans it against the built-in runners: graph
structure, node types, engine settings and runner config are all checked.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			logger, _ := newLogger(flags, cfg, cmd.ErrOrStderr())
			executor := newExecutor(cfg, logger)

			var failed []error
			for _, path := range args {
				plan, err := validateFile(executor, path)
				if err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s: %v\n", path, err)
					failed = append(failed, fmt.Errorf("%s: %w", path, err))
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ok   %s (%s, %d nodes)\n", path, plan.Name, len(plan.Order))
				if showPlan {
					if err := printJSON(cmd.OutOrStdout(), plan); err != nil {
						return err
					}
				}
			}
			if len(failed) > 0 {
				return fmt.Errorf("%d of %d pipeline files invalid: %w", len(failed), len(args), errors.Join(failed...))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showPlan, "plan", false, "Print the execution plan of each valid file")
	return cmd
}

func validateFile(executor *engine.Executor, path string) (*engine.Plan, error) {
	def, err := pipelinefile.Load(path)
	if err != nil {
		return nil, err
	}
	return executor.Plan(def, "")
}
