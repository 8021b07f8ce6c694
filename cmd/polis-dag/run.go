package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/polisai/polis-dag/pkg/engine"
	"github.com/polisai/polis-dag/pkg/pipelinefile"
	"github.com/spf13/cobra"
)

type runOptions struct {
	input     string
	inputNode string
	showLog   bool
}

// runOutput is what the run command prints.
type runOutput struct {
	Name   string   `json:"name"`
	Status string   `json:"status"`
	Result any      `json:"result,omitempty"`
	Error  string   `json:"error,omitempty"`
	Log    []string `json:"log,omitempty"`
}

func newRunCmd(flags *globalFlags) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Execute a pipeline file once and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipelineFile(cmd, flags, opts, args[0])
		},
	}
	cmd.Flags().StringVar(&opts.input, "input", "", "Initial input as JSON")
	cmd.Flags().StringVar(&opts.inputNode, "input-node", "", "Node that receives the input (defaults to the definition's binding)")
	cmd.Flags().BoolVar(&opts.showLog, "log", false, "Include the execution log in the output")
	return cmd
}

func runPipelineFile(cmd *cobra.Command, flags *globalFlags, opts *runOptions, path string) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	logger, _ := newLogger(flags, cfg, cmd.ErrOrStderr())

	def, err := pipelinefile.Load(path)
	if err != nil {
		return err
	}

	var input any
	if opts.input != "" {
		if err := json.Unmarshal([]byte(opts.input), &input); err != nil {
			return fmt.Errorf("invalid --input JSON: %w", err)
		}
	}

	executor := newExecutor(cfg, logger)
	result, runErr := executor.Run(cmd.Context(), engine.RunRequest{
		Definition: def,
		Input:      input,
		InputNode:  opts.inputNode,
	})

	out := runOutput{Name: def.Name, Status: "succeeded"}
	if runErr != nil {
		out.Status = "failed"
		out.Error = runErr.Error()
	} else {
		out.Result = result.Output
	}
	if opts.showLog && result != nil {
		out.Log = result.Log
	}
	if err := printJSON(cmd.OutOrStdout(), out); err != nil {
		return err
	}
	return runErr
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
