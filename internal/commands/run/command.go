// Package run implements `stepkernel run`: drives a compiled workflow
// to completion against a stub auto-completing agent, printing each
// materialized prompt as it is selected.
package run

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tombee/stepkernel/internal/config"
	"github.com/tombee/stepkernel/internal/log"
	"github.com/tombee/stepkernel/pkg/kernel"
	"github.com/tombee/stepkernel/pkg/workflow/load"
)

// NewCommand builds the run subcommand.
func NewCommand() *cobra.Command {
	var (
		contextPath string
		bundled     bool
		maxSteps    int
	)

	cmd := &cobra.Command{
		Use:   "run <workflow.yaml>",
		Short: "Run a workflow against a stub auto-completing agent",
		Long: `Run loads and compiles a workflow, then drives the next/applyEvent
reducer in a loop: each selected step is printed and immediately marked
complete, standing in for a real polling agent. This exercises the
interpreter end to end without any external execution backend.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			return run(cmd, args[0], contextPath, bundled, maxSteps, asJSON)
		},
	}

	cmd.Flags().StringVar(&contextPath, "context", "", "path to a JSON file supplying the initial context")
	cmd.Flags().BoolVar(&bundled, "bundled", false, "allow the reserved wr. workflow-id namespace")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 10_000, "abort after this many materialized steps (runaway guard)")

	return cmd
}

func run(cmd *cobra.Command, path, contextPath string, bundled bool, maxSteps int, asJSON bool) error {
	logger := log.New(log.FromEnv())

	wf, err := load.CompileFile(path, bundled)
	if err != nil {
		return fmt.Errorf("compiling %s: %w", path, err)
	}

	ctx, err := loadContext(contextPath)
	if err != nil {
		return err
	}

	ip := kernel.New(kernel.WithLogger(logger), kernel.WithLimits(config.FromEnv()))
	state := kernel.NewExecutionState()

	for i := 0; i < maxSteps; i++ {
		result, err := ip.Next(wf, state, ctx, nil)
		if err != nil {
			return fmt.Errorf("next: %w", err)
		}
		state = result.State

		if result.IsComplete {
			if asJSON {
				return emitJSON(cmd, map[string]any{"status": "complete", "stepsRun": i})
			}
			cmd.Printf("workflow complete after %d step(s)\n", i)
			return nil
		}

		printStep(cmd, result.Next, asJSON)

		state, err = ip.ApplyEvent(state, kernel.WorkflowEvent{
			Kind:           kernel.EventStepCompleted,
			StepInstanceID: result.Next.StepInstanceID,
		})
		if err != nil {
			return fmt.Errorf("applyEvent: %w", err)
		}
	}

	return fmt.Errorf("aborted: exceeded max-steps (%d) without reaching completion", maxSteps)
}

func printStep(cmd *cobra.Command, next *kernel.NextStep, asJSON bool) {
	if asJSON {
		_ = emitJSON(cmd, map[string]any{
			"stepId":         string(next.Step.ID),
			"stepInstanceId": next.StepInstanceID.Key(),
			"prompt":         next.Guidance.Prompt,
		})
		return
	}
	cmd.Printf("--- %s ---\n%s\n\n", next.StepInstanceID.Key(), next.Guidance.Prompt)
}

func loadContext(path string) (kernel.Context, error) {
	if path == "" {
		return kernel.Context{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading context file %q: %w", path, err)
	}
	var ctx kernel.Context
	if err := json.Unmarshal(data, &ctx); err != nil {
		return nil, fmt.Errorf("parsing context file %q: %w", path, err)
	}
	return ctx, nil
}

func emitJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
