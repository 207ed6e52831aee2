// Package validate implements `stepkernel validate`: schema and
// compile-time checks for a workflow document, without running it.
package validate

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tombee/stepkernel/pkg/workflow/load"
)

type jsonResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
	Steps int    `json:"steps,omitempty"`
}

// NewCommand builds the validate subcommand.
func NewCommand() *cobra.Command {
	var bundled bool

	cmd := &cobra.Command{
		Use:   "validate <workflow.yaml>",
		Short: "Validate a workflow document's schema and compile it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			return run(cmd, args[0], bundled, asJSON)
		},
	}

	cmd.Flags().BoolVar(&bundled, "bundled", false, "allow the reserved wr. workflow-id namespace")

	return cmd
}

func run(cmd *cobra.Command, path string, bundled, asJSON bool) error {
	wf, err := load.CompileFile(path, bundled)
	if err != nil {
		if asJSON {
			return emitJSON(cmd, jsonResult{Valid: false, Error: err.Error()})
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: invalid: %v\n", path, err)
		return err
	}

	if asJSON {
		return emitJSON(cmd, jsonResult{Valid: true, Steps: len(wf.StepByID)})
	}
	cmd.Printf("%s: valid (%d steps, including loop bodies)\n", path, len(wf.StepByID))
	return nil
}

func emitJSON(cmd *cobra.Command, result jsonResult) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}
	if !result.Valid {
		return fmt.Errorf("validation failed")
	}
	return nil
}
