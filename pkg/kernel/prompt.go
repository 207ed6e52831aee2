package kernel

import (
	"fmt"
	"strings"

	kerrors "github.com/tombee/stepkernel/pkg/errors"
)

// Guidance is the materialized instruction block returned alongside a
// selected step instance.
type Guidance struct {
	Prompt               string
	RequiresConfirmation bool
}

// Materialize builds the Guidance for one step instance (C9): an
// agent-role block, a step-guidance block, the step's own prompt, and
// — when the instance sits inside a loop — a loop-context block naming
// the innermost loop and its 1-based iteration. Loop steps are never
// materialized directly; attempting to do so is an InvalidState error.
func Materialize(step Step, instance StepInstanceID) (Guidance, error) {
	if step.IsLoop() {
		return Guidance{}, &kerrors.InvalidStateError{
			Reason: fmt.Sprintf("step %q is a loop step and cannot be materialized directly", step.ID),
		}
	}

	var b strings.Builder

	if step.AgentRole != "" {
		b.WriteString("## Agent Role Instructions\n")
		b.WriteString(step.AgentRole)
		b.WriteString("\n\n")
	}

	if len(step.Guidance) > 0 {
		b.WriteString("## Step Guidance\n")
		for _, g := range step.Guidance {
			b.WriteString("- ")
			b.WriteString(g)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(step.Prompt)

	if len(instance.LoopPath) > 0 {
		innermost := instance.LoopPath[len(instance.LoopPath)-1]
		b.WriteString("\n\n## Loop Context\n")
		fmt.Fprintf(&b, "- Loop: %s\n", innermost.LoopID)
		fmt.Fprintf(&b, "- Iteration: %d\n", innermost.Iteration+1)
	}

	return Guidance{Prompt: b.String(), RequiresConfirmation: step.RequireConfirmation}, nil
}
