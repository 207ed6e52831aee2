package schema

import (
	"fmt"

	kerrors "github.com/tombee/stepkernel/pkg/errors"
)

// validLoopTypes mirrors kernel.LoopType's four variants.
var validLoopTypes = map[string]bool{
	"while":   true,
	"until":   true,
	"for":     true,
	"forEach": true,
}

// Validate checks d's structural well-formedness: a valid workflow id,
// at least one step, unique step ids, and each step's own Validate.
// bundled is passed through to ValidateWorkflowID for the reserved
// "wr." namespace check.
func (d *Document) Validate(bundled bool) error {
	if err := ValidateWorkflowID(d.Name, bundled); err != nil {
		return &kerrors.ValidationError{Field: "name", Message: err.Error(), Suggestion: "use a lowercase id, optionally namespaced as \"team.workflow-name\""}
	}
	if len(d.Steps) == 0 {
		return &kerrors.ValidationError{Field: "steps", Message: "workflow must have at least one step", Suggestion: "add at least one step"}
	}

	seen := make(map[string]bool, len(d.Steps))
	for _, s := range d.Steps {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("invalid step %q: %w", s.ID, err)
		}
		if seen[s.ID] {
			return &kerrors.ValidationError{Field: "id", Message: fmt.Sprintf("duplicate step id: %s", s.ID), Suggestion: "ensure every step id is unique, including loop body steps"}
		}
		seen[s.ID] = true
	}
	return nil
}

// Validate checks one step's fields and, recursively, its loop body.
func (s *StepSchema) Validate() error {
	if err := ValidateStepID(s.ID); err != nil {
		return &kerrors.ValidationError{Field: "id", Message: err.Error()}
	}
	if s.Loop == nil {
		if s.Prompt == "" {
			return &kerrors.ValidationError{Field: "prompt", Message: fmt.Sprintf("step %q requires a prompt", s.ID), Suggestion: "add a prompt, or mark this step as a loop"}
		}
		return nil
	}
	return s.Loop.Validate(s.ID)
}

// Validate checks a loop's type-specific required fields and that
// exactly one body source (Body or BodyRef) is present.
func (l *LoopSchema) Validate(loopID string) error {
	if !validLoopTypes[l.Type] {
		return &kerrors.ValidationError{Field: "loop.type", Message: fmt.Sprintf("loop %q has invalid type %q", loopID, l.Type), Suggestion: "use one of while, until, for, forEach"}
	}
	if l.MaxIterations <= 0 {
		return &kerrors.ValidationError{Field: "loop.max_iterations", Message: fmt.Sprintf("loop %q must declare a positive max_iterations", loopID)}
	}

	hasBody := len(l.Body) > 0
	hasBodyRef := len(l.BodyRef) > 0
	switch {
	case hasBody && hasBodyRef:
		return &kerrors.ValidationError{Field: "loop.body", Message: fmt.Sprintf("loop %q cannot set both body and body_ref", loopID)}
	case !hasBody && !hasBodyRef:
		return &kerrors.ValidationError{Field: "loop.body", Message: fmt.Sprintf("loop %q has an empty body", loopID)}
	}
	for _, ref := range l.BodyRef {
		if ref == loopID {
			return &kerrors.ValidationError{Field: "loop.body_ref", Message: fmt.Sprintf("loop %q cannot reference itself as a body step", loopID)}
		}
	}
	for _, bs := range l.Body {
		if bs.ID == loopID {
			return &kerrors.ValidationError{Field: "loop.body", Message: fmt.Sprintf("loop %q cannot contain itself as a body step", loopID)}
		}
		if err := bs.Validate(); err != nil {
			return fmt.Errorf("invalid body step %q of loop %q: %w", bs.ID, loopID, err)
		}
	}

	switch l.Type {
	case "for":
		if l.Count == nil {
			return &kerrors.ValidationError{Field: "loop.count", Message: fmt.Sprintf("for loop %q requires count", loopID)}
		}
	case "forEach":
		if l.Items == "" {
			return &kerrors.ValidationError{Field: "loop.items", Message: fmt.Sprintf("forEach loop %q requires items", loopID)}
		}
	case "while", "until":
		if l.Condition == nil && l.ConditionSource == nil {
			return &kerrors.ValidationError{Field: "loop.condition", Message: fmt.Sprintf("%s loop %q requires condition or condition_source", l.Type, loopID)}
		}
		if l.ConditionSource != nil {
			switch l.ConditionSource.Kind {
			case "artifact_contract":
				if l.ConditionSource.LoopID == "" {
					return &kerrors.ValidationError{Field: "loop.condition_source.loop_id", Message: fmt.Sprintf("loop %q: artifact_contract condition_source requires loop_id", loopID)}
				}
			case "context_variable":
				if l.ConditionSource.Condition == nil {
					return &kerrors.ValidationError{Field: "loop.condition_source.condition", Message: fmt.Sprintf("loop %q: context_variable condition_source requires condition", loopID)}
				}
			default:
				return &kerrors.ValidationError{Field: "loop.condition_source.kind", Message: fmt.Sprintf("loop %q: condition_source.kind must be artifact_contract or context_variable", loopID)}
			}
		}
	}
	return nil
}
