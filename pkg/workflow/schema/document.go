// Package schema defines the YAML-facing workflow document shape: the
// wire/file format a workflow author writes, validated and then handed
// to pkg/workflow/compile to become a kernel.CompiledWorkflow.
package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tombee/stepkernel/pkg/kernel"
)

// legacyIDPattern matches a bare, unnamespaced workflow or step id.
// namespacedIDPattern matches the two-part "namespace.name" form.
var (
	legacyIDPattern     = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)
	namespacedIDPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*\.[a-z][a-z0-9_-]*$`)
	stepIDPattern       = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)
)

// reservedNamespace is withheld for bundled, first-party workflows;
// documents loaded from any other source must not declare it.
const reservedNamespace = "wr."

// Document is the top-level YAML shape of a workflow source file.
type Document struct {
	// Name is the workflow identifier: either a legacy bare id
	// ("code-review") or a namespaced one ("team.code-review").
	Name string `yaml:"name" json:"name"`

	// Description is human-readable context, not interpreted.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Version is optional and kept as written; an empty value stays
	// empty and nothing interprets it.
	Version string `yaml:"version,omitempty" json:"version,omitempty"`

	// Steps are the top-level executable units, in declaration order.
	Steps []StepSchema `yaml:"steps" json:"steps"`
}

// StepSchema is one step as written in a workflow document.
type StepSchema struct {
	ID                  string            `yaml:"id" json:"id"`
	Title               string            `yaml:"title,omitempty" json:"title,omitempty"`
	Prompt              string            `yaml:"prompt,omitempty" json:"prompt,omitempty"`
	AgentRole           string            `yaml:"agent_role,omitempty" json:"agent_role,omitempty"`
	Guidance            []string          `yaml:"guidance,omitempty" json:"guidance,omitempty"`
	RunCondition        *kernel.Predicate `yaml:"run_condition,omitempty" json:"run_condition,omitempty"`
	RequireConfirmation bool              `yaml:"require_confirmation,omitempty" json:"require_confirmation,omitempty"`
	Loop                *LoopSchema       `yaml:"loop,omitempty" json:"loop,omitempty"`
}

// CountSchema resolves a `for` loop's iteration count.
type CountSchema struct {
	Literal    *float64 `yaml:"literal,omitempty" json:"literal,omitempty"`
	ContextKey string   `yaml:"context_key,omitempty" json:"context_key,omitempty"`
}

// ConditionSourceSchema is the policy for while/until continuation.
type ConditionSourceSchema struct {
	Kind      string            `yaml:"kind" json:"kind"` // "artifact_contract" | "context_variable"
	LoopID    string            `yaml:"loop_id,omitempty" json:"loop_id,omitempty"`
	Condition *kernel.Predicate `yaml:"condition,omitempty" json:"condition,omitempty"`
}

// LoopSchema is a loop step's configuration. Its body may be given
// inline (Body) or by reference to ids declared elsewhere in the same
// document (BodyRef); exactly one must be set.
type LoopSchema struct {
	Type            string                 `yaml:"type" json:"type"`
	MaxIterations   int                    `yaml:"max_iterations" json:"max_iterations"`
	Condition       *kernel.Predicate      `yaml:"condition,omitempty" json:"condition,omitempty"`
	Count           *CountSchema           `yaml:"count,omitempty" json:"count,omitempty"`
	Items           string                 `yaml:"items,omitempty" json:"items,omitempty"`
	IterationVar    string                 `yaml:"iteration_var,omitempty" json:"iteration_var,omitempty"`
	ItemVar         string                 `yaml:"item_var,omitempty" json:"item_var,omitempty"`
	IndexVar        string                 `yaml:"index_var,omitempty" json:"index_var,omitempty"`
	ConditionSource *ConditionSourceSchema `yaml:"condition_source,omitempty" json:"condition_source,omitempty"`
	Body            []StepSchema           `yaml:"body,omitempty" json:"body,omitempty"`
	BodyRef         []string               `yaml:"body_ref,omitempty" json:"body_ref,omitempty"`
}

// ValidateWorkflowID reports whether id is a well-formed workflow
// identifier: a legacy bare id, or a two-part namespaced id. bundled
// selects whether the reserved "wr." namespace is permitted.
func ValidateWorkflowID(id string, bundled bool) error {
	if id == "" {
		return fmt.Errorf("workflow name is required")
	}
	if !bundled && strings.HasPrefix(id, reservedNamespace) {
		return fmt.Errorf("workflow id %q uses the reserved %q namespace", id, reservedNamespace)
	}
	if legacyIDPattern.MatchString(id) || namespacedIDPattern.MatchString(id) {
		return nil
	}
	return fmt.Errorf("workflow id %q must be lowercase, start with a letter, and be either a bare id or \"namespace.name\"", id)
}

// ValidateStepID reports whether id is a well-formed step identifier.
func ValidateStepID(id string) error {
	if id == "" {
		return fmt.Errorf("step id is required")
	}
	if !stepIDPattern.MatchString(id) {
		return fmt.Errorf("step id %q must be lowercase, start with a letter, and contain only letters, digits, '_' and '-'", id)
	}
	return nil
}
