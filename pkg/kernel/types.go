// Package kernel implements the workflow interpreter core: condition
// evaluation, the loop kernel, step selection, loop-frame bookkeeping,
// loop-state recovery, context projection, and the top-level reducer
// (applyEvent/next). Every exported function here is a pure value
// transformation — no filesystem or network access. The one clock read
// is the Interpreter's clock (time.Now unless replaced with WithClock),
// which Next reads once per call for loop start times and the
// wall-clock guard.
package kernel

import (
	"strconv"
	"strings"
)

// StepID is an opaque identifier, unique within a compiled workflow.
type StepID string

// LoopPathEntry names one enclosing loop and the iteration active when
// a step instance was created.
type LoopPathEntry struct {
	LoopID    StepID `json:"loopId"`
	Iteration int    `json:"iteration"`
}

// StepInstanceID identifies one materialization of a step: the step id
// plus the ordered path of enclosing loops, outermost first.
type StepInstanceID struct {
	StepID   StepID          `json:"stepId"`
	LoopPath []LoopPathEntry `json:"loopPath"`
}

// Key returns the canonical, deterministic serialization used for
// equality and as the entry recorded in ExecutionState.Completed.
func (s StepInstanceID) Key() string {
	var b strings.Builder
	b.WriteString(string(s.StepID))
	for _, e := range s.LoopPath {
		b.WriteByte('/')
		b.WriteString(string(e.LoopID))
		b.WriteByte('#')
		b.WriteString(strconv.Itoa(e.Iteration))
	}
	return b.String()
}

// Equal reports whether two instance ids serialize identically.
func (s StepInstanceID) Equal(other StepInstanceID) bool {
	return s.Key() == other.Key()
}

// Context is the external, caller-owned data map the interpreter reads
// from and projects new values into. It is never mutated in place by
// the interpreter; every projection returns a new map.
type Context map[string]any

// Predicate is a tagged, recursively-evaluable condition tree.
//
// Exactly one of the following shapes is well-formed at any node:
//   - a leaf: Var set, and exactly one of Equals/Gt/Lt non-nil
//   - an expr leaf: Expr non-empty (see SPEC_FULL.md "expression predicate extension")
//   - a conjunction: And non-nil (possibly empty, meaning vacuous true)
//   - a disjunction: Or non-nil (possibly empty, meaning vacuous false)
//   - a negation: Not non-nil
//
// Any other shape (including the zero value) is malformed and
// evaluates to false; Evaluate never errors or panics (§4.1).
type Predicate struct {
	Var    string `yaml:"var,omitempty" json:"var,omitempty"`
	Equals *any   `yaml:"equals,omitempty" json:"equals,omitempty"`
	Gt     *any   `yaml:"gt,omitempty" json:"gt,omitempty"`
	Lt     *any   `yaml:"lt,omitempty" json:"lt,omitempty"`
	Expr   string `yaml:"expr,omitempty" json:"expr,omitempty"`

	And []Predicate `yaml:"and,omitempty" json:"and,omitempty"`
	Or  []Predicate `yaml:"or,omitempty" json:"or,omitempty"`
	Not *Predicate  `yaml:"not,omitempty" json:"not,omitempty"`
}

// LoopType identifies the loop step's continuation semantics.
type LoopType string

const (
	LoopWhile   LoopType = "while"
	LoopUntil   LoopType = "until"
	LoopFor     LoopType = "for"
	LoopForEach LoopType = "forEach"
)

// CountSource resolves a `for` loop's iteration count, either as a
// literal baked in at compile time or as a context key read fresh on
// loop entry.
type CountSource struct {
	Literal    *float64
	ContextKey string
}

// ConditionSourceKind selects where a while/until loop reads its
// continuation decision from (§4.8.3).
type ConditionSourceKind string

const (
	ConditionSourceArtifactContract ConditionSourceKind = "artifact_contract"
	ConditionSourceContextVariable  ConditionSourceKind = "context_variable"
)

// ConditionSource is the policy for while/until continuation.
type ConditionSource struct {
	Kind ConditionSourceKind
	// LoopID is used when Kind == ConditionSourceArtifactContract.
	LoopID StepID
	// Condition is used when Kind == ConditionSourceContextVariable.
	Condition *Predicate
}

// LoopConfig is the loop-specific configuration carried by a loop step.
type LoopConfig struct {
	Type          LoopType
	MaxIterations int

	// Condition is the raw while/until condition evaluated when
	// ConditionSource is nil (the "legacy" path, §4.8.3, §9).
	Condition *Predicate

	// Count resolves the `for` loop's iteration count.
	Count *CountSource

	// Items is the context key holding the forEach array.
	Items string

	IterationVar string
	ItemVar      string
	IndexVar     string

	ConditionSource *ConditionSource
}

// Step is a single prompt-bearing unit. A non-nil Loop marks this step
// as a loop step; its resolved body lives in CompiledWorkflow.CompiledLoops,
// keyed by this step's ID.
type Step struct {
	ID                  StepID
	Title               string
	Prompt              string
	AgentRole           string
	Guidance            []string
	RunCondition        *Predicate
	RequireConfirmation bool
	Loop                *LoopConfig
}

// IsLoop reports whether this step is a loop step.
func (s Step) IsLoop() bool { return s.Loop != nil }

// CompiledLoop is the per-loop shape the interpreter consumes: the
// loop's configuration plus its resolved, ordered body steps.
type CompiledLoop struct {
	Loop      LoopConfig
	BodySteps []Step
}

// CompiledWorkflow is the immutable, pre-computed shape the
// interpreter consumes (C10). It is produced by an external
// collaborator (pkg/workflow/compile) and never mutated after
// construction.
type CompiledWorkflow struct {
	// Steps is the ordered, top-level step list in declaration order.
	// It includes loop steps but excludes nested loop-body steps.
	Steps []Step

	// StepByID maps every step id — top-level and loop-body — to its
	// Step value, for O(1) lookup from any context.
	StepByID map[StepID]Step

	// LoopBodyStepIDs is the set of step ids that are the body of some
	// loop, used by the selector to skip them at top level.
	LoopBodyStepIDs map[StepID]struct{}

	// CompiledLoops maps a loop step's id to its resolved loop shape.
	CompiledLoops map[StepID]CompiledLoop
}

// StateKind discriminates ExecutionState's three variants.
type StateKind string

const (
	StateInit     StateKind = "init"
	StateRunning  StateKind = "running"
	StateComplete StateKind = "complete"
)

// FrameState is the serializable snapshot of one loop frame. The
// runtime LoopFrame (frame.go) is reconstructed from this plus a
// CompiledWorkflow lookup at the start of every call.
type FrameState struct {
	LoopID           StepID   `json:"loopId"`
	Iteration        int      `json:"iteration"`
	CurrentBodyIndex int      `json:"currentBodyIndex"`
	Warnings         []string `json:"warnings,omitempty"`
	// StartedAtUnixNano anchors the five-minute wall-clock safety
	// guard (§5); Next compares it against the Interpreter's clock.
	StartedAtUnixNano int64 `json:"startedAtUnixNano,omitempty"`
}

// ExecutionState is the tagged union flowing between calls. It is
// plain, serializable data: the caller owns persisting it and must
// treat it as opaque except for inspecting Kind.
type ExecutionState struct {
	Kind         StateKind       `json:"kind"`
	Completed    []string        `json:"completed,omitempty"`
	LoopStack    []FrameState    `json:"loopStack,omitempty"`
	PendingStep  *StepInstanceID `json:"pendingStep,omitempty"`
}

// NewExecutionState returns the initial state for a fresh run.
func NewExecutionState() ExecutionState {
	return ExecutionState{Kind: StateInit}
}

// EventKind discriminates WorkflowEvent variants. The core only
// recognizes step_completed; anything else is rejected by applyEvent.
type EventKind string

const (
	EventStepCompleted EventKind = "step_completed"
)

// WorkflowEvent is an inbound completion notification.
type WorkflowEvent struct {
	Kind           EventKind      `json:"kind"`
	StepInstanceID StepInstanceID `json:"stepInstanceId"`
}

// ArtifactKind discriminates Artifact variants. The core only
// interprets loop_control; other kinds pass through untouched.
type ArtifactKind string

const (
	ArtifactLoopControl ArtifactKind = "wr.loop_control"
)

// LoopControlDecision is the continuation decision carried by a
// loop_control artifact.
type LoopControlDecision string

const (
	LoopControlContinue LoopControlDecision = "continue"
	LoopControlStop      LoopControlDecision = "stop"
)

// Artifact is an opaque record supplied alongside state. Only
// loop_control is interpreted by the core (C3).
type Artifact struct {
	Kind     ArtifactKind           `json:"kind"`
	LoopID   StepID                 `json:"loopId,omitempty"`
	Decision LoopControlDecision    `json:"decision,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}
