// Package compile turns a validated schema.Document into the
// kernel.CompiledWorkflow the interpreter consumes (C10): resolving
// loop bodies — inline or by reference — into the flat StepByID and
// CompiledLoops maps the kernel expects.
package compile

import (
	kerrors "github.com/tombee/stepkernel/pkg/errors"
	"github.com/tombee/stepkernel/pkg/kernel"
	"github.com/tombee/stepkernel/pkg/workflow/schema"
)

// Compile validates doc and resolves it into a kernel.CompiledWorkflow.
// bundled controls whether doc's name may use the reserved "wr."
// namespace (true only for workflows shipped with the runtime itself).
func Compile(doc *schema.Document, bundled bool) (*kernel.CompiledWorkflow, error) {
	if err := doc.Validate(bundled); err != nil {
		return nil, err
	}

	registry := make(map[string]schema.StepSchema)
	collectStepSchemas(doc.Steps, registry)

	wf := &kernel.CompiledWorkflow{
		StepByID:        make(map[kernel.StepID]kernel.Step),
		LoopBodyStepIDs: make(map[kernel.StepID]struct{}),
		CompiledLoops:   make(map[kernel.StepID]kernel.CompiledLoop),
	}

	for _, s := range doc.Steps {
		step, err := resolveStep(s, registry, wf)
		if err != nil {
			return nil, err
		}
		wf.Steps = append(wf.Steps, step)
	}

	return wf, nil
}

// collectStepSchemas flattens every step schema reachable from the
// document — top level and inline loop bodies — into an id-keyed
// registry, used to resolve body_ref.
func collectStepSchemas(steps []schema.StepSchema, out map[string]schema.StepSchema) {
	for _, s := range steps {
		out[s.ID] = s
		if s.Loop != nil && len(s.Loop.Body) > 0 {
			collectStepSchemas(s.Loop.Body, out)
		}
	}
}

func resolveStep(s schema.StepSchema, registry map[string]schema.StepSchema, wf *kernel.CompiledWorkflow) (kernel.Step, error) {
	step := kernel.Step{
		ID:                  kernel.StepID(s.ID),
		Title:               s.Title,
		Prompt:              s.Prompt,
		AgentRole:           s.AgentRole,
		Guidance:            s.Guidance,
		RunCondition:        s.RunCondition,
		RequireConfirmation: s.RequireConfirmation,
	}

	if s.Loop == nil {
		wf.StepByID[step.ID] = step
		return step, nil
	}

	loopCfg := resolveLoopConfig(*s.Loop)
	step.Loop = &loopCfg

	bodySteps, err := resolveBody(s.ID, *s.Loop, registry, wf)
	if err != nil {
		return kernel.Step{}, err
	}

	wf.StepByID[step.ID] = step
	wf.CompiledLoops[step.ID] = kernel.CompiledLoop{Loop: loopCfg, BodySteps: bodySteps}
	for _, bs := range bodySteps {
		wf.LoopBodyStepIDs[bs.ID] = struct{}{}
	}
	return step, nil
}

func resolveBody(loopID string, l schema.LoopSchema, registry map[string]schema.StepSchema, wf *kernel.CompiledWorkflow) ([]kernel.Step, error) {
	var sources []schema.StepSchema
	if len(l.Body) > 0 {
		sources = l.Body
	} else {
		for _, ref := range l.BodyRef {
			s, ok := registry[ref]
			if !ok {
				return nil, &kerrors.LoopBodyResolutionError{LoopID: loopID, Ref: ref, Reason: "no step with this id is declared in the document"}
			}
			sources = append(sources, s)
		}
	}

	body := make([]kernel.Step, 0, len(sources))
	for _, bs := range sources {
		if bs.ID == loopID {
			return nil, &kerrors.LoopBodyResolutionError{LoopID: loopID, Ref: bs.ID, Reason: "a loop cannot contain itself in its own body"}
		}
		resolved, err := resolveStep(bs, registry, wf)
		if err != nil {
			return nil, err
		}
		if resolved.IsLoop() {
			return nil, &kerrors.LoopBodyResolutionError{LoopID: loopID, Ref: bs.ID, Reason: "nested loop steps are not supported in a loop body"}
		}
		body = append(body, resolved)
	}
	if len(body) == 0 {
		return nil, &kerrors.EmptyLoopBodyError{LoopID: loopID}
	}
	return body, nil
}

func resolveLoopConfig(l schema.LoopSchema) kernel.LoopConfig {
	cfg := kernel.LoopConfig{
		Type:          kernel.LoopType(l.Type),
		MaxIterations: l.MaxIterations,
		Condition:     l.Condition,
		Items:         l.Items,
		IterationVar:  l.IterationVar,
		ItemVar:       l.ItemVar,
		IndexVar:      l.IndexVar,
	}
	if l.Count != nil {
		cfg.Count = &kernel.CountSource{Literal: l.Count.Literal, ContextKey: l.Count.ContextKey}
	}
	if l.ConditionSource != nil {
		cfg.ConditionSource = &kernel.ConditionSource{
			Kind:      kernel.ConditionSourceKind(l.ConditionSource.Kind),
			LoopID:    kernel.StepID(l.ConditionSource.LoopID),
			Condition: l.ConditionSource.Condition,
		}
	}
	return cfg
}
