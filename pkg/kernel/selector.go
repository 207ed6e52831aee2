package kernel

// BlockedStep describes one top-level step the selector passed over
// because its runCondition did not hold. It is advisory (§4.4):
// callers may ignore it and treat "no eligible step" as a plain
// not-found.
type BlockedStep struct {
	StepID   StepID
	Variable string
	Reason   string // "missing_variable" | "incorrect_value" | "unevaluated_condition"
	Expected any
	Current  any
	HasValue bool
}

// Select implements the step selector (C4): the first top-level step
// that is not completed, is not a loop-body step outside its own loop,
// and whose runCondition (if any) holds against ctx. It is total and
// deterministic.
//
// insideLoopID, when non-nil, names the loop currently on top of the
// frame stack so its own body steps remain selectable; the top-level
// interpreter loop (§4.8.2) only invokes Select with insideLoopID nil
// since body-step scanning is the loop kernel's job, but Select stays
// general per §4.4.
func Select(workflow *CompiledWorkflow, completed map[string]struct{}, ctx Context, eval *ConditionEvaluator, insideLoopID *StepID) (Step, bool, []BlockedStep) {
	var blocked []BlockedStep

	for _, s := range workflow.Steps {
		key := StepInstanceID{StepID: s.ID}.Key()
		if _, done := completed[key]; done {
			continue
		}
		if _, isBody := workflow.LoopBodyStepIDs[s.ID]; isBody {
			if insideLoopID == nil || !loopOwnsStep(workflow, *insideLoopID, s.ID) {
				continue
			}
		}

		if s.RunCondition == nil {
			return s, true, blocked
		}
		if eval.Evaluate(s.RunCondition, ctx) {
			return s, true, blocked
		}
		blocked = append(blocked, describeBlocked(s, ctx))
	}

	return Step{}, false, blocked
}

func loopOwnsStep(workflow *CompiledWorkflow, loopID, stepID StepID) bool {
	loop, ok := workflow.CompiledLoops[loopID]
	if !ok {
		return false
	}
	for _, bs := range loop.BodySteps {
		if bs.ID == stepID {
			return true
		}
	}
	return false
}

// describeBlocked produces guidance for a single-leaf var/equals
// condition; composite trees (and/or/not/expr) get a generic message
// since there is no single variable to name.
func describeBlocked(s Step, ctx Context) BlockedStep {
	p := s.RunCondition
	if p == nil || p.Var == "" || p.Equals == nil {
		return BlockedStep{StepID: s.ID, Reason: "unevaluated_condition"}
	}

	current, ok := lookup(ctx, p.Var)
	if !ok {
		return BlockedStep{
			StepID:   s.ID,
			Variable: p.Var,
			Reason:   "missing_variable",
			Expected: *p.Equals,
		}
	}
	return BlockedStep{
		StepID:   s.ID,
		Variable: p.Var,
		Reason:   "incorrect_value",
		Expected: *p.Equals,
		Current:  current,
		HasValue: true,
	}
}
