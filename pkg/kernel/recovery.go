package kernel

import (
	"time"
)

// Recover reconstructs a loop stack of length 0 or 1 from a flat list
// of completed step ids (C6). It is used when a caller has lost the
// loop stack (e.g. it was never persisted, or the persisted state was
// dropped) but still has the workflow's completed-step history.
//
// Nested-loop recovery is explicitly out of scope (§4.6): Recover
// always returns at most one frame, for the first loop step it finds
// whose body overlaps completedStepIDs and which is not itself marked
// complete. A failure to reconstruct (an unresolvable loop, or no
// loop-body overlap at all) returns an empty stack rather than an
// error — the caller may proceed from scratch.
func Recover(workflow *CompiledWorkflow, completedStepIDs []StepID, ctx Context, now time.Time) []FrameState {
	if stack, ok := ctx["_loopStack"].([]FrameState); ok && len(stack) > 0 {
		out := make([]FrameState, len(stack))
		copy(out, stack)
		return out
	}

	completedSet := make(map[StepID]bool, len(completedStepIDs))
	for _, id := range completedStepIDs {
		completedSet[id] = true
	}

	bodyCompleted := false
	for _, id := range completedStepIDs {
		if _, ok := workflow.LoopBodyStepIDs[id]; ok {
			bodyCompleted = true
			break
		}
	}
	if !bodyCompleted {
		return nil
	}

	for _, s := range workflow.Steps {
		if !s.IsLoop() {
			continue
		}
		if completedSet[s.ID] {
			continue // loop itself already completed, nothing to recover
		}
		loop, ok := workflow.CompiledLoops[s.ID]
		if !ok || len(loop.BodySteps) == 0 {
			continue
		}

		bodyIDs := make(map[StepID]bool, len(loop.BodySteps))
		for _, bs := range loop.BodySteps {
			bodyIDs[bs.ID] = true
		}

		overlap := 0
		for _, id := range completedStepIDs {
			if bodyIDs[id] {
				overlap++
			}
		}
		if overlap == 0 {
			continue
		}

		if !wouldEnterOnRecovery(*s.Loop, ctx) {
			continue
		}

		iterations := iterationsCompleted(*s.Loop, loop.BodySteps, overlap, ctx)
		resumeIndex := resumeIndexFor(overlap, iterations, len(loop.BodySteps))

		frame, err := NewFrame(s.ID, s, loop.BodySteps, now)
		if err != nil {
			continue
		}
		frame.SetIteration(iterations)
		frame, err = frame.WithIndex(resumeIndex, true)
		if err != nil {
			continue
		}

		return []FrameState{frame.Snapshot()}
	}

	return nil
}

// wouldEnterOnRecovery applies the arithmetic-resolvable loop-entry
// checks (for/forEach) at iteration 0. while/until and artifact-backed
// loops cannot be checked without live ports or an artifact bundle, so
// recovery optimistically assumes they would have entered — the
// interpreter's normal kernel pass will exit immediately on the next
// next() call if that assumption was wrong.
func wouldEnterOnRecovery(loop LoopConfig, ctx Context) bool {
	switch loop.Type {
	case LoopFor:
		count, ok := resolveCount(loop.Count, ctx)
		if !ok {
			return true
		}
		return 0 < count
	case LoopForEach:
		arr, ok := ctx[loop.Items].([]any)
		if !ok {
			return true
		}
		return len(arr) > 0
	default:
		return true
	}
}

func resolveCount(c *CountSource, ctx Context) (int, bool) {
	if c == nil {
		return 0, false
	}
	if c.Literal != nil {
		return int(*c.Literal), true
	}
	if c.ContextKey != "" {
		if f, ok := toFloat(ctx[c.ContextKey]); ok {
			return int(f), true
		}
	}
	return 0, false
}

// iterationsCompleted implements the §4.6 priority order:
// (a) an explicit 1-based iteration-var context value, (b) a
// conservative estimate when any body step is conditional, or
// (c) an exact division when the body is unconditional.
func iterationsCompleted(loop LoopConfig, bodySteps []Step, overlapCount int, ctx Context) int {
	iterVar := loop.IterationVar
	if iterVar == "" {
		iterVar = defaultIterationVar
	}
	if raw, ok := ctx[iterVar]; ok {
		if f, ok := toFloat(raw); ok && f > 0 {
			return int(f) - 1
		}
	}

	anyConditional := false
	for _, bs := range bodySteps {
		if bs.RunCondition != nil {
			anyConditional = true
			break
		}
	}
	if anyConditional {
		n := overlapCount - 1
		if n < 0 {
			n = 0
		}
		return n
	}

	if len(bodySteps) == 0 {
		return 0
	}
	return overlapCount / len(bodySteps)
}

// resumeIndexFor derives the body cursor for the partially-completed
// iteration: the overlap count beyond whole completed iterations,
// clamped into [0, bodyLen]. This is index-based, not id-based — body
// steps repeat every iteration, so a flat "is this id done" set can't
// distinguish which repetition is outstanding.
func resumeIndexFor(overlap, iterations, bodyLen int) int {
	if bodyLen == 0 {
		return 0
	}
	idx := overlap - iterations*bodyLen
	if idx < 0 {
		idx = 0
	}
	if idx > bodyLen {
		idx = bodyLen
	}
	return idx
}
