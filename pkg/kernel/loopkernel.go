package kernel

import (
	kerrors "github.com/tombee/stepkernel/pkg/errors"
)

// LoopDecisionKind discriminates the loop kernel's three outcomes.
type LoopDecisionKind string

const (
	DecisionExecuteBodyStep  LoopDecisionKind = "execute_body_step"
	DecisionAdvanceIteration LoopDecisionKind = "advance_iteration"
	DecisionExitLoop         LoopDecisionKind = "exit_loop"
)

// LoopDecision is the outcome of Decide.
type LoopDecision struct {
	Kind LoopDecisionKind

	// BodyIndex is set when Kind == DecisionExecuteBodyStep.
	BodyIndex int

	// NextIteration is set when Kind == DecisionAdvanceIteration.
	NextIteration int
}

// LoopKernelPorts are the two collaborators the kernel consults. They
// carry all loop-type-specific policy (while/until/for/forEach); the
// kernel itself is type-agnostic arithmetic.
type LoopKernelPorts struct {
	// ShouldEnterIteration reports whether iteration i may begin. An
	// error here propagates unchanged from Decide.
	ShouldEnterIteration func(i int) (bool, error)

	// IsBodyIndexEligible reports whether bodySteps[i] should execute
	// this iteration: not yet completed, and its runCondition (if any)
	// holds against the projected context.
	IsBodyIndexEligible func(i int) bool
}

// LoopKernelParams is the input to Decide.
type LoopKernelParams struct {
	LoopID    StepID
	Iteration int
	BodyIndex int
	BodyLen   int
	MaxIter   int
	Ports     LoopKernelPorts
}

// Decide implements the loop kernel (C2): given the current
// iteration/bodyIndex position and two ports, it decides whether to
// execute a body step, advance to the next iteration, or exit the
// loop. Decide is pure given its params and the ports' return values;
// it performs no I/O of its own.
func Decide(p LoopKernelParams) (LoopDecision, error) {
	if err := validateFrameShape(p); err != nil {
		return LoopDecision{}, err
	}
	if p.Iteration >= p.MaxIter {
		return LoopDecision{}, &kerrors.InvalidLoopError{
			LoopID: string(p.LoopID),
			Reason: "re-entered loop kernel at iteration >= maxIterations",
		}
	}

	enter, err := p.Ports.ShouldEnterIteration(p.Iteration)
	if err != nil {
		return LoopDecision{}, err
	}
	if !enter {
		return LoopDecision{Kind: DecisionExitLoop}, nil
	}

	for i := p.BodyIndex; i < p.BodyLen; i++ {
		if p.Ports.IsBodyIndexEligible(i) {
			return LoopDecision{Kind: DecisionExecuteBodyStep, BodyIndex: i}, nil
		}
	}

	// Iteration exhausted with no eligible body step: this iteration
	// still counts (§4.2 "skipped iterations ... still count").
	next := p.Iteration + 1
	if next >= p.MaxIter {
		return LoopDecision{Kind: DecisionExitLoop}, nil
	}

	enterNext, err := p.Ports.ShouldEnterIteration(next)
	if err != nil {
		return LoopDecision{}, err
	}
	if !enterNext {
		return LoopDecision{Kind: DecisionExitLoop}, nil
	}
	return LoopDecision{Kind: DecisionAdvanceIteration, NextIteration: next}, nil
}

func validateFrameShape(p LoopKernelParams) error {
	switch {
	case p.Iteration < 0:
		return &kerrors.InvalidLoopError{LoopID: string(p.LoopID), Reason: "iteration must be non-negative"}
	case p.BodyIndex < 0:
		return &kerrors.InvalidLoopError{LoopID: string(p.LoopID), Reason: "bodyIndex must be non-negative"}
	case p.BodyLen < 1:
		return &kerrors.InvalidLoopError{LoopID: string(p.LoopID), Reason: "bodyLen must be >= 1"}
	case p.MaxIter < 0:
		return &kerrors.InvalidLoopError{LoopID: string(p.LoopID), Reason: "maxIter must be non-negative"}
	case p.BodyIndex > p.BodyLen:
		return &kerrors.InvalidLoopError{LoopID: string(p.LoopID), Reason: "bodyIndex must be <= bodyLen"}
	case p.Ports.ShouldEnterIteration == nil || p.Ports.IsBodyIndexEligible == nil:
		return &kerrors.InvalidLoopError{LoopID: string(p.LoopID), Reason: "both kernel ports must be set"}
	}
	return nil
}
