package kernel

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	kerrors "github.com/tombee/stepkernel/pkg/errors"
	"github.com/tombee/stepkernel/internal/config"
)

// NextStep is the selected step instance and its materialized
// guidance. ProjectedContext is populated only for body-step instances
// (it carries the loop's injected iteration/item/index variables, per
// §4.7) and is a Go-API convenience beyond the minimal wire contract
// in spec §6 — the RPC wrapper omits it when marshaling the response.
type NextStep struct {
	Step             Step
	StepInstanceID   StepInstanceID
	Guidance         Guidance
	ProjectedContext Context
}

// NextResult is the full outcome of Next.
type NextResult struct {
	State      ExecutionState
	Next       *NextStep
	IsComplete bool
	// Blocked is advisory (§4.4): populated when the top-level scan
	// found no eligible step because one or more runConditions did
	// not hold. Callers may ignore it.
	Blocked []BlockedStep
}

// Interpreter is the top-level reducer (C8): ApplyEvent folds a
// completion event into state; Next decides what to run next. Both
// are synchronous, deterministic, and total.
type Interpreter struct {
	eval                *ConditionEvaluator
	clock               func() time.Time
	logger              *slog.Logger
	selectionLoopGuard  int
	contextCeilingBytes int
	contextWarnRatio    float64
	wallClockGuard      time.Duration
	frameChecks         bool
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithClock overrides the clock used for loop start timestamps and the
// five-minute wall-clock safety guard (§5). Tests stub this.
func WithClock(clock func() time.Time) Option {
	return func(ip *Interpreter) { ip.clock = clock }
}

// WithLogger attaches a structured logger; nil-safe if never set.
func WithLogger(logger *slog.Logger) Option {
	return func(ip *Interpreter) { ip.logger = logger }
}

// WithLimits overrides the compile-time defaults from internal/config.
func WithLimits(limits config.Limits) Option {
	return func(ip *Interpreter) {
		ip.selectionLoopGuard = limits.SelectionLoopGuard
		ip.contextCeilingBytes = limits.ContextSizeCeilingBytes
		ip.contextWarnRatio = limits.ContextSizeWarnRatio
		ip.wallClockGuard = time.Duration(limits.LoopWallClockGuardSeconds) * time.Second
		ip.frameChecks = !limits.FrameInvariantChecksOff
	}
}

// New builds an Interpreter with spec-documented defaults, overridden
// by any options given.
func New(opts ...Option) *Interpreter {
	ip := &Interpreter{
		eval:  NewConditionEvaluator(),
		clock: time.Now,
	}
	WithLimits(config.DefaultLimits())(ip)
	for _, opt := range opts {
		opt(ip)
	}
	return ip
}

// ApplyEvent folds event into state (§4.8.1). complete absorbs any
// event; init is promoted to an empty running state first.
func (ip *Interpreter) ApplyEvent(state ExecutionState, event WorkflowEvent) (ExecutionState, error) {
	if state.Kind == StateComplete {
		return state, nil
	}
	state = promote(state)

	if event.Kind != EventStepCompleted {
		return state, &kerrors.InvalidStateError{Reason: fmt.Sprintf("unrecognized event kind %q", event.Kind)}
	}
	if state.PendingStep == nil {
		return state, &kerrors.InvalidStateError{Reason: "no pending step to complete"}
	}
	if !state.PendingStep.Equal(event.StepInstanceID) {
		return state, &kerrors.InvalidStateError{Reason: "completion event does not match the pending step instance"}
	}

	next := state
	next.Completed = append(append([]string(nil), state.Completed...), event.StepInstanceID.Key())
	next.PendingStep = nil
	return next, nil
}

// Next decides what to run next (§4.8.2). It is idempotent when a
// pending step is already recorded, and otherwise runs a bounded
// selection loop driving the loop kernel and the step selector.
func (ip *Interpreter) Next(workflow *CompiledWorkflow, state ExecutionState, ctx Context, artifacts []Artifact) (NextResult, error) {
	if state.Kind == StateComplete {
		return NextResult{State: state, IsComplete: true}, nil
	}
	state = promote(state)

	if state.PendingStep != nil {
		step, ok := workflow.StepByID[state.PendingStep.StepID]
		if !ok {
			return NextResult{}, &kerrors.StepNotFoundError{StepID: string(state.PendingStep.StepID)}
		}
		guidance, err := Materialize(step, *state.PendingStep)
		if err != nil {
			return NextResult{}, err
		}
		return NextResult{
			State: state,
			Next: &NextStep{
				Step:           step,
				StepInstanceID: *state.PendingStep,
				Guidance:       guidance,
			},
			IsComplete: false,
		}, nil
	}

	now := ip.clock()
	stack := hydrateStack(workflow, state.LoopStack)
	completedList := append([]string(nil), state.Completed...)
	completedSet := toSet(completedList)

	if stack.Len() == 0 {
		if recovered := Recover(workflow, baseStepIDs(completedList), ctx, now); len(recovered) > 0 {
			loop, ok := workflow.CompiledLoops[recovered[0].LoopID]
			if ok {
				if f, err := RestoreFrame(recovered[0], workflow.StepByID[recovered[0].LoopID], loop.BodySteps); err == nil {
					stack.Push(f)
					ip.log().Debug("recovered loop frame", "loop_id", string(recovered[0].LoopID), "iteration", f.Iteration(), "body_index", f.CurrentBodyIndex())
				}
			}
		}
	}

	for iterations := 0; ; iterations++ {
		if iterations >= ip.selectionLoopGuard {
			return NextResult{}, &kerrors.InvalidStateError{Reason: "possible infinite loop: selection-loop guard exceeded"}
		}

		if frame, ok := stack.Top(); ok {
			loopCfg := workflow.CompiledLoops[frame.LoopID()].Loop

			if ip.wallClockGuard > 0 && now.Sub(frame.StartedAt()) > ip.wallClockGuard {
				frame.AddWarning(fmt.Sprintf("loop %q exceeded %s wall-clock guard", frame.LoopID(), ip.wallClockGuard))
				stack.Pop()
				completedList, completedSet = appendCompleted(completedList, completedSet, StepInstanceID{StepID: frame.LoopID(), LoopPath: stack.Path()})
				continue
			}

			ports := ip.buildPorts(loopCfg, frame, stack, completedSet, ctx, artifacts)
			decision, err := Decide(LoopKernelParams{
				LoopID:    frame.LoopID(),
				Iteration: frame.Iteration(),
				BodyIndex: frame.CurrentBodyIndex(),
				BodyLen:   frame.BodyLen(),
				MaxIter:   loopCfg.MaxIterations,
				Ports:     ports,
			})
			if err != nil {
				return NextResult{}, err
			}

			switch decision.Kind {
			case DecisionExecuteBodyStep:
				advanced, err := frame.WithIndex(decision.BodyIndex, ip.frameChecks)
				if err != nil {
					return NextResult{}, err
				}
				if err := stack.ReplaceTop(advanced, ip.frameChecks); err != nil {
					return NextResult{}, err
				}

				bodyStep := advanced.BodySteps()[decision.BodyIndex]
				instance := StepInstanceID{StepID: bodyStep.ID, LoopPath: stack.Path()}
				projected := Project(loopCfg, advanced.Iteration(), ctx)

				sizeResult := CheckSize(projected, ip.contextCeilingBytes, ip.contextWarnRatio)
				if sizeResult.Exceeded {
					msg := fmt.Sprintf("projected context for loop %q reached %d bytes, exceeding the %d byte ceiling; loop aborted", advanced.LoopID(), sizeResult.Bytes, ip.contextCeilingBytes)
					ctx = AddWarnings(ctx, "context_size", string(advanced.LoopID()), []string{msg})
					ip.log().Warn("context size exceeded, aborting loop", "loop_id", string(advanced.LoopID()), "bytes", sizeResult.Bytes)
					stack.Pop()
					completedList, completedSet = appendCompleted(completedList, completedSet, StepInstanceID{StepID: advanced.LoopID(), LoopPath: stack.Path()})
					continue
				}
				if sizeResult.Warn {
					ip.log().Warn("projected context approaching size ceiling", "loop_id", string(advanced.LoopID()), "bytes", sizeResult.Bytes)
				}

				guidance, err := Materialize(bodyStep, instance)
				if err != nil {
					return NextResult{}, err
				}

				next := state
				next.PendingStep = &instance
				next.LoopStack = stack.Snapshot()
				next.Completed = completedList
				return NextResult{
					State: next,
					Next: &NextStep{
						Step:             bodyStep,
						StepInstanceID:   instance,
						Guidance:         guidance,
						ProjectedContext: projected,
					},
					IsComplete: false,
				}, nil

			case DecisionAdvanceIteration:
				frame.SetIteration(decision.NextIteration)
				reset, err := frame.Reset(ip.frameChecks)
				if err != nil {
					return NextResult{}, err
				}
				if err := stack.ReplaceTop(reset, ip.frameChecks); err != nil {
					return NextResult{}, err
				}
				ctx = MergeLoopState(ctx, reset.LoopID(), map[string]any{
					"iteration": decision.NextIteration,
				})
				continue

			case DecisionExitLoop:
				popped, _ := stack.Pop()
				completedList, completedSet = appendCompleted(completedList, completedSet, StepInstanceID{StepID: popped.LoopID(), LoopPath: stack.Path()})
				continue
			}
		}

		step, found, blocked := Select(workflow, completedSet, ctx, ip.eval, nil)
		if !found {
			finalState := state
			finalState.Kind = StateComplete
			finalState.Completed = completedList
			finalState.LoopStack = nil
			finalState.PendingStep = nil
			return NextResult{State: finalState, IsComplete: true, Blocked: blocked}, nil
		}

		if step.IsLoop() {
			loop := workflow.CompiledLoops[step.ID]
			frame, err := NewFrame(step.ID, step, loop.BodySteps, now)
			if err != nil {
				return NextResult{}, err
			}
			stack.Push(frame)
			continue
		}

		instance := StepInstanceID{StepID: step.ID}
		guidance, err := Materialize(step, instance)
		if err != nil {
			return NextResult{}, err
		}

		next := state
		next.PendingStep = &instance
		next.LoopStack = stack.Snapshot()
		next.Completed = completedList
		return NextResult{
			State: next,
			Next: &NextStep{
				Step:           step,
				StepInstanceID: instance,
				Guidance:       guidance,
			},
			IsComplete: false,
		}, nil
	}
}

func (ip *Interpreter) log() *slog.Logger {
	if ip.logger == nil {
		return slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return ip.logger
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }

// buildPorts binds the loop-kernel ports for one loop type (§4.8.3).
func (ip *Interpreter) buildPorts(loop LoopConfig, frame *LoopFrame, stack *LoopStack, completedSet map[string]struct{}, ctx Context, artifacts []Artifact) LoopKernelPorts {
	return LoopKernelPorts{
		ShouldEnterIteration: func(i int) (bool, error) {
			switch loop.Type {
			case LoopFor:
				count, ok := resolveCount(loop.Count, ctx)
				if !ok {
					return false, &kerrors.MissingContextError{LoopID: string(frame.LoopID()), Variable: countVariableName(loop.Count)}
				}
				return i < count, nil

			case LoopForEach:
				arr, ok := ctx[loop.Items].([]any)
				if !ok {
					return false, &kerrors.MissingContextError{LoopID: string(frame.LoopID()), Variable: loop.Items}
				}
				return i < len(arr), nil

			case LoopWhile, LoopUntil:
				return ip.evaluateWhileUntil(loop, frame, i, ctx, artifacts)

			default:
				return false, &kerrors.InvalidLoopError{LoopID: string(frame.LoopID()), Reason: fmt.Sprintf("unknown loop type %q", loop.Type)}
			}
		},
		IsBodyIndexEligible: func(i int) bool {
			bodySteps := frame.BodySteps()
			if i < 0 || i >= len(bodySteps) {
				return false
			}
			bs := bodySteps[i]
			key := StepInstanceID{StepID: bs.ID, LoopPath: stack.Path()}.Key()
			if _, done := completedSet[key]; done {
				return false
			}
			if bs.RunCondition == nil {
				return true
			}
			projected := Project(loop, frame.Iteration(), ctx)
			return ip.eval.Evaluate(bs.RunCondition, projected)
		},
	}
}

func (ip *Interpreter) evaluateWhileUntil(loop LoopConfig, frame *LoopFrame, iteration int, ctx Context, artifacts []Artifact) (bool, error) {
	invert := loop.Type == LoopUntil

	if loop.ConditionSource != nil {
		switch loop.ConditionSource.Kind {
		case ConditionSourceArtifactContract:
			decision := EvaluateLoopControl(artifacts, loop.ConditionSource.LoopID)
			if decision.Status != ArtifactFound {
				return false, &kerrors.MissingContextError{
					LoopID:   string(frame.LoopID()),
					Variable: "loop_control:" + string(loop.ConditionSource.LoopID),
				}
			}
			cont := decision.Decision == LoopControlContinue
			if invert {
				cont = !cont
			}
			return cont, nil

		case ConditionSourceContextVariable:
			projected := Project(loop, iteration, ctx)
			result := ip.eval.Evaluate(loop.ConditionSource.Condition, projected)
			if invert {
				result = !result
			}
			return result, nil
		}
	}

	projected := Project(loop, iteration, ctx)
	result := ip.eval.Evaluate(loop.Condition, projected)
	if invert {
		result = !result
	}
	return result, nil
}

func countVariableName(c *CountSource) string {
	if c != nil && c.ContextKey != "" {
		return c.ContextKey
	}
	return "count"
}

// promote lifts an init state to an empty running state; running and
// complete states pass through unchanged.
func promote(state ExecutionState) ExecutionState {
	if state.Kind == StateInit {
		return ExecutionState{Kind: StateRunning}
	}
	return state
}

func hydrateStack(workflow *CompiledWorkflow, snapshots []FrameState) *LoopStack {
	stack := NewLoopStack()
	for _, fs := range snapshots {
		loop, ok := workflow.CompiledLoops[fs.LoopID]
		if !ok {
			continue
		}
		stepRef, ok := workflow.StepByID[fs.LoopID]
		if !ok {
			continue
		}
		frame, err := RestoreFrame(fs, stepRef, loop.BodySteps)
		if err != nil {
			continue
		}
		stack.Push(frame)
	}
	return stack
}

func toSet(keys []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

func appendCompleted(list []string, set map[string]struct{}, instance StepInstanceID) ([]string, map[string]struct{}) {
	key := instance.Key()
	newList := append(append([]string(nil), list...), key)
	newSet := make(map[string]struct{}, len(set)+1)
	for k := range set {
		newSet[k] = struct{}{}
	}
	newSet[key] = struct{}{}
	return newList, newSet
}

// baseStepIDs extracts the StepID portion (before the first '/') from
// each completed instance key, for recovery's flat-id comparison
// against LoopBodyStepIDs.
func baseStepIDs(keys []string) []StepID {
	out := make([]StepID, len(keys))
	for i, k := range keys {
		if idx := strings.IndexByte(k, '/'); idx >= 0 {
			out[i] = StepID(k[:idx])
		} else {
			out[i] = StepID(k)
		}
	}
	return out
}
